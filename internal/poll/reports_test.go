package poll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

func reportTable(rows [][2]string) *tabular.Table {
	t := &tabular.Table{Columns: []string{"restriction_id", "taskStatus"}}
	for _, row := range rows {
		rec := tabular.NewRecord()
		rec.Set("restriction_id", row[0])
		rec.Set("taskStatus", row[1])
		t.Records = append(t.Records, rec)
	}
	return t
}

func TestFetchReports_UpdatesStatusesInPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "done-id":
			_, _ = w.Write([]byte(`{"data":[{"taskStatus":"COMPLETED","reportResults":{"restricted":false}}]}`))
		case "slow-id":
			_, _ = w.Write([]byte(`{"data":[{"taskStatus":"processing"}]}`))
		case "gone-id":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		case "empty-id":
			_, _ = w.Write([]byte(`{"data":[]}`))
		default:
			t.Errorf("unexpected id %q", r.URL.Query().Get("id"))
		}
	}))
	defer srv.Close()

	client := apiclient.New(apiclient.Config{BaseURL: srv.URL, AccessToken: "t"}, testLogger())
	table := reportTable([][2]string{
		{"done-id", ""},
		{"slow-id", ""},
		{"gone-id", ""},
		{"empty-id", ""},
		{"finished-earlier", "COMPLETED"},
		{"", ""},
	})

	stats, err := FetchReports(context.Background(), client, testLogger(), table, "restriction_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Checked != 4 {
		t.Errorf("expected 4 checked (completed and blank rows skipped), got %d", stats.Checked)
	}
	if stats.Completed != 1 || stats.Pending != 1 || stats.Errors != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	recs := table.Records
	if got := recs[0].Get("taskStatus"); got != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %q", got)
	}
	if got := recs[0].Get("reportResults"); got != `{"restricted":false}` {
		t.Errorf("expected report results stored as JSON, got %q", got)
	}
	if got := recs[1].Get("taskStatus"); got != "PROCESSING" {
		t.Errorf("expected status uppercased, got %q", got)
	}
	if got := recs[2].Get("taskStatus"); got != "HTTP_ERROR_404" {
		t.Errorf("expected HTTP_ERROR_404, got %q", got)
	}
	if got := recs[3].Get("taskStatus"); got != "NO_DATA" {
		t.Errorf("expected NO_DATA, got %q", got)
	}
	if got := recs[4].Get("taskStatus"); got != "COMPLETED" {
		t.Errorf("completed rows must not change, got %q", got)
	}
}

func TestFetchReports_MissingColumn(t *testing.T) {
	table := &tabular.Table{Columns: []string{"CAR"}}
	if _, err := FetchReports(context.Background(), nil, testLogger(), table, "restriction_id"); err == nil {
		t.Error("expected error for missing id column")
	}
}
