package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func carTable(cars ...string) *tabular.Table {
	t := &tabular.Table{Columns: []string{"CAR"}}
	for _, car := range cars {
		rec := tabular.NewRecord()
		rec.Set("CAR", car)
		t.Records = append(t.Records, rec)
	}
	return t
}

func newService(srvURL string) *Service {
	client := apiclient.New(apiclient.Config{BaseURL: srvURL, AccessToken: "t"}, testLogger())
	return NewService(client, testLogger())
}

func TestParseYearRanges(t *testing.T) {
	ranges, err := ParseYearRanges("2004:2023, 2010:2015")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []YearRange{{2004, 2023}, {2010, 2015}}
	if !reflect.DeepEqual(ranges, want) {
		t.Errorf("expected %v, got %v", want, ranges)
	}
	if got := ranges[0].Column(); got != "deforestation_2004_2023" {
		t.Errorf("unexpected column name %q", got)
	}

	for _, bad := range []string{"", "2004", "2004:abc", "2023:2004"} {
		if _, err := ParseYearRanges(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDeforestation_WritesJobIDsPerRange(t *testing.T) {
	var seq int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deforestation" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Name        string `json:"name"`
			CodImovel   string `json:"codImovel"`
			YearsBiomas []int  `json:"yearsBiomas"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.Name != "test-run" {
			t.Errorf("expected request name, got %q", body.Name)
		}
		if len(body.YearsBiomas) != 2 {
			t.Errorf("expected [start,end] pair, got %v", body.YearsBiomas)
		}
		seq++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"id":"job-%d"}}`, seq)
	}))
	defer srv.Close()

	table := carTable("CAR-A", "CAR-B")
	ranges := []YearRange{{2004, 2023}, {2010, 2015}}

	stats, failures, err := newService(srv.URL).Deforestation(context.Background(), table, "CAR", "test-run", ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Submitted != 4 || stats.Failed != 0 || stats.Skipped != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(failures) != 0 {
		t.Errorf("unexpected failures %v", failures)
	}
	if got := table.Records[0].Get("deforestation_2004_2023"); got != "job-1" {
		t.Errorf("expected job-1, got %q", got)
	}
	if got := table.Records[0].Get("deforestation_2010_2015"); got != "job-2" {
		t.Errorf("expected job-2, got %q", got)
	}
	if got := table.Records[1].Get("deforestation_2004_2023"); got != "job-3" {
		t.Errorf("expected job-3, got %q", got)
	}
}

func TestDeforestation_RowFailureDoesNotAbortBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CodImovel string `json:"codImovel"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.CodImovel == "XYZ" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"bad geometry"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"job-ok"}}`))
	}))
	defer srv.Close()

	table := carTable("XYZ", "GOOD")
	ranges := []YearRange{{2020, 2022}}

	stats, failures, err := newService(srv.URL).Deforestation(context.Background(), table, "CAR", "n", ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || stats.Submitted != 1 {
		t.Errorf("expected one failure and one success, got %+v", stats)
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure record, got %d", len(failures))
	}
	if got := failures[0].Get("status_code"); got != "400" {
		t.Errorf("expected HTTP status recorded, got %q", got)
	}
	if got := failures[0].Get("car"); got != "XYZ" {
		t.Errorf("expected failing CAR recorded, got %q", got)
	}
	if got := table.Records[1].Get("deforestation_2020_2022"); got != "job-ok" {
		t.Errorf("later rows must still be processed, got %q", got)
	}
}

func TestDeforestation_SkipsEmptyCAR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"job-1"}}`))
	}))
	defer srv.Close()

	table := carTable("  ", "CAR-A")
	stats, _, err := newService(srv.URL).Deforestation(context.Background(), table, "CAR", "n", []YearRange{{2004, 2023}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Skipped != 1 || stats.Submitted != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestDeforestation_MissingColumn(t *testing.T) {
	table := &tabular.Table{Columns: []string{"Owner"}}
	_, _, err := newService("http://unused").Deforestation(context.Background(), table, "CAR", "n", []YearRange{{2004, 2023}})
	if err == nil {
		t.Fatal("expected error for missing CAR column")
	}
}

func TestProdes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deforestation/prodes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, hasYears := body["yearsBiomas"]; hasYears {
			t.Error("prodes request must not carry year ranges")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"prodes-1"}}`))
	}))
	defer srv.Close()

	table := carTable("CAR-A")
	stats, _, err := newService(srv.URL).Prodes(context.Background(), table, "CAR", "n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Submitted != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if got := table.Records[0].Get("deforestation_prodes"); got != "prodes-1" {
		t.Errorf("expected prodes-1, got %q", got)
	}
}

func TestRestrictions_AcceptsPlainStringID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/report-detailed/restrictions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":"restriction-7"}`))
	}))
	defer srv.Close()

	table := carTable("CAR-A")
	stats, _, err := newService(srv.URL).Restrictions(context.Background(), table, "CAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Submitted != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if got := table.Records[0].Get("restriction_id"); got != "restriction-7" {
		t.Errorf("expected restriction-7, got %q", got)
	}
}

func TestDeforestationUnified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deforestation/mapbiomas/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			CodImoveis  []string `json:"codImoveis"`
			YearsBiomas []int    `json:"yearsBiomas"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(body.CodImoveis) != 2 {
			t.Errorf("expected 2 codes, got %v", body.CodImoveis)
		}
		want := []int{2020, 2021, 2022, 2023}
		if !reflect.DeepEqual(body.YearsBiomas, want) {
			t.Errorf("expected expanded years %v, got %v", want, body.YearsBiomas)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"deforestation":{"id":"batch-1"}}}`))
	}))
	defer srv.Close()

	table := carTable("CAR-A", "CAR-B")
	ranges := []YearRange{{2020, 2022}, {2022, 2023}}

	result, err := newService(srv.URL).DeforestationUnified(context.Background(), table, "CAR", "n", ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BatchID != "batch-1" {
		t.Errorf("expected batch-1, got %q", result.BatchID)
	}
	for i, rec := range table.Records {
		if got := rec.Get("batch_id"); got != "batch-1" {
			t.Errorf("row %d: expected batch id on every row, got %q", i, got)
		}
	}
}

func TestDeforestationUnified_NoCodes(t *testing.T) {
	table := carTable("", "  ")
	_, err := newService("http://unused").DeforestationUnified(context.Background(), table, "CAR", "n", []YearRange{{2020, 2021}})
	if err == nil {
		t.Fatal("expected error when no CAR codes are present")
	}
}
