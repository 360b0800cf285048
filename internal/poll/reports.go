package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gierrejunior/using-geocarbon-api/constants"
	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

// ReportStats summarizes one report fetch pass.
type ReportStats struct {
	Checked   int
	Completed int
	Pending   int
	Errors    int
}

type reportRecord struct {
	TaskStatus    string          `json:"taskStatus"`
	ReportResults json.RawMessage `json:"reportResults"`
}

// FetchReports makes a single pass over the table and refreshes the status
// of every detailed restriction report that is not yet completed. Unlike
// Run this never sleeps or retries; re-running the tool is the retry. The
// table is updated in place: taskStatus always, reportResults when the
// report completed.
func FetchReports(ctx context.Context, client *apiclient.Client, logger *slog.Logger, t *tabular.Table, idColumn string) (ReportStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := t.RequireColumn(idColumn); err != nil {
		return ReportStats{}, err
	}
	t.AddColumn("taskStatus")
	t.AddColumn("reportResults")

	var stats ReportStats

	logger.Info("reports.fetch.start", "rows", t.Len())

	for row, rec := range t.Records {
		id := strings.TrimSpace(rec.Get(idColumn))
		if id == "" || rec.Get("taskStatus") == string(constants.TaskStatusCompleted) {
			continue
		}
		stats.Checked++

		raw, err := client.Get(ctx, "/report-detailed/restrictions", map[string]string{"id": id})
		if err != nil {
			var apiErr *apiclient.APIError
			if errors.As(err, &apiErr) {
				rec.Set("taskStatus", fmt.Sprintf("HTTP_ERROR_%d", apiErr.StatusCode))
			} else {
				rec.Set("taskStatus", string(constants.TaskStatusError))
			}
			stats.Errors++
			logger.Error("reports.fetch.failed", "row", row, "id", id, "error", err)
			continue
		}

		var envelope struct {
			Data []reportRecord `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Data) == 0 {
			rec.Set("taskStatus", "NO_DATA")
			stats.Errors++
			logger.Warn("reports.fetch.no_data", "row", row, "id", id)
			continue
		}

		status := constants.ParseTaskStatus(envelope.Data[0].TaskStatus)
		rec.Set("taskStatus", string(status))
		if status == constants.TaskStatusCompleted {
			rec.Set("reportResults", string(envelope.Data[0].ReportResults))
			stats.Completed++
			logger.Info("reports.fetch.completed", "row", row, "id", id)
		} else {
			stats.Pending++
			logger.Info("reports.fetch.pending", "row", row, "id", id, "status", string(status))
		}
	}

	logger.Info("reports.fetch.done",
		"checked", stats.Checked, "completed", stats.Completed,
		"pending", stats.Pending, "errors", stats.Errors)
	return stats, nil
}
