// Package submit sends property codes (CAR) to the GeoCarbon analysis
// endpoints and records the job IDs the API hands back.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

// Service submits analysis requests row by row. Per-row failures are
// recorded and never abort the batch.
type Service struct {
	client *apiclient.Client
	logger *slog.Logger
}

func NewService(client *apiclient.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// YearRange is an inclusive analysis window for MapBiomas deforestation.
type YearRange struct {
	Start int
	End   int
}

// Column returns the output column that stores the job ID for this range.
func (yr YearRange) Column() string {
	return fmt.Sprintf("deforestation_%d_%d", yr.Start, yr.End)
}

func (yr YearRange) String() string {
	return fmt.Sprintf("%d:%d", yr.Start, yr.End)
}

// ParseYearRanges parses a comma list of start:end pairs, e.g. "2004:2023"
// or "2004:2023,2010:2015".
func ParseYearRanges(s string) ([]YearRange, error) {
	var ranges []YearRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.Split(part, ":")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid year range %q, want start:end", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start year in %q: %w", part, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end year in %q: %w", part, err)
		}
		if end < start {
			return nil, fmt.Errorf("year range %q ends before it starts", part)
		}
		ranges = append(ranges, YearRange{Start: start, End: end})
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no year ranges given")
	}
	return ranges, nil
}

// Stats summarizes one submission batch.
type Stats struct {
	Submitted int
	Skipped   int
	Failed    int
}

type idPayload struct {
	ID string `json:"id"`
}

// Deforestation submits one MapBiomas request per row and year range to
// POST /deforestation. Job IDs are written into deforestation_<start>_<end>
// columns on the table; failures come back as error records.
func (s *Service) Deforestation(ctx context.Context, t *tabular.Table, carColumn, name string, ranges []YearRange) (Stats, []*tabular.Record, error) {
	if err := t.RequireColumn(carColumn); err != nil {
		return Stats{}, nil, err
	}
	for _, yr := range ranges {
		t.AddColumn(yr.Column())
	}

	var stats Stats
	var failures []*tabular.Record

	s.logger.Info("submit.deforestation.start", "rows", t.Len(), "year_ranges", len(ranges))

	for row, rec := range t.Records {
		car := strings.TrimSpace(rec.Get(carColumn))
		if car == "" {
			s.logger.Info("submit.row.skipped_empty_car", "row", row)
			stats.Skipped++
			continue
		}

		for _, yr := range ranges {
			body := map[string]any{
				"name":        name,
				"codImovel":   car,
				"yearsBiomas": []int{yr.Start, yr.End},
			}
			raw, err := s.client.Post(ctx, "/deforestation", body)
			if err != nil {
				s.logger.Error("submit.row.failed", "row", row, "car", car, "years", yr.String(), "error", err)
				failures = append(failures, failureRecord(row, car, yr.String(), err))
				stats.Failed++
				continue
			}

			var created idPayload
			if err := apiclient.DecodeData(raw, &created); err != nil || created.ID == "" {
				if err == nil {
					err = fmt.Errorf("response has no job id")
				}
				s.logger.Error("submit.row.bad_response", "row", row, "car", car, "years", yr.String(), "error", err)
				failures = append(failures, failureRecord(row, car, yr.String(), err))
				stats.Failed++
				continue
			}

			rec.Set(yr.Column(), created.ID)
			stats.Submitted++
			s.logger.Info("submit.row.ok", "row", row, "car", car, "years", yr.String(), "job_id", created.ID)
		}
	}

	s.logger.Info("submit.deforestation.done",
		"submitted", stats.Submitted, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, failures, nil
}

// Prodes submits one PRODES request per row to POST /deforestation/prodes.
// The job ID lands in the deforestation_prodes column.
func (s *Service) Prodes(ctx context.Context, t *tabular.Table, carColumn, name string) (Stats, []*tabular.Record, error) {
	return s.perRow(ctx, t, carColumn, "deforestation_prodes", "/deforestation/prodes",
		func(car string) any {
			return map[string]any{"name": name, "codImovel": car}
		})
}

// Restrictions submits one detailed restriction report request per row to
// POST /report-detailed/restrictions. The returned ID lands in the
// restriction_id column.
func (s *Service) Restrictions(ctx context.Context, t *tabular.Table, carColumn string) (Stats, []*tabular.Record, error) {
	return s.perRow(ctx, t, carColumn, "restriction_id", "/report-detailed/restrictions",
		func(car string) any {
			return map[string]any{"codImovel": car}
		})
}

func (s *Service) perRow(ctx context.Context, t *tabular.Table, carColumn, idColumn, path string, buildBody func(car string) any) (Stats, []*tabular.Record, error) {
	if err := t.RequireColumn(carColumn); err != nil {
		return Stats{}, nil, err
	}
	t.AddColumn(idColumn)

	var stats Stats
	var failures []*tabular.Record

	s.logger.Info("submit.start", "path", path, "rows", t.Len())

	for row, rec := range t.Records {
		car := strings.TrimSpace(rec.Get(carColumn))
		if car == "" {
			s.logger.Info("submit.row.skipped_empty_car", "row", row)
			stats.Skipped++
			continue
		}

		raw, err := s.client.Post(ctx, path, buildBody(car))
		if err != nil {
			s.logger.Error("submit.row.failed", "row", row, "car", car, "error", err)
			failures = append(failures, failureRecord(row, car, "", err))
			stats.Failed++
			continue
		}

		id, err := decodeCreatedID(raw)
		if err != nil {
			s.logger.Error("submit.row.bad_response", "row", row, "car", car, "error", err)
			failures = append(failures, failureRecord(row, car, "", err))
			stats.Failed++
			continue
		}

		rec.Set(idColumn, id)
		stats.Submitted++
		s.logger.Info("submit.row.ok", "row", row, "car", car, "job_id", id)
	}

	s.logger.Info("submit.done",
		"path", path, "submitted", stats.Submitted, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, failures, nil
}

// UnifiedResult is the outcome of a single unified batch submission.
type UnifiedResult struct {
	BatchID string
	Codes   int
	Years   int
}

// DeforestationUnified submits every CAR code in one request to
// POST /deforestation/mapbiomas/batch, with the year ranges expanded into a
// sorted, de-duplicated year list. The single batch ID is written to the
// batch_id column of every row.
func (s *Service) DeforestationUnified(ctx context.Context, t *tabular.Table, carColumn, name string, ranges []YearRange) (UnifiedResult, error) {
	if err := t.RequireColumn(carColumn); err != nil {
		return UnifiedResult{}, err
	}

	var codes []string
	for _, rec := range t.Records {
		if car := strings.TrimSpace(rec.Get(carColumn)); car != "" {
			codes = append(codes, car)
		}
	}
	if len(codes) == 0 {
		return UnifiedResult{}, fmt.Errorf("no CAR codes in column %q", carColumn)
	}
	years := expandYears(ranges)

	s.logger.Info("submit.unified.start", "codes", len(codes), "years", len(years))

	body := map[string]any{
		"name":        name,
		"codImoveis":  codes,
		"yearsBiomas": years,
	}
	raw, err := s.client.Post(ctx, "/deforestation/mapbiomas/batch", body)
	if err != nil {
		return UnifiedResult{}, fmt.Errorf("unified batch request: %w", err)
	}

	var created struct {
		Deforestation idPayload `json:"deforestation"`
	}
	if err := apiclient.DecodeData(raw, &created); err != nil {
		return UnifiedResult{}, fmt.Errorf("unified batch response: %w", err)
	}
	if created.Deforestation.ID == "" {
		return UnifiedResult{}, fmt.Errorf("unified batch response has no id")
	}

	t.AddColumn("batch_id")
	for _, rec := range t.Records {
		rec.Set("batch_id", created.Deforestation.ID)
	}

	s.logger.Info("submit.unified.ok", "batch_id", created.Deforestation.ID)
	return UnifiedResult{BatchID: created.Deforestation.ID, Codes: len(codes), Years: len(years)}, nil
}

func expandYears(ranges []YearRange) []int {
	seen := make(map[int]struct{})
	for _, yr := range ranges {
		for y := yr.Start; y <= yr.End; y++ {
			seen[y] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// decodeCreatedID handles both {"data":{"id":"..."}} and {"data":"..."}.
func decodeCreatedID(raw []byte) (string, error) {
	var created idPayload
	if err := apiclient.DecodeData(raw, &created); err == nil && created.ID != "" {
		return created.ID, nil
	}
	var plain string
	if err := apiclient.DecodeData(raw, &plain); err == nil && plain != "" {
		return plain, nil
	}
	return "", fmt.Errorf("response has no job id")
}

func failureRecord(row int, car, years string, err error) *tabular.Record {
	rec := tabular.NewRecord()
	rec.Set("row", strconv.Itoa(row))
	rec.Set("car", car)
	if years != "" {
		rec.Set("years", years)
	}
	status := ""
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		status = strconv.Itoa(apiErr.StatusCode)
	}
	rec.Set("status_code", status)
	rec.Set("reason", err.Error())
	return rec
}
