// Package poll tracks asynchronous analysis jobs across repeated API polls.
// Jobs stay in the pending set until the API reports a terminal status or
// the retry cap is reached; rounds are separated by a fixed delay.
package poll

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/gierrejunior/using-geocarbon-api/constants"
	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

// ReasonMaxRetries is the distinct failure reason for jobs that never
// reached a terminal status within the retry cap.
const ReasonMaxRetries = "exceeded max retries"

// Job is one asynchronous analysis request tracked by the poller.
type Job struct {
	ID         string
	RowIndex   int
	Attempts   int
	LastStatus constants.TaskStatus
	Result     json.RawMessage // full response payload, set on completion
}

// Failure is a job that ended in ERROR or ran out of retries.
type Failure struct {
	Job    Job
	State  constants.JobState
	Reason string
}

// Poller runs the bounded fixed-delay retry loop over a set of job IDs.
type Poller struct {
	client      *apiclient.Client
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration)
	schema      map[string]any
}

type Option func(*Poller)

func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.retryDelay = d
		}
	}
}

// WithSleep replaces the inter-round wait. Tests use this to run rounds
// back to back.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

func NewPoller(client *apiclient.Client, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:      client,
		logger:      logger,
		maxAttempts: 10,
		retryDelay:  time.Minute,
		sleep:       sleepCtx,
		schema:      apiclient.BuildStatusEnvelopeSchema(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run polls every job until it completes, errors, or exhausts the retry
// cap. Each round makes one pass over the pending set; rounds are separated
// by the retry delay. Every input job ends up in exactly one of the two
// returned sets.
func (p *Poller) Run(ctx context.Context, jobs []*Job) (completed []*Job, failed []Failure) {
	pending := jobs
	round := 0

	p.logger.Info("poll.start", "jobs", len(jobs), "max_attempts", p.maxAttempts)

	for len(pending) > 0 && round < p.maxAttempts {
		round++
		p.logger.Info("poll.round.start", "round", round, "pending", len(pending))

		var next []*Job
		for _, job := range pending {
			job.Attempts++
			outcome := p.pollOnce(ctx, job)
			switch outcome.state {
			case constants.JobStateCompleted:
				job.Result = outcome.payload
				completed = append(completed, job)
				p.logger.Info("poll.job.completed", "id", job.ID, "row", job.RowIndex, "attempts", job.Attempts)
			case constants.JobStateError:
				failed = append(failed, Failure{Job: *job, State: constants.JobStateError, Reason: outcome.reason})
				p.logger.Error("poll.job.error", "id", job.ID, "row", job.RowIndex, "reason", outcome.reason)
			default:
				next = append(next, job)
			}
		}
		pending = next

		if len(pending) > 0 && round < p.maxAttempts {
			p.logger.Info("poll.round.wait", "pending", len(pending), "delay", p.retryDelay.String())
			p.sleep(ctx, p.retryDelay)
		}
	}

	for _, job := range pending {
		failed = append(failed, Failure{Job: *job, State: constants.JobStateExhausted, Reason: ReasonMaxRetries})
		p.logger.Error("poll.job.exhausted", "id", job.ID, "row", job.RowIndex, "attempts", job.Attempts)
	}

	p.logger.Info("poll.done", "completed", len(completed), "failed", len(failed))
	return completed, failed
}

type outcome struct {
	state   constants.JobState
	reason  string
	payload json.RawMessage
}

type pollTask struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type pollRecord struct {
	ID              string          `json:"id"`
	Task            []pollTask      `json:"Task"`
	ErrorMessage    string          `json:"errorMessage"`
	AnalysisResults json.RawMessage `json:"analysisResults"`
}

// pollOnce fetches the job's current status and classifies it. Anything
// that is not an unambiguous terminal answer keeps the job pending: a
// transport error, a malformed envelope, an empty data list, or a status
// value outside the known vocabulary.
func (p *Poller) pollOnce(ctx context.Context, job *Job) outcome {
	raw, err := p.client.Get(ctx, "/deforestation", map[string]string{"id": job.ID})
	if err != nil {
		p.logger.Warn("poll.request.failed", "id", job.ID, "attempt", job.Attempts, "error", err)
		return outcome{state: constants.JobStatePending}
	}

	if err := apiclient.ValidateJSONAgainstSchema(p.schema, raw); err != nil {
		p.logger.Warn("poll.response.schema_mismatch",
			"id", job.ID, "error", err,
			"hint", "API response shape changed; treating as still processing")
		return outcome{state: constants.JobStatePending}
	}

	var envelope struct {
		Data []pollRecord `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Data) == 0 {
		p.logger.Warn("poll.response.empty", "id", job.ID, "attempt", job.Attempts)
		return outcome{state: constants.JobStatePending}
	}

	rec := envelope.Data[0]

	if len(rec.Task) == 0 {
		// Some result records carry no task list; analysisResults alone
		// marks completion.
		if !isNull(rec.AnalysisResults) {
			return outcome{state: constants.JobStateCompleted, payload: raw}
		}
		p.logger.Warn("poll.response.no_task", "id", job.ID, "attempt", job.Attempts)
		return outcome{state: constants.JobStatePending}
	}

	status := constants.ParseTaskStatus(rec.Task[0].Status)
	job.LastStatus = status

	switch status {
	case constants.TaskStatusCompleted:
		if isNull(rec.AnalysisResults) {
			p.logger.Warn("poll.response.completed_without_results", "id", job.ID, "attempt", job.Attempts)
			return outcome{state: constants.JobStatePending}
		}
		return outcome{state: constants.JobStateCompleted, payload: raw}
	case constants.TaskStatusError:
		reason := rec.Task[0].Message
		if reason == "" {
			reason = rec.ErrorMessage
		}
		if reason == "" {
			reason = "task status ERROR"
		}
		return outcome{state: constants.JobStateError, reason: reason}
	case constants.TaskStatusStarting, constants.TaskStatusProcessing:
		return outcome{state: constants.JobStatePending}
	default:
		p.logger.Warn("poll.response.unknown_status",
			"id", job.ID, "status", string(status),
			"hint", "unrecognized status value; treating as still processing")
		return outcome{state: constants.JobStatePending}
	}
}

func isNull(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return string(raw) == "null"
}

// JobsFromTable builds the initial pending set from the ID column of a
// loaded table. Rows with a blank ID are skipped.
func JobsFromTable(t *tabular.Table, idColumn string) ([]*Job, int, error) {
	if err := t.RequireColumn(idColumn); err != nil {
		return nil, 0, err
	}
	var jobs []*Job
	skipped := 0
	for row, rec := range t.Records {
		id := rec.Get(idColumn)
		if id == "" {
			skipped++
			continue
		}
		jobs = append(jobs, &Job{ID: id, RowIndex: row})
	}
	return jobs, skipped, nil
}

// CompletedRecords flattens completed jobs into output rows, with the
// result payload JSON-encoded in a single column.
func CompletedRecords(jobs []*Job) []*tabular.Record {
	records := make([]*tabular.Record, 0, len(jobs))
	for _, job := range jobs {
		rec := tabular.NewRecord()
		rec.Set("id", job.ID)
		rec.Set("row", strconv.Itoa(job.RowIndex))
		rec.Set("attempts", strconv.Itoa(job.Attempts))
		rec.Set("payload", string(job.Result))
		records = append(records, rec)
	}
	return records
}

// FailureRecords flattens failed jobs into output rows.
func FailureRecords(failures []Failure) []*tabular.Record {
	records := make([]*tabular.Record, 0, len(failures))
	for _, f := range failures {
		rec := tabular.NewRecord()
		rec.Set("id", f.Job.ID)
		rec.Set("row", strconv.Itoa(f.Job.RowIndex))
		rec.Set("attempts", strconv.Itoa(f.Job.Attempts))
		rec.Set("state", string(f.State))
		rec.Set("last_status", string(f.Job.LastStatus))
		rec.Set("reason", f.Reason)
		records = append(records, rec)
	}
	return records
}
