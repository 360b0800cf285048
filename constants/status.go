package constants

import "strings"

// TaskStatus is the status vocabulary reported by the GeoCarbon API for an
// asynchronous analysis task.
type TaskStatus string

// Stable values (the API returns these exact strings).
const (
	TaskStatusStarting   TaskStatus = "STARTING"   // accepted, not yet running
	TaskStatusProcessing TaskStatus = "PROCESSING" // analysis in progress
	TaskStatusCompleted  TaskStatus = "COMPLETED"  // terminal success
	TaskStatusError      TaskStatus = "ERROR"      // terminal failure
)

// ParseTaskStatus uppercases and trims a raw status string. Unknown values
// are returned as-is; callers must treat them as non-terminal.
func ParseTaskStatus(raw string) TaskStatus {
	return TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// Terminal reports whether the status ends the polling lifecycle for a job.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

// JobState is the local outcome of a polled job, as written to the output
// files. Exactly one of the non-pending states is reached per job.
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateError     JobState = "ERROR"
	JobStateExhausted JobState = "EXHAUSTED" // retry cap reached while still pending
)
