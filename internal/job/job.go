// Package job records the history of pipeline runs.
package job

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one pipeline run. ID is the run id carried in logs and events.
type Job struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	Stage        string     `json:"stage,omitempty"`
	Error        string     `json:"error,omitempty"`
	Fetched      int64      `json:"fetched"`
	Normalized   int64      `json:"normalized"`
	RowsMerged   int64      `json:"rowsMerged"`
	FilesSkipped int64      `json:"filesSkipped"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}
