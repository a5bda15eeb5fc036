package model

import "time"

// RunStatus represents the lifecycle of one pipeline invocation.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// PipelineRun is the bookkeeping row for one pipeline invocation. It is
// created at start with the total prospect count and receives a single
// terminal update with the outcome counts.
type PipelineRun struct {
	ID             string     `json:"id"`
	InputFile      string     `json:"input_file"`
	TotalProspects int        `json:"total_prospects"`
	Completed      int        `json:"completed"`
	Failed         int        `json:"failed"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
