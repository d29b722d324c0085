package history

import "time"

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is one recorded deployment.
type Run struct {
	ID          int
	Environment string
	Status      string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Duration    string
}

// StageExecution is one recorded pipeline stage within a run.
type StageExecution struct {
	ID       int
	RunID    int
	Name     string
	Policy   string
	Status   string
	Error    string
	Duration string
}
