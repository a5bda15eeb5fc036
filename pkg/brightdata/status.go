package brightdata

// JobStatus is the lifecycle state of one snapshot job. The API reports
// pending, running, ready, and failed; timeout is assigned locally when a
// job exhausts its polling budget without reaching a terminal state.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobReady   JobStatus = "ready"
	JobFailed  JobStatus = "failed"
	JobTimeout JobStatus = "timeout"
)

// Terminal reports whether polling should stop for this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobReady, JobFailed, JobTimeout:
		return true
	}
	return false
}
