package model

import "time"

// JobStatus is the scheduler-reported state of a research job. It is never cached:
// every reconcile cycle asks the cluster again.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// SecretEnv injects an environment variable from a key of a cluster secret.
type SecretEnv struct {
	Name   string
	Secret string
	Key    string
}

// Resources holds requests and limits in cluster quantity notation ("500m", "1Gi").
type Resources struct {
	CPURequest    string
	CPULimit      string
	MemoryRequest string
	MemoryLimit   string
}

// JobSpec is the immutable description of one unit of research work.
type JobSpec struct {
	Name           string
	Labels         map[string]string
	Container      string
	Image          string
	Args           []string
	Env            map[string]string
	SecretEnv      []SecretEnv
	Resources      Resources
	BackoffLimit   int32
	TTLAfterFinish time.Duration
}

// TrackedJob is a registry entry for a submitted job awaiting a terminal state.
type TrackedJob struct {
	ID          string
	ChatID      int64
	Query       string
	TraceID     string
	SubmittedAt time.Time

	// PlaceholderMessageID is the "processing..." message to retract; 0 means none.
	PlaceholderMessageID int
}

// Age returns how long the job has been tracked.
func (j TrackedJob) Age(now time.Time) time.Duration {
	return now.Sub(j.SubmittedAt)
}
