package domain

import "github.com/google/uuid"

// JobStatus tracks the lifecycle of a single conversion job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions happen within the run.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Settings contains user preferences persisted between runs.
type Settings struct {
	CustomBinaryPath string `json:"customBinaryPath,omitempty"`
}

// JobSpec is the immutable description of one conversion.
// A nil InputFormat means auto-detect.
type JobSpec struct {
	ID           string
	InputPath    string
	InputFormat  *Format
	OutputPath   string
	OutputFormat Format
	Filters      []Filter
}

// InputFormatID returns the gpsbabel id to pass with -i, or "" for auto-detect.
func (s JobSpec) InputFormatID() string {
	if s.InputFormat == nil || s.InputFormat.IsAutoDetect() {
		return ""
	}
	return s.InputFormat.ID
}

// Job stores the current job identity, lifecycle status and outcome.
type Job struct {
	ID      string            `json:"id"`
	Status  JobStatus         `json:"status"`
	Message string            `json:"message,omitempty"`
	Result  *ConversionResult `json:"result,omitempty"`
}

// NewJobID returns a fresh opaque job identifier.
func NewJobID() string {
	return "job-" + uuid.NewString()
}
