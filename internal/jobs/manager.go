package jobs

import (
	"errors"
	"fmt"
	"sync"

	"gpsconv/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks the single allowed active job and its transitions.
type Manager struct {
	mu              sync.RWMutex
	current         domain.Job
	cancelRequested bool
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start creates a new job in pending state.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:     jobID,
		Status: domain.JobStatusPending,
	}
	m.cancelRequested = false
	return nil
}

// Transition validates and applies state transitions for current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(status)
}

// Finish moves the active job to a terminal status and records the outcome.
func (m *Manager) Finish(status domain.JobStatus, message string, result *domain.ConversionResult) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish requires a terminal status, got %s", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(status); err != nil {
		return err
	}
	m.current.Message = message
	if result != nil {
		r := *result
		m.current.Result = &r
	}
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job := m.current
	if job.Result != nil {
		r := *job.Result
		job.Result = &r
	}
	return job
}

// Cancel records a cancellation request for the active job. The final
// status is set by whoever runs the job, once the process has stopped.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.Status) {
		return ErrNoRunningJob
	}
	m.cancelRequested = true
	return nil
}

// CancelRequested reports whether Cancel was called for the current job.
func (m *Manager) CancelRequested() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelRequested
}

func (m *Manager) transitionLocked(status domain.JobStatus) error {
	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// isActive checks if a status blocks a new job from starting.
func isActive(status domain.JobStatus) bool {
	return status == domain.JobStatusPending || status == domain.JobStatusRunning
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusPending
	case domain.JobStatusPending:
		return to == domain.JobStatusRunning || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusRunning:
		return to.IsTerminal()
	case domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled:
		return to == domain.JobStatusPending || to == domain.JobStatusIdle
	default:
		return false
	}
}
