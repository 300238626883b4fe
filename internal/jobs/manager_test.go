package jobs

import (
	"errors"
	"testing"

	"gpsconv/internal/domain"
)

// TestManagerLifecycle verifies normal progression to completed state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if got := m.Current().Status; got != domain.JobStatusIdle {
		t.Fatalf("new manager status = %s, want idle", got)
	}

	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := m.Current().Status; got != domain.JobStatusPending {
		t.Fatalf("status after start = %s, want pending", got)
	}

	if err := m.Transition(domain.JobStatusRunning); err != nil {
		t.Fatalf("transition to running: %v", err)
	}

	size := int64(42)
	result := &domain.ConversionResult{JobID: "job-1", OutputSize: &size}
	if err := m.Finish(domain.JobStatusCompleted, "Conversion successful.", result); err != nil {
		t.Fatalf("finish: %v", err)
	}

	current := m.Current()
	if current.Status != domain.JobStatusCompleted {
		t.Fatalf("current status = %s, want completed", current.Status)
	}
	if current.Message != "Conversion successful." {
		t.Fatalf("message = %q", current.Message)
	}
	if current.Result == nil || *current.Result.OutputSize != 42 {
		t.Fatalf("result = %+v", current.Result)
	}
	if err := m.Cancel(); !errors.Is(err, ErrNoRunningJob) {
		t.Fatalf("cancel after completion error = %v, want %v", err, ErrNoRunningJob)
	}
}

// TestManagerRejectsSecondStart checks only one job can be active.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("job-2"); !errors.Is(err, ErrJobAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}
	if got := m.Current().ID; got != "job-1" {
		t.Fatalf("rejected start changed job id to %q", got)
	}

	if err := m.Finish(domain.JobStatusFailed, "boom", nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := m.Start("job-2"); err != nil {
		t.Fatalf("start after terminal: %v", err)
	}
	if got := m.Current(); got.ID != "job-2" || got.Message != "" || got.Result != nil {
		t.Fatalf("restart kept stale fields: %+v", got)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Transition(domain.JobStatusRunning); err == nil {
		t.Fatal("expected error without an active job")
	}

	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusCompleted); err == nil {
		t.Fatal("expected pending -> completed to be rejected")
	}
	if err := m.Finish(domain.JobStatusRunning, "", nil); err == nil {
		t.Fatal("expected finish with non-terminal status to fail")
	}
}

// TestManagerCancel verifies cancel requests and repeated cancel handling.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Cancel(); !errors.Is(err, ErrNoRunningJob) {
		t.Fatalf("idle cancel error = %v, want %v", err, ErrNoRunningJob)
	}

	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("repeated cancel while active: %v", err)
	}
	if !m.CancelRequested() {
		t.Fatal("expected cancel request to be recorded")
	}
	if m.Current().Status != domain.JobStatusPending {
		t.Fatal("cancel must not change status by itself")
	}

	if err := m.Finish(domain.JobStatusCancelled, "Conversion cancelled", nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrNoRunningJob) {
		t.Fatalf("cancel after finish error = %v, want %v", err, ErrNoRunningJob)
	}
	if m.Current().Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", m.Current().Status)
	}
}

// TestManagerCurrentIsSnapshot checks callers cannot mutate stored results.
func TestManagerCurrentIsSnapshot(t *testing.T) {
	m := NewManager()
	_ = m.Start("job-1")
	_ = m.Transition(domain.JobStatusRunning)
	_ = m.Finish(domain.JobStatusFailed, "bad", &domain.ConversionResult{ExitCode: 1})

	snap := m.Current()
	snap.Result.ExitCode = 99
	if m.Current().Result.ExitCode != 1 {
		t.Fatal("snapshot mutation leaked into manager")
	}
}
