package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/analyze"
	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTargetRequired    = errors.New("target is required")
)

// =============================================================================
// Run Status
// =============================================================================

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// =============================================================================
// Run
// =============================================================================

// Run records one delivery of a reordered batch to a device.
type Run struct {
	ID           string         `json:"id"`
	Target       string         `json:"target"`
	Status       RunStatus      `json:"status"`
	CommandCount int            `json:"command_count"`
	Report       analyze.Report `json:"report"`
	Batch        string         `json:"batch"`
	Output       string         `json:"output,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// NewRun creates a pending run for a reordered batch.
func NewRun(target, batch string, report analyze.Report) (*Run, error) {
	if strings.TrimSpace(target) == "" {
		return nil, ErrTargetRequired
	}

	count := 0
	if batch != "" {
		count = strings.Count(batch, "\n") + 1
	}

	now := time.Now().UTC()
	return &Run{
		ID:           "run_" + uuid.New().String()[:8],
		Target:       target,
		Status:       RunPending,
		CommandCount: count,
		Report:       report,
		Batch:        batch,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Start moves a pending run to running.
func (r *Run) Start() error {
	if err := ValidateRunTransition(r.Status, RunRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = RunRunning
	r.StartedAt = &now
	r.UpdatedAt = now
	return nil
}

// Succeed completes a running run with the device output.
func (r *Run) Succeed(output string) error {
	if err := ValidateRunTransition(r.Status, RunSucceeded); err != nil {
		return err
	}
	r.finish(RunSucceeded, output, "")
	return nil
}

// Fail completes a running run with the device output and the cause.
func (r *Run) Fail(output string, cause error) error {
	if err := ValidateRunTransition(r.Status, RunFailed); err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	r.finish(RunFailed, output, msg)
	return nil
}

func (r *Run) finish(status RunStatus, output, errorMessage string) {
	now := time.Now().UTC()
	r.Status = status
	r.Output = output
	r.ErrorMessage = errorMessage
	r.FinishedAt = &now
	r.UpdatedAt = now
}

// =============================================================================
// State Machine
// =============================================================================

var validRunTransitions = map[RunStatus][]RunStatus{
	RunPending:   {RunRunning},
	RunRunning:   {RunSucceeded, RunFailed},
	RunSucceeded: {}, // Terminal state
	RunFailed:    {}, // Terminal state
}

// ValidateRunTransition checks if a status transition is valid.
func ValidateRunTransition(from, to RunStatus) error {
	allowed, exists := validRunTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// =============================================================================
// Device Output
// =============================================================================

// FailedLines returns the "ERROR:" lines the appliance printed while running
// a batch. Everything else in the output is treated as opaque.
func FailedLines(output string) []string {
	var failed []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			failed = append(failed, line)
		}
	}
	return failed
}
