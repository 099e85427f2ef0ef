package api

import (
	"time"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/analyze"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/domain"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/plan"
)

// =============================================================================
// Request Types
// =============================================================================

// ConfigRequest is the request body for reorder, analyze and plan.
type ConfigRequest struct {
	Config   string `json:"config"`
	Sanitize bool   `json:"sanitize,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ReorderResponse is the response for reorder operations.
type ReorderResponse struct {
	Batch    string `json:"batch"`
	Commands int    `json:"commands"`
}

// AnalyzeResponse is the response for analyze operations.
type AnalyzeResponse struct {
	analyze.Report
	Total int `json:"total"`
}

// PlanResponse is the response for plan operations.
type PlanResponse struct {
	Steps []plan.Step `json:"steps"`
	Moved int         `json:"moved"`
	Diff  string      `json:"diff,omitempty"`
}

// RunResponse is the response for run operations.
type RunResponse struct {
	ID           string           `json:"id"`
	Target       string           `json:"target"`
	Status       domain.RunStatus `json:"status"`
	CommandCount int              `json:"command_count"`
	Report       analyze.Report   `json:"report"`
	Batch        string           `json:"batch"`
	Output       string           `json:"output,omitempty"`
	FailedLines  []string         `json:"failed_lines,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// ListRunsResponse is the response for listing runs.
type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
	// Total counts every matching run, not just this page.
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
