package models

import (
	"strings"
	"time"
)

// RunStatus represents the lifecycle state of a validation run
type RunStatus string

const (
	RunStatusUploaded   RunStatus = "uploaded"
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// ValidRunStatuses defines statuses accepted by the history filter
var ValidRunStatuses = map[RunStatus]bool{
	RunStatusUploaded:   true,
	RunStatusPending:    true,
	RunStatusProcessing: true,
	RunStatusCompleted:  true,
	RunStatusFailed:     true,
}

// Metrics holds the comparison figures a processor may attach to a run.
// Nil fields mean the processor did not compute them.
type Metrics struct {
	Accuracy    *float64 `json:"accuracy,omitempty" db:"accuracy"`
	RMSE        *float64 `json:"rmse,omitempty" db:"rmse"`
	Correlation *float64 `json:"correlation,omitempty" db:"correlation"`
	NDVI        *float64 `json:"ndvi,omitempty" db:"ndvi"`
	SAM         *float64 `json:"sam,omitempty" db:"sam"`
}

// ValidationRun represents one uploaded ground truth file and its processing state
type ValidationRun struct {
	ID             string     `json:"id" db:"id"`
	FileName       string     `json:"file_name" db:"file_name"`
	FileSize       int64      `json:"file_size" db:"file_size"`
	Location       string     `json:"location,omitempty" db:"location"`
	Coordinates    string     `json:"coordinates,omitempty" db:"coordinates"`
	Satellite      string     `json:"satellite,omitempty" db:"satellite"`
	LandcoverType  string     `json:"landcover_type,omitempty" db:"landcover_type"`
	Status         RunStatus  `json:"status" db:"status"`
	Headers        []string   `json:"headers" db:"headers"`
	TotalRows      int        `json:"total_rows" db:"total_rows"`
	IsValid        bool       `json:"is_valid" db:"is_valid"`
	ErrorCount     int        `json:"error_count" db:"error_count"`
	WarningCount   int        `json:"warning_count" db:"warning_count"`
	Metrics        Metrics    `json:"metrics"`
	DataPoints     int        `json:"data_points" db:"data_points"`
	DurationMs     int64      `json:"duration_ms,omitempty" db:"duration_ms"`
	FailureReason  string     `json:"failure_reason,omitempty" db:"failure_reason"`
	FilePath       string     `json:"-" db:"file_path"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RunResponse is the API response for a run with its first messages
type RunResponse struct {
	ValidationRun
	Messages   []Finding `json:"messages,omitempty"`
	MessageURL string    `json:"messages_url,omitempty"`
}

// UploadRequest carries the metadata submitted with a ground truth file
type UploadRequest struct {
	FileName       string `form:"-"`
	FileSize       int64  `form:"-"`
	Location       string `form:"location"`
	Coordinates    string `form:"coordinates"`
	Satellite      string `form:"satellite"`
	LandcoverType  string `form:"landcover_type"`
	IdempotencyKey string `form:"-"` // From header
}

// UploadResult is returned after a file is accepted and stored
type UploadResult struct {
	Run     *ValidationRun     `json:"run"`
	Table   *ParsedTable       `json:"table"`
	Verdict *ValidationVerdict `json:"verdict"`
}

// ProcessingResult is what a processor reports for a run
type ProcessingResult struct {
	DataPoints int     `json:"data_points"`
	Metrics    Metrics `json:"metrics"`
}

// HistoryFilter selects runs for the history listing
type HistoryFilter struct {
	Search string `form:"search"`
	Status string `form:"status"` // "all", "" or a RunStatus
	Limit  int    `form:"limit"`
}

// Matches reports whether run passes the filter. Search is a case-insensitive
// substring match against the run id, location and satellite.
func (f HistoryFilter) Matches(run *ValidationRun) bool {
	if f.Status != "" && f.Status != "all" && string(run.Status) != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(run.ID), term) ||
		strings.Contains(strings.ToLower(run.Location), term) ||
		strings.Contains(strings.ToLower(run.Satellite), term)
}
