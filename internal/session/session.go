// Package session models the state of a single ground truth upload as a value
// that only changes through Reduce.
package session

import (
	"errors"

	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/validation"
)

// UploadSession is the state of one upload from file selection to processed run
type UploadSession struct {
	FileName   string                    `json:"file_name,omitempty"`
	FileSize   int64                     `json:"file_size,omitempty"`
	Table      *models.ParsedTable       `json:"table,omitempty"`
	Verdict    *models.ValidationVerdict `json:"verdict,omitempty"`
	Processing bool                      `json:"processing"`
	Complete   bool                      `json:"complete"`
	RunID      string                    `json:"run_id,omitempty"`
	Rejection  string                    `json:"rejection,omitempty"`
}

// CanProcess reports whether processing may start
func (s UploadSession) CanProcess() bool {
	return s.Verdict != nil && s.Verdict.IsValid && !s.Processing && !s.Complete
}

// Event is applied to a session by Reduce
type Event interface {
	isEvent()
}

// FileSelected is raised when the user picks a file
type FileSelected struct {
	Name string
	Size int64
	Text string
}

// ProcessStarted is raised when the user asks for processing
type ProcessStarted struct{}

// ProcessCompleted is raised once the processing service finished
type ProcessCompleted struct {
	RunID string
}

// ProcessFailed is raised when the processing service returned an error
type ProcessFailed struct {
	Reason string
}

// Reset clears the session
type Reset struct{}

func (FileSelected) isEvent()     {}
func (ProcessStarted) isEvent()   {}
func (ProcessCompleted) isEvent() {}
func (ProcessFailed) isEvent()    {}
func (Reset) isEvent()            {}

// Reducer applies events using a fixed validator
type Reducer struct {
	validator *validation.Validator
}

// NewReducer creates a reducer that validates with v
func NewReducer(v *validation.Validator) Reducer {
	return Reducer{validator: v}
}

// Reduce returns the session that results from applying ev to s. s is not modified.
func (r Reducer) Reduce(s UploadSession, ev Event) UploadSession {
	switch e := ev.(type) {
	case FileSelected:
		if err := validation.CheckFileName(e.Name); err != nil {
			s.Rejection = "Please upload a CSV file"
			return s
		}
		next := UploadSession{FileName: e.Name, FileSize: e.Size}
		table, err := validation.Parse(e.Text)
		if err != nil {
			if errors.Is(err, validation.ErrEmptyFile) {
				next.Verdict = &models.ValidationVerdict{
					Errors:   []string{"File is empty"},
					Warnings: []string{},
				}
				return next
			}
			next.Rejection = err.Error()
			return next
		}
		next.Table = table
		next.Verdict = r.validator.Validate(table)
		return next

	case ProcessStarted:
		if !s.CanProcess() {
			return s
		}
		s.Processing = true
		return s

	case ProcessCompleted:
		if !s.Processing {
			return s
		}
		s.Processing = false
		s.Complete = true
		s.RunID = e.RunID
		return s

	case ProcessFailed:
		if !s.Processing {
			return s
		}
		s.Processing = false
		s.Rejection = e.Reason
		return s

	case Reset:
		return UploadSession{}
	}
	return s
}
