// Package apperrors provides the run's error taxonomy with exit code mapping.
//
// Per-job failures (submission rejected, polling failed, post-processing
// failed) are carried as data in job outcomes and report rows. Only run-level
// faults (setup, timeout) and argument validation propagate out of a run.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation           = errors.New("validation error")
	ErrSubmissionRejected   = errors.New("submission rejected")
	ErrPollingFailed        = errors.New("polling failed")
	ErrPostProcessingFailed = errors.New("post-processing failed")
	ErrRunSetupFailed       = errors.New("run setup failed")
	ErrRunTimeout           = errors.New("run timed out")
	ErrInternal             = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "batchSize", "year")
	JobID    string // For per-job failures
	Op       string // Operation that failed (e.g., "datasource.countFields")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the cause so both errors.Is and errors.As
// see through the wrapper.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// SubmissionRejected records that the remote service declined a job or could
// not be reached when it was submitted. The job never started.
func SubmissionRejected(jobID, reason string) error {
	return &Error{
		Sentinel: ErrSubmissionRejected,
		Message:  reason,
		JobID:    jobID,
	}
}

// PollingFailed records that a started job did not finish successfully.
func PollingFailed(jobID, reason string) error {
	return &Error{
		Sentinel: ErrPollingFailed,
		Message:  reason,
		JobID:    jobID,
	}
}

// PostProcessingFailed records that a job's artifact was missing or unparseable.
func PostProcessingFailed(jobID, op string, cause error) error {
	return &Error{
		Sentinel: ErrPostProcessingFailed,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		JobID:    jobID,
		Op:       op,
		Cause:    cause,
	}
}

// RunSetup creates a fatal error for a run whose batch could not be planned.
func RunSetup(op string, cause error) error {
	return &Error{
		Sentinel: ErrRunSetupFailed,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// RunTimeout creates a fatal error for a run that exceeded its overall budget.
func RunTimeout(phase string, after time.Duration) error {
	return &Error{
		Sentinel: ErrRunTimeout,
		Message:  fmt.Sprintf("run timed out after %s during %s", after, phase),
		Op:       phase,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Reason renders a short failure reason suitable for a report row.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
