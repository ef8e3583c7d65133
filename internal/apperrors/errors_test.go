package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("batchSize", "batch size must be between 10 and 5000")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "batch size must be between 10 and 5000" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "batchSize" {
		t.Errorf("expected field 'batchSize', got %q", appErr.Field)
	}
}

func TestSubmissionRejected(t *testing.T) {
	t.Parallel()
	err := SubmissionRejected("study-0003", "service busy")

	if !errors.Is(err, ErrSubmissionRejected) {
		t.Error("expected error to match ErrSubmissionRejected")
	}
	if errors.Is(err, ErrPollingFailed) {
		t.Error("did not expect ErrPollingFailed")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.JobID != "study-0003" {
		t.Errorf("expected job id 'study-0003', got %q", appErr.JobID)
	}
}

func TestPostProcessingFailed_KeepsCause(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("unexpected end of JSON input")
	err := PostProcessingFailed("study-0001", "summary.parse", cause)

	if !errors.Is(err, ErrPostProcessingFailed) {
		t.Error("expected error to match ErrPostProcessingFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "summary.parse: unexpected end of JSON input" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestRunSetup(t *testing.T) {
	t.Parallel()
	err := RunSetup("datasource.countFields", context.DeadlineExceeded)

	if !errors.Is(err, ErrRunSetupFailed) {
		t.Error("expected error to match ErrRunSetupFailed")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to be reachable")
	}
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()
	err := RunTimeout("gather", 90*time.Second)

	if !errors.Is(err, ErrRunTimeout) {
		t.Error("expected error to match ErrRunTimeout")
	}
	if err.Error() != "run timed out after 1m30s during gather" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, ExitOK},
		{"validation", Validation("year", "year is in the future"), ExitInvalidArg},
		{"wrapped validation", fmt.Errorf("parse flags: %w", Validation("crop", "unsupported")), ExitInvalidArg},
		{"run setup", RunSetup("op", fmt.Errorf("fail")), ExitRunFailed},
		{"run timeout", RunTimeout("scatter", time.Minute), ExitRunFailed},
		{"internal", Internal("op", fmt.Errorf("fail")), ExitRunFailed},
		{"unknown error", fmt.Errorf("unknown"), ExitRunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExitCode(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestReason(t *testing.T) {
	t.Parallel()
	if got := Reason(nil); got != "" {
		t.Errorf("Reason(nil) = %q, want empty", got)
	}
	if got := Reason(fmt.Errorf("wrap: %w", PollingFailed("j", "ProcessFailed: out of memory"))); got != "ProcessFailed: out of memory" {
		t.Errorf("Reason() = %q", got)
	}
	if got := Reason(fmt.Errorf("plain")); got != "plain" {
		t.Errorf("Reason() = %q", got)
	}
}
