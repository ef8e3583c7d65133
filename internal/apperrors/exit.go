package apperrors

import "errors"

// Process exit codes.
const (
	ExitOK         = 0
	ExitRunFailed  = 1
	ExitInvalidArg = 2
)

// ExitCode maps a run-level error to the process exit status.
// A run that finished with any number of per-job failures returns nil and
// therefore exits 0.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidation):
		return ExitInvalidArg
	default:
		return ExitRunFailed
	}
}
