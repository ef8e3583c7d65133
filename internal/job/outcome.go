// Package job defines the messages exchanged between the submit, poll and
// post-processing roles: the handle of an accepted job and its outcome.
package job

import (
	"errors"
	"fmt"
	"time"
)

// State of a job as seen by the coordinator.
type State string

// State constants
const (
	StateAccepted       State = "accepted"
	StateSubmitRejected State = "submit_rejected"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

// ErrInvalidTransition is returned when an outcome would move backwards or
// leave a terminal state.
var ErrInvalidTransition = errors.New("invalid outcome transition")

// Handle identifies a job accepted by the remote service.
type Handle struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`
}

// Outcome is the tagged result of a job. Which fields are meaningful
// depends on State:
//
//	Accepted:       StatusURL
//	SubmitRejected: Reason
//	Succeeded:      StatusURL, SummaryURL, StatesURL, LogURL
//	Failed:         Reason, optional LogURL
//
// Empty URLs mean the artifact is absent.
type Outcome struct {
	JobID      string    `json:"jobId"`
	State      State     `json:"state"`
	StatusURL  string    `json:"statusUrl,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	LogURL     string    `json:"logUrl,omitempty"`
	StatesURL  string    `json:"statesUrl,omitempty"`
	SummaryURL string    `json:"summaryUrl,omitempty"`
	AcceptedAt time.Time `json:"acceptedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Accepted returns the outcome of a successful submission.
func Accepted(h Handle) Outcome {
	return Outcome{JobID: h.JobID, State: StateAccepted, StatusURL: h.StatusURL, AcceptedAt: time.Now()}
}

// SubmitRejected returns the outcome of a submission the service refused or
// that never reached it.
func SubmitRejected(jobID, reason string) Outcome {
	now := time.Now()
	return Outcome{JobID: jobID, State: StateSubmitRejected, Reason: reason, FinishedAt: now}
}

// Succeeded returns the terminal outcome of a job that produced its outputs.
func Succeeded(h Handle, summaryURL, statesURL, logURL string) Outcome {
	return Outcome{
		JobID:      h.JobID,
		State:      StateSucceeded,
		StatusURL:  h.StatusURL,
		SummaryURL: summaryURL,
		StatesURL:  statesURL,
		LogURL:     logURL,
		FinishedAt: time.Now(),
	}
}

// Failed returns the terminal outcome of a job that did not succeed.
// logURL may be empty.
func Failed(jobID, reason, logURL string) Outcome {
	return Outcome{JobID: jobID, State: StateFailed, Reason: reason, LogURL: logURL, FinishedAt: time.Now()}
}

// Handle returns the job handle. StatusURL is empty for rejected jobs.
func (o Outcome) Handle() Handle {
	return Handle{JobID: o.JobID, StatusURL: o.StatusURL}
}

// Terminal reports whether no further transition is allowed.
func (o Outcome) Terminal() bool {
	return o.State != StateAccepted
}

// Success reports whether the job produced its outputs.
func (o Outcome) Success() bool {
	return o.State == StateSucceeded
}

// Duration is the time from acceptance to the terminal state, or zero when
// either end is unknown.
func (o Outcome) Duration() time.Duration {
	if o.AcceptedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.AcceptedAt)
}

// Advance moves o to next. Only Accepted may advance, only to Succeeded or
// Failed, and only for the same job. The acceptance time is carried over.
func (o Outcome) Advance(next Outcome) (Outcome, error) {
	if next.JobID != o.JobID {
		return o, fmt.Errorf("%w: job %q cannot take outcome of %q", ErrInvalidTransition, o.JobID, next.JobID)
	}
	if o.Terminal() {
		return o, fmt.Errorf("%w: job %q is already %s", ErrInvalidTransition, o.JobID, o.State)
	}
	if next.State != StateSucceeded && next.State != StateFailed {
		return o, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, next.State)
	}
	next.AcceptedAt = o.AcceptedAt
	if next.StatusURL == "" {
		next.StatusURL = o.StatusURL
	}
	return next, nil
}
