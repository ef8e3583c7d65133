// Package submitter sends one execute request per job and turns whatever
// comes back into an outcome. It never returns an error: every failure is
// a rejected submission.
package submitter

import (
	"context"
	"cropstudy/internal/job"
	"cropstudy/internal/observability"
	"cropstudy/internal/study"
	"cropstudy/internal/wps"
	"cropstudy/pkg/backoff"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Poster sends a request body and returns the response body.
type Poster interface {
	Post(ctx context.Context, url, credential, contentType string, body []byte) ([]byte, error)
}

// Target is the remote process jobs are submitted to.
type Target struct {
	URL        string        // execute endpoint
	ProcessID  string        // process identifier
	Credential string        // opaque token, may be empty
	Outputs    wps.OutputIDs // output identifiers requested by reference
}

// Submitter submits jobs. Safe for concurrent use.
type Submitter struct {
	gw      Poster
	target  Target
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a submitter. metrics may be nil.
func New(gw Poster, target Target, cfg Config, metrics *observability.Metrics) *Submitter {
	cfg = cfg.withDefaults()
	s := &Submitter{
		gw:      gw,
		target:  target,
		config:  cfg,
		logger:  slog.With("component", "submitter"),
		metrics: metrics,
	}
	if cfg.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}
	return s
}

// Jitter returns a random delay in [0, MaxJitter) for the next submission.
func (s *Submitter) Jitter() time.Duration {
	return backoff.Jitter(s.config.MaxJitter)
}

// Submit waits delay, then makes a single submission attempt for spec.
func (s *Submitter) Submit(ctx context.Context, spec study.JobSpec, delay time.Duration) job.Outcome {
	logger := s.logger.With("jobId", spec.ID, "kind", study.KindName(spec.Kind))

	outcome := s.submit(ctx, spec, delay)
	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(ctx, outcome.State == job.StateAccepted)
	}

	if outcome.State == job.StateAccepted {
		logger.Info("Job accepted", "statusUrl", outcome.StatusURL)
	} else {
		logger.Warn("Job rejected", "reason", outcome.Reason)
	}
	return outcome
}

func (s *Submitter) submit(ctx context.Context, spec study.JobSpec, delay time.Duration) job.Outcome {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return job.SubmitRejected(spec.ID, cancelReason(ctx.Err()))
		case <-time.After(delay):
		}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return job.SubmitRejected(spec.ID, limiterReason(ctx, err))
		}
	}

	body, err := wps.BuildExecute(s.target.ProcessID, spec, s.target.Outputs)
	if err != nil {
		return job.SubmitRejected(spec.ID, fmt.Sprintf("cannot build request: %v", err))
	}

	resp, err := s.gw.Post(ctx, s.target.URL, s.target.Credential, wps.ContentType, body)
	if err != nil {
		if ctx.Err() != nil {
			return job.SubmitRejected(spec.ID, cancelReason(ctx.Err()))
		}
		return job.SubmitRejected(spec.ID, err.Error())
	}

	res, err := wps.ParseExecuteResponse(resp)
	if err != nil {
		return job.SubmitRejected(spec.ID, fmt.Sprintf("invalid execute response: %v", err))
	}
	if !res.Accepted {
		return job.SubmitRejected(spec.ID, res.Reason)
	}
	return job.Accepted(job.Handle{JobID: spec.ID, StatusURL: res.StatusLocation})
}

func cancelReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "run deadline exceeded"
	}
	return "run cancelled"
}

// limiterReason maps a rate limiter refusal. Wait fails early, with ctx still
// live, when the next token would arrive after the deadline.
func limiterReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return cancelReason(ctx.Err())
	}
	if _, ok := ctx.Deadline(); ok {
		return "run deadline exceeded"
	}
	return fmt.Sprintf("rate limiter: %v", err)
}
