// Package poller tracks an accepted job to a terminal state by reading its
// status document at a fixed interval.
package poller

import (
	"context"
	"cropstudy/internal/gateway"
	"cropstudy/internal/job"
	"cropstudy/internal/observability"
	"cropstudy/internal/wps"
	"cropstudy/pkg/backoff"
	"cropstudy/pkg/circuitbreaker"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// State of one poll loop.
type State int

const (
	Idle State = iota
	Polling
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Getter fetches a URL and returns the response body.
type Getter interface {
	Get(ctx context.Context, url, credential string) ([]byte, error)
}

// Poller polls job status documents. Safe for concurrent use; one Run per job.
type Poller struct {
	gw         Getter
	credential string
	outputs    wps.OutputIDs
	config     Config
	backoff    *backoff.Config
	breakers   *circuitbreaker.Registry
	logger     *slog.Logger
	metrics    *observability.Metrics
	observer   func(jobID string, s State)
}

// New creates a poller. Pollers created with the same registry share one
// breaker per status host. metrics may be nil.
func New(gw Getter, credential string, outputs wps.OutputIDs, cfg Config, breakers *circuitbreaker.Registry, metrics *observability.Metrics) *Poller {
	cfg = cfg.withDefaults()
	if breakers == nil {
		breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		})
	}
	return &Poller{
		gw:         gw,
		credential: credential,
		outputs:    outputs,
		config:     cfg,
		backoff:    &backoff.Config{Initial: cfg.BackoffInitial, Max: cfg.BackoffMax},
		breakers:   breakers,
		logger:     slog.With("component", "poller"),
		metrics:    metrics,
	}
}

// Observe registers fn to be called on every state change. Call before Run.
func (p *Poller) Observe(fn func(jobID string, s State)) {
	p.observer = fn
}

// Breakers returns the breaker registry, for status reporting.
func (p *Poller) Breakers() *circuitbreaker.Registry {
	return p.breakers
}

// Run polls until the job is terminal and returns its final outcome.
// A rejected submission passes through as Failed without any request.
func (p *Poller) Run(ctx context.Context, o job.Outcome) job.Outcome {
	switch o.State {
	case job.StateSubmitRejected:
		failed := job.Failed(o.JobID, o.Reason, "")
		failed.FinishedAt = o.FinishedAt
		return failed
	case job.StateAccepted:
	default:
		return o
	}

	logger := p.logger.With("jobId", o.JobID)
	p.transition(o.JobID, Polling)

	next := p.poll(ctx, o, logger)
	final, err := o.Advance(next)
	if err != nil {
		logger.Error("Invalid outcome transition", "error", err)
		final, _ = o.Advance(job.Failed(o.JobID, err.Error(), ""))
	}

	if final.Success() {
		p.transition(o.JobID, Succeeded)
		logger.Info("Job succeeded", "duration", final.Duration())
	} else {
		p.transition(o.JobID, Failed)
		logger.Warn("Job failed", "reason", final.Reason, "duration", final.Duration())
	}
	if p.metrics != nil {
		p.metrics.RecordJobCompleted(ctx, final.Success(), final.Duration().Seconds())
	}
	return final
}

func (p *Poller) poll(ctx context.Context, o job.Outcome, logger *slog.Logger) job.Outcome {
	for {
		st, err := p.fetch(ctx, o.StatusURL)
		if err != nil {
			if ctx.Err() != nil {
				return job.Failed(o.JobID, cancelReason(ctx.Err()), "")
			}
			return job.Failed(o.JobID, err.Error(), "")
		}

		switch st.Phase {
		case wps.PhaseSucceeded:
			return job.Succeeded(o.Handle(),
				st.Output(p.outputs.Summary),
				st.Output(p.outputs.States),
				st.Output(p.outputs.Log))
		case wps.PhaseFailed:
			return job.Failed(o.JobID, st.Reason, st.Output(p.outputs.Log))
		}

		logger.Debug("Job running", "percent", st.Percent)
		select {
		case <-ctx.Done():
			return job.Failed(o.JobID, cancelReason(ctx.Err()), "")
		case <-time.After(p.config.Interval):
		}
	}
}

// fetch reads one status document, retrying transport and 5xx errors.
// Client errors and unreadable documents are not retried.
func (p *Poller) fetch(ctx context.Context, statusURL string) (wps.Status, error) {
	host := extractHost(statusURL)
	breaker := p.breakers.Get(host)

	var lastErr error
	for attempt := range p.config.Retries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return wps.Status{}, ctx.Err()
			case <-time.After(backoff.Exponential(attempt, p.backoff)):
			}
		}

		if !breaker.Allow() {
			return wps.Status{}, fmt.Errorf("status host %s unavailable (circuit open)", host)
		}

		body, err := p.gw.Get(ctx, statusURL, p.credential)
		if p.metrics != nil {
			p.metrics.RecordJobPoll(ctx)
		}
		if err == nil {
			breaker.RecordSuccess()
			st, err := wps.ParseStatus(body)
			if err != nil {
				return wps.Status{}, fmt.Errorf("invalid status document: %w", err)
			}
			return st, nil
		}

		lastErr = err
		if !gateway.IsTransient(err) {
			// the host answered; it is reachable
			if gateway.IsClientError(err) {
				breaker.RecordSuccess()
			}
			return wps.Status{}, fmt.Errorf("status request failed: %w", err)
		}
		breaker.RecordFailure()
		p.logger.Debug("Status request failed", "host", host, "attempt", attempt+1, "error", err)
	}
	return wps.Status{}, fmt.Errorf("status request failed after %d attempts: %w", p.config.Retries+1, lastErr)
}

func (p *Poller) transition(jobID string, s State) {
	if p.observer != nil {
		p.observer(jobID, s)
	}
}

func cancelReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "run deadline exceeded"
	}
	return "run cancelled"
}

// extractHost extracts the host from a URL for circuit breaker keying.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
