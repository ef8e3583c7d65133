package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all run metrics:
// - Latency: gateway requests, job and run duration
// - Traffic: submissions, polls, post-processing
// - Errors: rejected submissions, failed jobs and processors
// - Saturation: active jobs and pool queue depth
type Metrics struct {
	meter metric.Meter

	// Status server metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Remote service calls
	GatewayRequestDuration metric.Float64Histogram

	// Job metrics
	JobsSubmitted metric.Int64Counter
	JobPolls      metric.Int64Counter
	JobsCompleted metric.Int64Counter
	JobDuration   metric.Float64Histogram
	JobsActive    metric.Int64UpDownCounter

	// Post-processing and run metrics
	PostprocessTotal metric.Int64Counter
	RunDuration      metric.Float64Histogram
	PoolQueueSize    metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("cropstudy")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Status server request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of status server requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of status server errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.GatewayRequestDuration, err = meter.Float64Histogram(
		"gateway_request_duration_seconds",
		metric.WithDescription("Remote service request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter(
		"jobs_submitted_total",
		metric.WithDescription("Total number of job submissions by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobPolls, err = meter.Int64Counter(
		"job_polls_total",
		metric.WithDescription("Total number of status polls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsCompleted, err = meter.Int64Counter(
		"jobs_completed_total",
		metric.WithDescription("Total number of jobs that reached a terminal state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Time from acceptance to terminal state in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(15, 30, 60, 120, 300, 600, 900, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsActive, err = meter.Int64UpDownCounter(
		"jobs_active",
		metric.WithDescription("Number of accepted jobs not yet terminal (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PostprocessTotal, err = meter.Int64Counter(
		"postprocess_total",
		metric.WithDescription("Total number of artifact post-processing attempts"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"run_duration_seconds",
		metric.WithDescription("Whole run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(60, 300, 900, 1800, 3600, 7200, 14400, 28800, 86400),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PoolQueueSize, err = meter.Int64Gauge(
		"pool_queue_size",
		metric.WithDescription("Current number of tasks waiting in a worker pool (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records status server request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordGatewayRequest records one call to a remote service. statusCode is 0
// when the request failed before a response arrived.
func (m *Metrics) RecordGatewayRequest(ctx context.Context, method string, statusCode int, durationSeconds float64) {
	m.GatewayRequestDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(methodAttr(method), statusAttr(statusCode)))
}

// RecordJobSubmitted records a submission and, when accepted, a newly active job.
func (m *Metrics) RecordJobSubmitted(ctx context.Context, accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	m.JobsSubmitted.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
	if accepted {
		m.JobsActive.Add(ctx, 1)
	}
}

// RecordJobPoll records one status request.
func (m *Metrics) RecordJobPoll(ctx context.Context) {
	m.JobPolls.Add(ctx, 1)
}

// RecordJobCompleted records an accepted job reaching a terminal state.
func (m *Metrics) RecordJobCompleted(ctx context.Context, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(successAttr(success))
	m.JobsCompleted.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, durationSeconds, attrs)
	m.JobsActive.Add(ctx, -1)
}

// RecordPostprocess records one artifact processor run.
func (m *Metrics) RecordPostprocess(ctx context.Context, processor string, success bool) {
	m.PostprocessTotal.Add(ctx, 1, metric.WithAttributes(processorAttr(processor), successAttr(success)))
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, success bool, durationSeconds float64) {
	m.RunDuration.Record(ctx, durationSeconds, metric.WithAttributes(successAttr(success)))
}

// RecordPoolQueueSize records the current queue depth of a worker pool.
func (m *Metrics) RecordPoolQueueSize(ctx context.Context, pool string, size int64) {
	m.PoolQueueSize.Record(ctx, size, metric.WithAttributes(poolAttr(pool)))
}
