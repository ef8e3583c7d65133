package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/livez", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/run", 200, 0.002)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/run/jobs/wheat-0001", 404, 0.005)
}

func TestRecordRunMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordGatewayRequest(ctx, "POST", 200, 0.3)
	metrics.RecordGatewayRequest(ctx, "GET", 0, 20)
	metrics.RecordJobSubmitted(ctx, true)
	metrics.RecordJobSubmitted(ctx, false)
	metrics.RecordJobPoll(ctx)
	metrics.RecordJobCompleted(ctx, true, 900)
	metrics.RecordPostprocess(ctx, "summary", true)
	metrics.RecordPostprocess(ctx, "log", false)
	metrics.RecordPoolQueueSize(ctx, "poll", 12)
	metrics.RecordRun(ctx, true, 3600)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"/livez", "/livez"},
		{"/metrics", "/metrics"},
		{"/v1/run", "/v1/run"},
		{"/v1/run/jobs/", "/v1/run/jobs/"},
		{"/v1/run/jobs/wheat-0001", "/v1/run/jobs/{jobId}"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestStatusAttr(t *testing.T) {
	t.Parallel()
	if got := statusAttr(0).Value.AsString(); got != "error" {
		t.Errorf("statusAttr(0) = %q, want error", got)
	}
	if got := statusAttr(503).Value.AsString(); got != "5xx" {
		t.Errorf("statusAttr(503) = %q, want 5xx", got)
	}
}
