// Package postprocess fetches a finished job's artifacts and reduces them to
// report details.
package postprocess

import (
	"context"
	"cropstudy/internal/observability"
	"cropstudy/internal/report"
	"errors"
	"log/slog"
)

// ErrNoArtifact is the failure of a processor that was given no artifact.
// It is distinct from a fetch or parse failure.
var ErrNoArtifact = errors.New("no artifact to process")

// Getter fetches a URL and returns the response body.
type Getter interface {
	Get(ctx context.Context, url, credential string) ([]byte, error)
}

// Result of processing one artifact. On failure Details is nil and Err is set.
type Result struct {
	JobID     string
	Processor string
	Details   report.Record
	Errors    int // error lines found in a log
	Rows      int // result records found in a summary
	Err       error
}

// Processor reduces one artifact of a job.
type Processor interface {
	Name() string
	Process(ctx context.Context, jobID, artifactURL string) Result
}

// base holds what both processors share.
type base struct {
	gw         Getter
	credential string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func (b *base) record(ctx context.Context, r Result) Result {
	if b.metrics != nil {
		b.metrics.RecordPostprocess(ctx, r.Processor, r.Err == nil)
	}
	if r.Err != nil && !errors.Is(r.Err, ErrNoArtifact) {
		b.logger.Warn("Post-processing failed", "jobId", r.JobID, "error", r.Err)
	}
	return r
}
