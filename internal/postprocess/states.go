package postprocess

import (
	"bytes"
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/observability"
	"cropstudy/internal/report"
	"log/slog"
)

// StatesFetcher reads a job's state-variable table.
type StatesFetcher struct {
	base
}

// NewStatesFetcher creates a states fetcher. metrics may be nil.
func NewStatesFetcher(gw Getter, credential string, metrics *observability.Metrics) *StatesFetcher {
	return &StatesFetcher{base{
		gw:         gw,
		credential: credential,
		logger:     slog.With("component", "postprocess", "processor", "states"),
		metrics:    metrics,
	}}
}

// Name returns "states".
func (p *StatesFetcher) Name() string { return "states" }

// Fetch downloads and parses the states CSV at statesURL.
func (p *StatesFetcher) Fetch(ctx context.Context, jobID, statesURL string) (report.StatesTable, error) {
	res := Result{JobID: jobID, Processor: p.Name()}
	if statesURL == "" {
		res.Err = ErrNoArtifact
		p.record(ctx, res)
		return report.StatesTable{}, res.Err
	}

	body, err := p.gw.Get(ctx, statesURL, p.credential)
	if err != nil {
		res.Err = apperrors.PostProcessingFailed(jobID, "states.fetch", err)
		p.record(ctx, res)
		return report.StatesTable{}, res.Err
	}

	table, err := report.ReadStatesCSV(jobID, bytes.NewReader(body))
	if err != nil {
		res.Err = apperrors.PostProcessingFailed(jobID, "states.read", err)
		p.record(ctx, res)
		return report.StatesTable{}, res.Err
	}
	res.Rows = len(table.Rows)
	p.record(ctx, res)
	return table, nil
}
