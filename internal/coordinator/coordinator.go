// Package coordinator runs a study: it plans the jobs, scatters them over
// the submit and poll pools, gathers every outcome, post-processes the
// artifacts and aggregates the results into a report.
package coordinator

import (
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/artifact"
	"cropstudy/internal/bundle"
	"cropstudy/internal/job"
	"cropstudy/internal/observability"
	"cropstudy/internal/postprocess"
	"cropstudy/internal/progress"
	"cropstudy/internal/report"
	"cropstudy/internal/study"
	"cropstudy/internal/workpool"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// JobSubmitter makes the single submission attempt of a job.
type JobSubmitter interface {
	Submit(ctx context.Context, spec study.JobSpec, delay time.Duration) job.Outcome
	Jitter() time.Duration
}

// JobPoller tracks a submitted job to a terminal outcome.
type JobPoller interface {
	Run(ctx context.Context, o job.Outcome) job.Outcome
}

// ArtifactProcessor reduces one artifact of a job to report details.
type ArtifactProcessor interface {
	Process(ctx context.Context, jobID, artifactURL string) postprocess.Result
}

// StatesSource reads the state-variable table of a job.
type StatesSource interface {
	Fetch(ctx context.Context, jobID, statesURL string) (report.StatesTable, error)
}

// FieldCounter counts the fields of a geometry selection.
type FieldCounter interface {
	CountFields(ctx context.Context, geometry string, crop, year int) (int, error)
}

// ParameterSource loads parameter files into bundles.
type ParameterSource interface {
	LoadFile(ctx context.Context, path string) (*bundle.Bundle, error)
}

// Deps are the collaborators of a Coordinator. Data and Params are only
// needed for the study kinds that use them; Metrics may be nil.
type Deps struct {
	Submitter JobSubmitter
	Poller    JobPoller
	Logs      ArtifactProcessor
	Summaries ArtifactProcessor
	States    StatesSource
	Data      FieldCounter
	Params    ParameterSource
	Store     *artifact.Store
	Metrics   *observability.Metrics
}

// Result is a finished run.
type Result struct {
	Report     *report.RunReport
	ReportPath string
	StatesPath string
	Duration   time.Duration
}

// Coordinator runs one study at a time.
type Coordinator struct {
	config    Config
	submitter JobSubmitter
	poller    JobPoller
	logs      ArtifactProcessor
	summaries ArtifactProcessor
	states    StatesSource
	data      FieldCounter
	params    ParameterSource
	store     *artifact.Store
	reporter  *report.Reporter
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time

	submitPool  *workpool.Pool
	pollPool    *workpool.Pool
	logPool     *workpool.Pool
	summaryPool *workpool.Pool

	runMu sync.Mutex // held for the whole of Run

	mu       sync.RWMutex
	snapshot Snapshot
	outcomes map[string]job.Outcome
}

// New creates a coordinator and starts its worker pools.
func New(cfg Config, deps Deps) *Coordinator {
	cfg = cfg.withDefaults()

	var recorder workpool.MetricsRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	store := deps.Store
	if store == nil {
		store = artifact.NewStore(".")
	}

	return &Coordinator{
		config:      cfg,
		submitter:   deps.Submitter,
		poller:      deps.Poller,
		logs:        deps.Logs,
		summaries:   deps.Summaries,
		states:      deps.States,
		data:        deps.Data,
		params:      deps.Params,
		store:       store,
		reporter:    report.NewReporter(),
		metrics:     deps.Metrics,
		logger:      slog.With("component", "coordinator"),
		now:         time.Now,
		submitPool:  workpool.New(cfg.SubmitPool, recorder),
		pollPool:    workpool.New(cfg.PollPool, recorder),
		logPool:     workpool.New(cfg.LogPool, recorder),
		summaryPool: workpool.New(cfg.SummaryPool, recorder),
		snapshot:    Snapshot{Phase: PhaseIdle},
		outcomes:    make(map[string]job.Outcome),
	}
}

// Close drains the worker pools.
func (c *Coordinator) Close(ctx context.Context) error {
	return errors.Join(
		c.submitPool.Close(ctx),
		c.pollPool.Close(ctx),
		c.logPool.Close(ctx),
		c.summaryPool.Close(ctx),
	)
}

// Run executes spec to completion. Per-job failures are part of the report;
// an error is returned only for invalid input, setup failure, cancellation
// or when the run exceeds its time budget.
func (c *Coordinator) Run(ctx context.Context, spec *study.StudySpec) (*Result, error) {
	if !c.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.runMu.Unlock()

	if err := spec.Validate(c.now()); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := c.now()
	logger := c.logger.With("runId", runID, "study", spec.Name)
	tracker := progress.NewTracker(c.store, spec.Name+".progress")
	c.begin(runID, spec, start)

	res, err := c.run(ctx, spec, runID, tracker, logger)
	duration := c.now().Sub(start)
	if c.metrics != nil {
		c.metrics.RecordRun(ctx, err == nil, duration.Seconds())
	}
	if err != nil {
		c.setPhase(PhaseFailed)
		logger.Error("Run failed", "error", err, "duration", duration)
		return nil, err
	}

	res.Duration = duration
	c.setPhase(PhaseDone)
	logger.Info("Run complete",
		"jobs", len(res.Report.Entries),
		"ok", res.Report.OK,
		"failed", res.Report.Failed,
		"results", res.Report.Results,
		"report", res.ReportPath,
		"duration", duration,
	)
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, spec *study.StudySpec, runID string, tracker *progress.Tracker, logger *slog.Logger) (*Result, error) {
	setProgress(tracker, 0, logger)

	c.setPhase(PhasePlanning)
	p, err := c.planJobs(ctx, spec)
	if err != nil {
		return nil, err
	}
	if p.skipped > 0 {
		logger.Warn("Batch cap reached, items skipped", "maxBatches", spec.MaxBatches, "skipped", p.skipped)
	}
	logger.Info("Run planned", "jobs", len(p.jobs), "kind", study.StudyKindName(spec.Kind))
	c.setJobs(p.jobs)

	c.reporter.StartNewReport(runID, report.Header{
		Title:    spec.Title,
		Settings: settings(spec, p),
		Skipped:  p.skipped,
	})

	timeout := spec.RunTimeout(p.batches)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.setPhase(PhaseScatter)
	runs := c.scatter(runCtx, p.jobs, tracker, logger)
	if err := runError(ctx, runCtx, "gather", timeout); err != nil {
		return nil, err
	}

	c.setPhase(PhasePostprocess)
	results := c.process(runCtx, runs, tracker, logger)
	if err := runError(ctx, runCtx, "post-processing", timeout); err != nil {
		return nil, err
	}

	c.setPhase(PhaseAggregate)
	rep, tables := c.aggregate(runs, results, logger)
	res, err := c.persist(spec, rep, tables)
	if err != nil {
		return nil, err
	}
	setProgress(tracker, 1, logger)
	return res, nil
}

// runError converts the end of the run context into a run-level error.
func runError(parent, runCtx context.Context, phase string, timeout time.Duration) error {
	if err := parent.Err(); err != nil {
		return apperrors.Internal("run", err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return apperrors.RunTimeout(phase, timeout)
	}
	return nil
}

func setProgress(t *progress.Tracker, fraction float64, logger *slog.Logger) {
	if _, err := t.Set(fraction); err != nil {
		logger.Warn("Failed to write progress", "error", err)
	}
}
