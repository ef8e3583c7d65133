package coordinator

import (
	"context"
	"cropstudy/internal/postprocess"
	"cropstudy/internal/progress"
	"cropstudy/internal/report"
	"cropstudy/internal/workpool"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Share of the progress bar reached when post-processing is complete.
const processedShare = 0.95

// processed holds the post-processing results of one job. Zero values mean
// the processor did not run.
type processed struct {
	log     postprocess.Result
	summary postprocess.Result
	states  *report.StatesTable
}

// process runs the log processor for every job with a log and the summary
// processor (plus the states fetch) for every succeeded job, then joins.
func (c *Coordinator) process(ctx context.Context, runs []jobRun, tracker *progress.Tracker, logger *slog.Logger) []processed {
	results := make([]processed, len(runs))
	var (
		wg    sync.WaitGroup
		tasks int
		done  atomic.Int64
	)
	for _, r := range runs {
		if r.final.LogURL != "" {
			tasks++
		}
		if r.final.Success() {
			tasks++
		}
	}

	step := func() {
		n := done.Add(1)
		setProgress(tracker, gatherShare+(processedShare-gatherShare)*float64(n)/float64(tasks), logger)
		wg.Done()
	}
	schedule := func(pool *workpool.Pool, jobID, processor string, task func(), fail func(error)) {
		wg.Add(1)
		err := pool.Submit(ctx, func() {
			defer step()
			task()
		})
		if err != nil {
			logger.Warn("Could not schedule post-processing", "jobId", jobID, "processor", processor, "error", err)
			fail(err)
			step()
		}
	}

	for i, r := range runs {
		jobID := r.spec.ID
		if logURL := r.final.LogURL; logURL != "" {
			schedule(c.logPool, jobID, "log",
				func() { results[i].log = c.logs.Process(ctx, jobID, logURL) },
				func(err error) { results[i].log = unscheduled(jobID, "log", err) })
		}
		if r.final.Success() {
			summaryURL, statesURL := r.final.SummaryURL, r.final.StatesURL
			schedule(c.summaryPool, jobID, "summary",
				func() {
					results[i].summary = c.summaries.Process(ctx, jobID, summaryURL)
					if c.states == nil || statesURL == "" {
						return
					}
					if table, err := c.states.Fetch(ctx, jobID, statesURL); err == nil {
						results[i].states = &table
					}
				},
				func(err error) { results[i].summary = unscheduled(jobID, "summary", err) })
		}
	}

	wg.Wait()
	return results
}

func unscheduled(jobID, processor string, err error) postprocess.Result {
	return postprocess.Result{
		JobID:     jobID,
		Processor: processor,
		Err:       errors.Join(fmt.Errorf("%s not scheduled", processor), err),
	}
}
