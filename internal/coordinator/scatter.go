package coordinator

import (
	"context"
	"cropstudy/internal/job"
	"cropstudy/internal/progress"
	"cropstudy/internal/study"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Share of the progress bar covered by the scatter/gather phase.
const gatherShare = 0.8

// jobRun is what the gather phase knows about one job.
type jobRun struct {
	spec     study.JobSpec
	rejected bool        // the submission was refused
	final    job.Outcome // Succeeded or Failed
}

// scatter submits every job and polls it to a terminal outcome, then joins.
// Each job ends in exactly one final outcome; a job that could not be
// scheduled fails with the scheduling error as its reason. Results are in
// plan order.
func (c *Coordinator) scatter(ctx context.Context, jobs []study.JobSpec, tracker *progress.Tracker, logger *slog.Logger) []jobRun {
	runs := make([]jobRun, len(jobs))
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)

	finish := func(i int, rejected bool, o job.Outcome) {
		runs[i] = jobRun{spec: jobs[i], rejected: rejected, final: o}
		c.recordOutcome(o)
		n := done.Add(1)
		setProgress(tracker, gatherShare*float64(n)/float64(len(jobs)), logger)
		wg.Done()
	}

	for i, spec := range jobs {
		wg.Add(1)
		delay := c.submitter.Jitter()
		err := c.submitPool.Submit(ctx, func() {
			submitted := c.submitter.Submit(ctx, spec, delay)
			c.recordOutcome(submitted)
			rejected := submitted.State == job.StateSubmitRejected

			err := c.pollPool.Submit(ctx, func() {
				finish(i, rejected, c.poller.Run(ctx, submitted))
			})
			if err != nil {
				logger.Warn("Could not schedule poll", "jobId", spec.ID, "error", err)
				finish(i, rejected, failPending(submitted, fmt.Sprintf("poll not scheduled: %v", err)))
			}
		})
		if err != nil {
			logger.Warn("Could not schedule submission", "jobId", spec.ID, "error", err)
			finish(i, false, job.Failed(spec.ID, fmt.Sprintf("submission not scheduled: %v", err), ""))
		}
	}

	wg.Wait()
	return runs
}

// failPending turns an outcome that never reached the poller into a final one.
func failPending(o job.Outcome, reason string) job.Outcome {
	switch o.State {
	case job.StateSubmitRejected:
		return job.Failed(o.JobID, o.Reason, "")
	case job.StateAccepted:
		failed, _ := o.Advance(job.Failed(o.JobID, reason, ""))
		return failed
	default:
		return o
	}
}
