package coordinator

import (
	"cropstudy/internal/job"
	"cropstudy/internal/study"
	"cropstudy/internal/workpool"
	"maps"
	"slices"
	"time"
)

// Phase of a run.
type Phase string

// Phase constants
const (
	PhaseIdle        Phase = "idle"
	PhasePlanning    Phase = "planning"
	PhaseScatter     Phase = "scatter"
	PhasePostprocess Phase = "postprocess"
	PhaseAggregate   Phase = "aggregate"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// Snapshot is a point-in-time view of the current or last run.
type Snapshot struct {
	RunID     string           `json:"runId,omitempty"`
	Study     string           `json:"study,omitempty"`
	Phase     Phase            `json:"phase"`
	StartedAt time.Time        `json:"startedAt,omitzero"`
	Jobs      int              `json:"jobs"`
	Accepted  int              `json:"accepted"`
	Rejected  int              `json:"rejected"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Pools     []workpool.Stats `json:"pools,omitempty"`
}

// Snapshot returns live run counts and pool statistics.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	s := c.snapshot
	c.mu.RUnlock()

	s.Pools = []workpool.Stats{
		c.submitPool.Stats(),
		c.pollPool.Stats(),
		c.logPool.Stats(),
		c.summaryPool.Stats(),
	}
	return s
}

// Job returns the latest known outcome of a job of the current or last run.
func (c *Coordinator) Job(jobID string) (job.Outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.outcomes[jobID]
	return o, ok
}

// JobIDs returns the ids of the jobs of the current or last run, sorted.
func (c *Coordinator) JobIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.outcomes))
}

func (c *Coordinator) begin(runID string, spec *study.StudySpec, start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = Snapshot{RunID: runID, Study: spec.Name, Phase: PhasePlanning, StartedAt: start}
	c.outcomes = make(map[string]job.Outcome)
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Phase = p
}

// setJobs registers the planned jobs as pending.
func (c *Coordinator) setJobs(jobs []study.JobSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Jobs = len(jobs)
	for _, j := range jobs {
		c.outcomes[j.ID] = job.Outcome{JobID: j.ID}
	}
}

// recordOutcome stores o as the latest outcome of its job and updates the
// counts. An outcome replaces the previous one of the same job.
func (c *Coordinator) recordOutcome(o job.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.outcomes[o.JobID]
	c.count(prev.State, -1)
	c.count(o.State, 1)
	c.outcomes[o.JobID] = o
}

func (c *Coordinator) count(s job.State, delta int) {
	switch s {
	case job.StateAccepted:
		c.snapshot.Accepted += delta
	case job.StateSubmitRejected:
		c.snapshot.Rejected += delta
	case job.StateSucceeded:
		c.snapshot.Succeeded += delta
	case job.StateFailed:
		c.snapshot.Failed += delta
	}
}
