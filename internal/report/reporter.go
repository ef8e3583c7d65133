package report

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

// ErrNotCollecting is returned when a record arrives outside a collection.
var ErrNotCollecting = errors.New("reporter is not collecting")

// State of a Reporter.
type State int

const (
	Empty State = iota
	Collecting
	Finalized
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Collecting:
		return "collecting"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Header describes the run a report is collected for.
type Header struct {
	Title    string
	Settings map[string]string // study settings shown with the report
	Skipped  int               // items left out by the batch cap
}

// Footer carries the run tallies known once collection is complete.
type Footer struct {
	OK      int
	Failed  int
	Results int
}

// NamedValue is one detail of an entry.
type NamedValue struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Entry is one job's row in the report.
type Entry struct {
	JobID  string       `json:"jobId"`
	Values []NamedValue `json:"values"`
}

// Get returns the value named name.
func (e Entry) Get(name string) (Value, bool) {
	for _, nv := range e.Values {
		if nv.Name == name {
			return nv.Value, true
		}
	}
	return Value{}, false
}

// RunReport is the final artifact of a run. Entries are sorted by job id
// and values by name, so the same records give the same report regardless
// of arrival order.
type RunReport struct {
	RunID       string            `json:"runId"`
	Title       string            `json:"title"`
	Settings    map[string]string `json:"settings,omitempty"`
	Entries     []Entry           `json:"entries"`
	OK          int               `json:"ok"`
	Failed      int               `json:"failed"`
	Results     int               `json:"results"`
	Skipped     int               `json:"skipped"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Columns returns the union of detail names over all entries, sorted.
func (r *RunReport) Columns() []string {
	seen := make(map[string]struct{})
	for _, e := range r.Entries {
		for _, nv := range e.Values {
			seen[nv.Name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Reporter accumulates records for one run. Safe for concurrent use.
//
//	Empty -> Collecting -> Finalized
//
// StartNewReport may be called in any state and restarts collection.
type Reporter struct {
	mu      sync.Mutex
	state   State
	runID   string
	header  Header
	records map[string]Record
	final   *RunReport
	now     func() time.Time
}

// NewReporter creates an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{now: time.Now}
}

// StartNewReport discards any collected records and starts collecting for runID.
func (r *Reporter) StartNewReport(runID string, header Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Collecting
	r.runID = runID
	r.header = header
	r.records = make(map[string]Record)
	r.final = nil
}

// AddRecord merges rec into the record for jobID.
func (r *Reporter) AddRecord(jobID string, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Collecting {
		return ErrNotCollecting
	}
	r.records[jobID] = Merge(r.records[jobID], rec)
	return nil
}

// Finalize ends collection and builds the report from what has arrived.
// On an empty reporter it returns an empty report; once finalized it keeps
// returning the same report until the next StartNewReport.
func (r *Reporter) Finalize(footer Footer) *RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Finalized:
		return r.final
	case Empty:
		return &RunReport{Entries: []Entry{}, GeneratedAt: r.now()}
	}

	entries := make([]Entry, 0, len(r.records))
	for _, jobID := range slices.Sorted(maps.Keys(r.records)) {
		rec := r.records[jobID]
		values := make([]NamedValue, 0, len(rec))
		for _, name := range slices.Sorted(maps.Keys(rec)) {
			values = append(values, NamedValue{Name: name, Value: rec[name]})
		}
		entries = append(entries, Entry{JobID: jobID, Values: values})
	}

	r.final = &RunReport{
		RunID:       r.runID,
		Title:       r.header.Title,
		Settings:    maps.Clone(r.header.Settings),
		Entries:     entries,
		OK:          footer.OK,
		Failed:      footer.Failed,
		Results:     footer.Results,
		Skipped:     r.header.Skipped,
		GeneratedAt: r.now(),
	}
	r.state = Finalized
	r.records = nil
	return r.final
}

// State returns the current state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Len returns the number of jobs with a record in the current collection.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
