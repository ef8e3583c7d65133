package postprocess

import (
	"bytes"
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/observability"
	"cropstudy/internal/report"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// Summary detail keys.
const (
	KeyResults = "results"
	KeyArea    = "sum(AREA)[Ha]"
	KeyTAGP    = "avg(TAGP_END)[Kg/Ha]"
	KeyHI      = "avg(HI_END)"
	KeyLAI     = "avg(LAI_MAX)"
	KeyTSUM    = "avg(TSUM_END)[Cd]"
	KeyDVS     = "count(DVS<2)"
	studyKey   = "study."
)

// DVSThreshold is the development stage below which a crop has not matured.
const DVSThreshold = 2.0

const squareMetresPerHectare = 10_000

// meanFields maps result fields to their averaged detail key.
var meanFields = []struct{ field, key string }{
	{"tagp_end", KeyTAGP},
	{"hi_end", KeyHI},
	{"lai_max", KeyLAI},
	{"tsum_end", KeyTSUM},
}

// Result fields read outside meanFields.
const (
	fieldArea = "area"
	fieldDVS  = "dvs_end"
)

// SummaryProcessor aggregates the per-field results of a job.
type SummaryProcessor struct {
	base
}

// NewSummaryProcessor creates a summary processor. metrics may be nil.
func NewSummaryProcessor(gw Getter, credential string, metrics *observability.Metrics) *SummaryProcessor {
	return &SummaryProcessor{base{
		gw:         gw,
		credential: credential,
		logger:     slog.With("component", "postprocess", "processor", "summary"),
		metrics:    metrics,
	}}
}

// Name returns "summary".
func (p *SummaryProcessor) Name() string { return "summary" }

// Process fetches the summary at summaryURL and aggregates it.
func (p *SummaryProcessor) Process(ctx context.Context, jobID, summaryURL string) Result {
	res := Result{JobID: jobID, Processor: p.Name()}
	if summaryURL == "" {
		res.Err = ErrNoArtifact
		return p.record(ctx, res)
	}

	body, err := p.gw.Get(ctx, summaryURL, p.credential)
	if err != nil {
		res.Err = apperrors.PostProcessingFailed(jobID, "summary.fetch", err)
		return p.record(ctx, res)
	}

	sum, err := Summarize(body)
	if err != nil {
		res.Err = apperrors.PostProcessingFailed(jobID, "summary.parse", err)
		return p.record(ctx, res)
	}
	if len(sum.Degraded) > 0 {
		p.logger.Warn("Summary statistics degraded", "jobId", jobID, "fields", sum.Degraded)
	}

	res.Details = sum.Details
	res.Rows = sum.Rows
	return p.record(ctx, res)
}

// Summary is the reduction of one summary document.
type Summary struct {
	Details  report.Record
	Rows     int
	Degraded []string // fields that could not be read and were reported as zero
}

// Summarize reduces a summary document. Only a document that is not a JSON
// object fails; a missing or malformed field zeroes the statistics that
// depend on it.
func Summarize(doc []byte) (Summary, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return Summary{}, err
	}
	if top == nil {
		return Summary{}, fmt.Errorf("summary is not an object")
	}

	a := newAggregator()
	var results []json.RawMessage
	if raw, ok := top["results"]; ok {
		if err := json.Unmarshal(raw, &results); err != nil {
			a.degrade(KeyResults)
		}
	} else {
		a.degrade(KeyResults)
	}
	for _, raw := range results {
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
			rec = map[string]json.RawMessage{}
		}
		a.add(rec)
	}

	details := a.details(len(results))
	if raw, ok := top["study"]; ok {
		var meta map[string]json.RawMessage
		if json.Unmarshal(raw, &meta) == nil {
			for k, v := range meta {
				if s, ok := scalar(v); ok {
					details[studyKey+k] = report.Str(s)
				}
			}
		}
	}
	return Summary{Details: details, Rows: len(results), Degraded: a.order}, nil
}

type aggregator struct {
	area     float64
	means    map[string]*RunningMean
	dvsBelow int64
	degraded map[string]bool
	order    []string
}

func newAggregator() *aggregator {
	a := &aggregator{means: make(map[string]*RunningMean), degraded: make(map[string]bool)}
	for _, f := range meanFields {
		a.means[f.key] = &RunningMean{}
	}
	return a
}

func (a *aggregator) degrade(key string) {
	if !a.degraded[key] {
		a.degraded[key] = true
		a.order = append(a.order, key)
	}
}

func (a *aggregator) add(rec map[string]json.RawMessage) {
	if v, err := number(rec, fieldArea); err == nil {
		a.area += v
	} else {
		a.degrade(KeyArea)
	}
	for _, f := range meanFields {
		if v, err := number(rec, f.field); err == nil {
			a.means[f.key].Add(v)
		} else {
			a.degrade(f.key)
		}
	}
	if v, err := number(rec, fieldDVS); err == nil {
		if v < DVSThreshold {
			a.dvsBelow++
		}
	} else {
		a.degrade(KeyDVS)
	}
}

func (a *aggregator) details(rows int) report.Record {
	d := report.Record{
		KeyResults: report.Int(int64(rows)),
		KeyArea:    report.Float(a.area / squareMetresPerHectare),
		KeyDVS:     report.Int(a.dvsBelow),
	}
	for _, f := range meanFields {
		d[f.key] = report.Float(a.means[f.key].Mean())
	}
	for key := range a.degraded {
		switch d[key].Kind() {
		case report.KindFloat:
			d[key] = report.Float(0)
		default:
			d[key] = report.Int(0)
		}
	}
	return d
}

func number(rec map[string]json.RawMessage, field string) (float64, error) {
	raw, ok := rec[field]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return 0, fmt.Errorf("missing field %s", field)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return v, nil
}

// scalar renders a JSON string, number or boolean as text.
func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		b, err := strconv.ParseBool(string(raw))
		return strconv.FormatBool(b), err == nil
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}
