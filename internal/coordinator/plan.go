package coordinator

import (
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/bundle"
	"cropstudy/internal/study"
	"encoding/json"
	"fmt"
	"math"
)

// plan is the list of jobs a study expands to.
type plan struct {
	jobs    []study.JobSpec
	batches int
	skipped int // items left out by the batch cap
}

// planJobs expands spec into jobs. A failure to reach the data service or
// to load parameters is fatal to the run.
func (c *Coordinator) planJobs(ctx context.Context, spec *study.StudySpec) (plan, error) {
	switch k := spec.Kind.(type) {
	case study.FieldSet:
		batches, skipped := study.Partition(k.FieldIDs, spec.BatchSize, spec.MaxBatches)
		kinds := make([]study.JobKind, len(batches))
		for i, ids := range batches {
			kinds[i] = study.ByFieldIDs{FieldIDs: ids, Year: k.Year}
		}
		return c.newPlan(spec, kinds, skipped), nil

	case study.GeometrySelection:
		if c.data == nil {
			return plan{}, apperrors.RunSetup("datasource.countFields", fmt.Errorf("no data service configured"))
		}
		total, err := c.data.CountFields(ctx, k.Geometry, k.CropCode, k.Year)
		if err != nil {
			return plan{}, apperrors.RunSetup("datasource.countFields", err)
		}
		windows, skipped := study.Windows(total, spec.BatchSize, spec.MaxBatches)
		kinds := make([]study.JobKind, len(windows))
		for i, w := range windows {
			kinds[i] = study.ByGeometry{
				Geometry: k.Geometry,
				CropCode: k.CropCode,
				Year:     k.Year,
				Offset:   w.Offset,
				Limit:    w.Limit,
			}
		}
		return c.newPlan(spec, kinds, skipped), nil

	case study.ParameterFileStudy:
		b, err := c.loadParameters(ctx, k.Path)
		if err != nil {
			return plan{}, err
		}
		data, err := json.Marshal(b)
		if err != nil {
			return plan{}, apperrors.RunSetup("parameters.encode", err)
		}
		return c.newPlan(spec, []study.JobKind{study.ByParameterFile{Path: k.Path, Bundle: data}}, 0), nil

	case study.SweepStudy:
		base, err := c.loadParameters(ctx, k.BaseFile)
		if err != nil {
			return plan{}, err
		}
		if _, ok := base.Get(k.Parameter); !ok {
			return plan{}, apperrors.Validation("parameter",
				fmt.Sprintf("parameter %s is not set in %s", k.Parameter, k.BaseFile))
		}
		values, err := study.SweepValues(k.Min, k.Max, k.Steps)
		if err != nil {
			return plan{}, apperrors.Validation("steps", err.Error())
		}
		n := study.BatchCount(len(values), 1, spec.MaxBatches)
		kinds := make([]study.JobKind, n)
		for i, v := range values[:n] {
			data, err := sweepBundle(base, k.Parameter, v)
			if err != nil {
				return plan{}, apperrors.RunSetup("parameters.encode", err)
			}
			kinds[i] = study.ParameterSweep{BaseFile: k.BaseFile, Parameter: k.Parameter, Value: v, Bundle: data}
		}
		return c.newPlan(spec, kinds, len(values)-n), nil

	default:
		return plan{}, apperrors.Validation("selection", "a field list, geometry, parameter file or sweep is required")
	}
}

func (c *Coordinator) newPlan(spec *study.StudySpec, kinds []study.JobKind, skipped int) plan {
	jobs := make([]study.JobSpec, len(kinds))
	for i, kind := range kinds {
		jobs[i] = study.JobSpec{
			ID:             study.JobID(spec.Name, i+1),
			Title:          fmt.Sprintf("%s (%d/%d)", spec.Title, i+1, len(kinds)),
			TimeoutSeconds: spec.BatchTimeoutSeconds,
			Kind:           kind,
		}
	}
	return plan{jobs: jobs, batches: len(jobs), skipped: skipped}
}

func (c *Coordinator) loadParameters(ctx context.Context, path string) (*bundle.Bundle, error) {
	if c.params == nil {
		return nil, apperrors.RunSetup("parameters.load", fmt.Errorf("no parameter library configured"))
	}
	b, err := c.params.LoadFile(ctx, path)
	if err != nil {
		return nil, apperrors.RunSetup("parameters.load", err)
	}
	return b, nil
}

// sweepBundle encodes base with parameter replaced by value. An integer
// parameter stays an integer.
func sweepBundle(base *bundle.Bundle, parameter string, value float64) ([]byte, error) {
	b := base.Clone()
	if old, _ := b.Get(parameter); old != nil && old.Type() == bundle.TypeInt {
		b.Set(parameter, bundle.Int(int64(math.Round(value))))
	} else {
		b.Set(parameter, bundle.Double(value))
	}
	return json.Marshal(b)
}
