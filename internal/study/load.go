package study

import (
	"bytes"
	"cropstudy/internal/apperrors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// studyFile is the YAML form of a StudySpec. Exactly one selection block is set.
type studyFile struct {
	Name                string `yaml:"name"`
	Title               string `yaml:"title"`
	BatchSize           *int   `yaml:"batchSize"`
	MaxBatches          *int   `yaml:"maxBatches"`
	BatchTimeoutSeconds *int   `yaml:"batchTimeoutSeconds"`
	Selection           struct {
		FieldIDs      []string `yaml:"fieldIds"`
		Geometry      string   `yaml:"geometry"`
		Crop          int      `yaml:"crop"`
		Year          int      `yaml:"year"`
		ParameterFile string   `yaml:"parameterFile"`
		Sweep         *struct {
			BaseFile  string  `yaml:"baseFile"`
			Parameter string  `yaml:"parameter"`
			Min       float64 `yaml:"min"`
			Max       float64 `yaml:"max"`
			Steps     int     `yaml:"steps"`
		} `yaml:"sweep"`
	} `yaml:"selection"`
}

// LoadFile reads a YAML study definition. Absent batch keys get their
// defaults; validation is left to the caller.
func LoadFile(path string) (*StudySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Validation("study", fmt.Sprintf("cannot read study file: %v", err))
	}
	return Parse(data)
}

// Parse decodes a YAML study definition.
func Parse(data []byte) (*StudySpec, error) {
	var f studyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, apperrors.Validation("study", fmt.Sprintf("invalid study file: %v", err))
	}

	spec := &StudySpec{
		Name:                f.Name,
		Title:               f.Title,
		BatchSize:           orDefault(f.BatchSize, DefaultBatchSize),
		MaxBatches:          orDefault(f.MaxBatches, DefaultMaxBatches),
		BatchTimeoutSeconds: orDefault(f.BatchTimeoutSeconds, DefaultBatchTimeoutSeconds),
	}

	sel := f.Selection
	set := 0
	if len(sel.FieldIDs) > 0 {
		spec.Kind = FieldSet{FieldIDs: sel.FieldIDs, Year: sel.Year}
		set++
	}
	if sel.Geometry != "" {
		spec.Kind = GeometrySelection{Geometry: sel.Geometry, CropCode: sel.Crop, Year: sel.Year}
		set++
	}
	if sel.ParameterFile != "" {
		spec.Kind = ParameterFileStudy{Path: sel.ParameterFile}
		set++
	}
	if sel.Sweep != nil {
		spec.Kind = SweepStudy{
			BaseFile:  sel.Sweep.BaseFile,
			Parameter: sel.Sweep.Parameter,
			Min:       sel.Sweep.Min,
			Max:       sel.Sweep.Max,
			Steps:     sel.Sweep.Steps,
		}
		set++
	}
	if set > 1 {
		return nil, apperrors.Validation("selection", "exactly one selection must be given")
	}

	spec.ApplyDefaults()
	return spec, nil
}

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
