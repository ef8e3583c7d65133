// Package study defines job and study specifications and how a study is
// partitioned into jobs.
package study

import (
	"fmt"
	"time"
)

// JobSpec is an immutable description of one unit of remote work.
type JobSpec struct {
	ID             string
	Title          string
	TimeoutSeconds int
	Kind           JobKind
}

// JobKind is the closed set of job variants. Each variant carries what the
// submitter needs to build its request.
type JobKind interface {
	jobKind() string
}

// ByFieldIDs simulates an explicit list of fields for one year.
type ByFieldIDs struct {
	FieldIDs []string
	Year     int
}

// ByGeometry simulates a window of the fields that intersect a geometry.
// Offset and Limit page through the service-side field selection.
type ByGeometry struct {
	Geometry string // WKT
	CropCode int
	Year     int
	Offset   int
	Limit    int
}

// ByParameterFile runs the model with a parameter bundle read from a file.
type ByParameterFile struct {
	Path   string
	Bundle []byte // JSON-encoded bundle
}

// ParameterSweep runs the model with one parameter of a base file replaced.
type ParameterSweep struct {
	BaseFile  string
	Parameter string
	Value     float64
	Bundle    []byte // JSON-encoded bundle with Parameter already set
}

func (ByFieldIDs) jobKind() string      { return "fieldIds" }
func (ByGeometry) jobKind() string      { return "geometry" }
func (ByParameterFile) jobKind() string { return "parameterFile" }
func (ParameterSweep) jobKind() string  { return "parameterSweep" }

// KindName returns the short name of a job's variant, for logs and reports.
func KindName(k JobKind) string {
	if k == nil {
		return "unknown"
	}
	return k.jobKind()
}

// StudySpec describes one orchestration run.
type StudySpec struct {
	Name                string
	Title               string
	Kind                StudyKind
	BatchSize           int
	MaxBatches          int
	BatchTimeoutSeconds int
}

// StudyKind is the closed set of batch selections.
type StudyKind interface {
	studyKind() string
}

// FieldSet selects an explicit list of fields.
type FieldSet struct {
	FieldIDs []string
	Year     int
}

// GeometrySelection selects all fields of a crop inside a geometry.
type GeometrySelection struct {
	Geometry string
	CropCode int
	Year     int
}

// ParameterFileStudy runs a single parameter file.
type ParameterFileStudy struct {
	Path string
}

// SweepStudy varies one parameter of a base file over [Min, Max] in Steps values.
type SweepStudy struct {
	BaseFile  string
	Parameter string
	Min       float64
	Max       float64
	Steps     int
}

func (FieldSet) studyKind() string           { return "fieldSet" }
func (GeometrySelection) studyKind() string  { return "geometry" }
func (ParameterFileStudy) studyKind() string { return "parameterFile" }
func (SweepStudy) studyKind() string         { return "sweep" }

// StudyKindName returns the short name of a study's variant.
func StudyKindName(k StudyKind) string {
	if k == nil {
		return "unknown"
	}
	return k.studyKind()
}

// RunTimeout is the overall budget for a run of the given number of batches.
func (s *StudySpec) RunTimeout(batches int) time.Duration {
	if batches < 1 {
		batches = 1
	}
	return time.Duration(batches) * time.Duration(s.BatchTimeoutSeconds) * time.Second
}

// JobID derives the id of the index-th job of a study. The index is zero
// padded so that lexical order of ids equals submission order.
func JobID(studyName string, index int) string {
	return fmt.Sprintf("%s-%04d", studyName, index)
}

// SupportedCrops is the allow-list of crop codes accepted for geometry studies.
var SupportedCrops = map[int]string{
	233:  "winter wheat",
	234:  "spring wheat",
	236:  "spring barley",
	256:  "sugar beet",
	259:  "silage maize",
	2014: "ware potato",
	2015: "seed potato",
}
