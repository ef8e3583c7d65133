package study

import (
	"cropstudy/internal/apperrors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validation limits
const (
	MinBatchSize    = 10
	MaxBatchSize    = 5000
	minYear         = 1950
	maxBatchTimeout = 7 * 24 * 3600
	maxStudyNameLen = 64
	maxFieldIDs     = 100000
	maxSweepSteps   = 1000

	// MaxMaxBatches keeps four-digit job id suffixes in lexical order.
	MaxMaxBatches = 9999
)

// Defaults for batch settings a study file leaves out.
const (
	DefaultBatchSize           = 1000
	DefaultMaxBatches          = 10
	DefaultBatchTimeoutSeconds = 3600
)

// studyNamePattern keeps names usable as job id prefixes and file names.
var studyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ApplyDefaults fills the title. Batch settings are never defaulted here so
// that Validate sees out-of-range values as given.
func (s *StudySpec) ApplyDefaults() {
	if s.Title == "" {
		s.Title = s.Name
	}
}

// Validate checks a study against the accepted ranges. now bounds the
// simulation year. Does not modify the study.
func (s *StudySpec) Validate(now time.Time) error {
	if s.Name == "" {
		return apperrors.Validation("name", "study name is required")
	}
	if len(s.Name) > maxStudyNameLen {
		return apperrors.Validation("name", fmt.Sprintf("study name exceeds maximum length of %d", maxStudyNameLen))
	}
	if !studyNamePattern.MatchString(s.Name) {
		return apperrors.Validation("name", "study name must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	if s.BatchSize < MinBatchSize || s.BatchSize > MaxBatchSize {
		return apperrors.Validation("batchSize", fmt.Sprintf("batch size must be between %d and %d", MinBatchSize, MaxBatchSize))
	}
	if s.MaxBatches < 1 || s.MaxBatches > MaxMaxBatches {
		return apperrors.Validation("maxBatches", fmt.Sprintf("max batches must be between 1 and %d", MaxMaxBatches))
	}
	if s.BatchTimeoutSeconds < 1 || s.BatchTimeoutSeconds > maxBatchTimeout {
		return apperrors.Validation("batchTimeoutSeconds", fmt.Sprintf("batch timeout must be between 1 and %d seconds", maxBatchTimeout))
	}

	switch k := s.Kind.(type) {
	case FieldSet:
		if len(k.FieldIDs) == 0 {
			return apperrors.Validation("fieldIds", "at least one field id is required")
		}
		if len(k.FieldIDs) > maxFieldIDs {
			return apperrors.Validation("fieldIds", fmt.Sprintf("field ids exceed maximum of %d", maxFieldIDs))
		}
		for _, id := range k.FieldIDs {
			if strings.TrimSpace(id) == "" || strings.Contains(id, ",") {
				return apperrors.Validation("fieldIds", fmt.Sprintf("invalid field id %q", id))
			}
		}
		return validateYear(k.Year, now)
	case GeometrySelection:
		if strings.TrimSpace(k.Geometry) == "" {
			return apperrors.Validation("geometry", "geometry is required")
		}
		if _, ok := SupportedCrops[k.CropCode]; !ok {
			return apperrors.Validation("crop", fmt.Sprintf("crop code %d is not supported", k.CropCode))
		}
		return validateYear(k.Year, now)
	case ParameterFileStudy:
		if k.Path == "" {
			return apperrors.Validation("path", "parameter file path is required")
		}
	case SweepStudy:
		if k.BaseFile == "" {
			return apperrors.Validation("baseFile", "base parameter file is required")
		}
		if k.Parameter == "" {
			return apperrors.Validation("parameter", "sweep parameter is required")
		}
		if k.Steps < 1 || k.Steps > maxSweepSteps {
			return apperrors.Validation("steps", fmt.Sprintf("steps must be between 1 and %d", maxSweepSteps))
		}
		if k.Max < k.Min {
			return apperrors.Validation("max", "sweep max must not be below min")
		}
	case nil:
		return apperrors.Validation("selection", "a selection is required")
	default:
		return apperrors.Validation("selection", fmt.Sprintf("unsupported selection %T", k))
	}
	return nil
}

func validateYear(year int, now time.Time) error {
	if year < minYear {
		return apperrors.Validation("year", fmt.Sprintf("year must be %d or later", minYear))
	}
	if year > now.Year() {
		return apperrors.Validation("year", fmt.Sprintf("year %d is in the future", year))
	}
	return nil
}
