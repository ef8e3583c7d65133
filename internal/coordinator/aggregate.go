package coordinator

import (
	"cropstudy/internal/apperrors"
	"cropstudy/internal/postprocess"
	"cropstudy/internal/report"
	"cropstudy/internal/study"
	"errors"
	"io"
	"log/slog"
	"strconv"
)

// Detail keys added by the coordinator.
const (
	KeyStatus = "status"
	KeyReason = "reason"
)

// Job statuses shown in the report.
const (
	StatusSucceeded     = "succeeded"
	StatusRejected      = "rejected"
	StatusFailed        = "failed"
	StatusUnprocessable = "unprocessable"
)

// aggregate feeds every job's details to the reporter and finalizes the
// report. Every planned job gets a row, failed ones with a status and reason.
func (c *Coordinator) aggregate(runs []jobRun, results []processed, logger *slog.Logger) (*report.RunReport, []report.StatesTable) {
	var (
		footer report.Footer
		tables []report.StatesTable
	)

	for i, r := range runs {
		res := results[i]
		jobID := r.spec.ID
		rec := report.Record{}
		logFailed := res.log.Err != nil && !errors.Is(res.log.Err, postprocess.ErrNoArtifact)

		switch {
		case r.rejected:
			rec[KeyStatus] = report.Str(StatusRejected)
			rec[KeyReason] = report.Str(r.final.Reason)
		case !r.final.Success():
			rec[KeyStatus] = report.Str(StatusFailed)
			rec[KeyReason] = report.Str(r.final.Reason)
		case res.summary.Err != nil:
			rec[KeyStatus] = report.Str(StatusUnprocessable)
			rec[KeyReason] = report.Str(apperrors.Reason(res.summary.Err))
		case logFailed:
			rec[KeyStatus] = report.Str(StatusUnprocessable)
			rec[KeyReason] = report.Str(apperrors.Reason(res.log.Err))
		default:
			rec[KeyStatus] = report.Str(StatusSucceeded)
		}

		if res.log.Details != nil {
			rec = report.Merge(rec, res.log.Details)
		} else if logFailed {
			logger.Warn("Log not processed", "jobId", jobID, "error", res.log.Err)
		}
		if res.summary.Details != nil {
			rec = report.Merge(rec, res.summary.Details)
		}
		if err := c.reporter.AddRecord(jobID, rec); err != nil {
			logger.Error("Record dropped", "jobId", jobID, "error", err)
		}

		// A job is ok only once its log was read and holds no error lines.
		if r.final.Success() && !logFailed && res.log.Errors == 0 {
			footer.OK++
		} else {
			footer.Failed++
		}
		footer.Results += res.summary.Rows
		if res.states != nil {
			tables = append(tables, *res.states)
		}
	}

	return c.reporter.Finalize(footer), tables
}

// persist writes the report and the states export.
func (c *Coordinator) persist(spec *study.StudySpec, rep *report.RunReport, tables []report.StatesTable) (*Result, error) {
	render := report.WriteHTML
	if c.config.Format == FormatJSON {
		render = report.WriteJSON
	}
	reportPath, err := c.store.Write(spec.Name+"-report."+c.config.Format, func(w io.Writer) error {
		return render(w, rep)
	})
	if err != nil {
		return nil, apperrors.Internal("report.write", err)
	}

	statesPath, err := c.store.Write(spec.Name+"-states.csv", func(w io.Writer) error {
		if len(tables) == 0 {
			return report.WriteStatesPlaceholder(w)
		}
		return report.WriteStatesCSV(w, tables)
	})
	if err != nil {
		return nil, apperrors.Internal("states.write", err)
	}

	return &Result{Report: rep, ReportPath: reportPath, StatesPath: statesPath}, nil
}

// settings are the study parameters shown with the report.
func settings(spec *study.StudySpec, p plan) map[string]string {
	s := map[string]string{
		"study":        spec.Name,
		"selection":    study.StudyKindName(spec.Kind),
		"batchSize":    strconv.Itoa(spec.BatchSize),
		"maxBatches":   strconv.Itoa(spec.MaxBatches),
		"batchTimeout": strconv.Itoa(spec.BatchTimeoutSeconds) + "s",
		"jobs":         strconv.Itoa(len(p.jobs)),
	}
	switch k := spec.Kind.(type) {
	case study.FieldSet:
		s["year"] = strconv.Itoa(k.Year)
		s["fields"] = strconv.Itoa(len(k.FieldIDs))
	case study.GeometrySelection:
		s["year"] = strconv.Itoa(k.Year)
		s["crop"] = strconv.Itoa(k.CropCode)
	case study.ParameterFileStudy:
		s["parameterFile"] = k.Path
	case study.SweepStudy:
		s["baseFile"] = k.BaseFile
		s["parameter"] = k.Parameter
		s["steps"] = strconv.Itoa(k.Steps)
	}
	return s
}
