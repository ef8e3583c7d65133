// Package api serves the read-only status surface of a running study:
// health probes, run progress and per-job outcomes.
package api

import (
	"cropstudy/internal/coordinator"
	"cropstudy/internal/health"
	"cropstudy/internal/job"
	"encoding/json"
	"log/slog"
	"net/http"
)

// RunView is the part of the coordinator the API reads from.
type RunView interface {
	Snapshot() coordinator.Snapshot
	Job(jobID string) (job.Outcome, bool)
	JobIDs() []string
}

// JobList is the response of GET /v1/run/jobs.
type JobList struct {
	Jobs  []job.Outcome `json:"jobs"`
	Total int           `json:"total"`
}

// Handler contains HTTP handlers for the status API
type Handler struct {
	run    RunView
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(run RunView, healthChecker *health.Checker) *Handler {
	return &Handler{
		run:    run,
		health: healthChecker,
	}
}

// GetRun handles GET /v1/run
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.run.Snapshot())
}

// ListJobs handles GET /v1/run/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ids := h.run.JobIDs()
	resp := JobList{Jobs: make([]job.Outcome, 0, len(ids))}
	for _, id := range ids {
		if o, ok := h.run.Job(id); ok {
			resp.Jobs = append(resp.Jobs, o)
		}
	}
	resp.Total = len(resp.Jobs)

	h.writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /v1/run/jobs/{jobId}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	o, ok := h.run.Job(jobID)
	if !ok {
		slog.Warn("Client error", "path", r.URL.Path, "status", http.StatusNotFound)
		h.writeError(w, http.StatusNotFound, "job "+jobID+" not found")
		return
	}

	h.writeJSON(w, http.StatusOK, o)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the processing service or the data service is unreachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSONBody(w, status, data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeErrorBody(w, status, message)
}

func writeJSONBody(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeErrorBody(w http.ResponseWriter, status int, message string) {
	writeJSONBody(w, status, map[string]string{"error": message})
}
