// -----------------------------------------------------------------------
// Query handler - start, poll, cancel and list reconciliation jobs
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/jobs"
	"github.com/ternarybob/colligo/internal/models"
)

// QueryScheduler is the scheduler surface the handler needs.
type QueryScheduler interface {
	Start(ctx context.Context, req models.QueryRequest) (*models.Job, error)
	Get(id string) (*models.Job, error)
	Cancel(id string) error
	List() []jobs.Summary
}

// SnapshotReader serves the persisted run document.
type SnapshotReader interface {
	Document(ctx context.Context) ([]byte, error)
}

// QueryHandler handles query-job HTTP requests
type QueryHandler struct {
	scheduler QueryScheduler
	snapshot  SnapshotReader
	logger    arbor.ILogger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(scheduler QueryScheduler, snapshot SnapshotReader, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		scheduler: scheduler,
		snapshot:  snapshot,
		logger:    logger,
	}
}

// QueriesHandler handles /api/queries: POST starts a job, GET lists jobs.
func (h *QueryHandler) QueriesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.startQuery(w, r)
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, h.scheduler.List())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *QueryHandler) startQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	job, err := h.scheduler.Start(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to start query job")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"jobId": job.ID})
}

// QueryRoutes handles /api/queries/{id} and /api/queries/{id}/cancel.
func (h *QueryHandler) QueryRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queries/")

	if id, found := strings.CutSuffix(rest, "/cancel"); found {
		h.cancelQuery(w, r, id)
		return
	}

	if strings.Contains(rest, "/") || rest == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	h.getQuery(w, r, rest)
}

func (h *QueryHandler) getQuery(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.scheduler.Get(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        job.Status,
		"result":        job.Result,
		"error":         job.Error,
		"progress":      job.Progress,
		"elapsedTime":   job.ElapsedMs(),
		"serviceErrors": job.ServiceErrors,
	})
}

func (h *QueryHandler) cancelQuery(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	err := h.scheduler.Cancel(id)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, jobs.ErrJobNotRunning):
		WriteError(w, http.StatusBadRequest, "Job is not running")
	case err != nil:
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to cancel job")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
	default:
		WriteSuccess(w)
	}
}

// SnapshotHandler handles GET /api/snapshot - the persisted run document.
func (h *QueryHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	doc, err := h.snapshot.Document(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read snapshot")
		WriteError(w, http.StatusInternalServerError, "Failed to read snapshot")
		return
	}
	if doc == nil {
		doc = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
