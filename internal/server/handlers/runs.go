package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/gridrun/internal/errors"
	"github.com/3leaps/gridrun/pkg/runstore"
)

// RunsHandler serves run records from the on-disk store.
type RunsHandler struct {
	store *runstore.Store
}

func NewRunsHandler(store *runstore.Store) *RunsHandler {
	return &RunsHandler{store: store}
}

// RunsListResponse is the body for GET /v1/runs.
type RunsListResponse struct {
	Runs []runstore.RunRecord `json:"runs"`
}

// List serves GET /v1/runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, _ *http.Request) {
	runs, err := h.store.List()
	if err != nil {
		apperrors.NewHTTPErrorResponse("INTERNAL_ERROR", "failed to list runs").
			Write(w, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []runstore.RunRecord{}
	}
	writeJSON(w, http.StatusOK, RunsListResponse{Runs: runs})
}

// Get serves GET /v1/runs/{runID}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	record, err := h.store.Get(runID)
	if err != nil {
		if os.IsNotExist(err) {
			apperrors.NewHTTPErrorResponse("NOT_FOUND", "run not found").
				WithDetails(map[string]any{"run_id": runID}).
				Write(w, http.StatusNotFound)
			return
		}
		apperrors.NewHTTPErrorResponse("INTERNAL_ERROR", "failed to load run").
			Write(w, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
