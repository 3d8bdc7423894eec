package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gridrun/pkg/runstore"
)

func newRunsRouter(t *testing.T) (*chi.Mux, *runstore.Store) {
	t.Helper()
	store := runstore.NewStore(t.TempDir())
	h := NewRunsHandler(store)

	r := chi.NewRouter()
	r.Get("/v1/runs", h.List)
	r.Get("/v1/runs/{runID}", h.Get)
	return r, store
}

func TestRunsList(t *testing.T) {
	router, store := newRunsRouter(t)

	t.Run("empty store", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp RunsListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Empty(t, resp.Runs)
	})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(&runstore.RunRecord{
		RunID:        "run-1",
		State:        runstore.RunStateSuccess,
		Plan:         "release-test",
		OS:           "linux",
		Channel:      "1.26.1",
		ManifestPath: "/tmp/gridrun.yaml",
		CreatedAt:    now,
	}))

	t.Run("one run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp RunsListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Runs, 1)
		assert.Equal(t, "run-1", resp.Runs[0].RunID)
		assert.Equal(t, runstore.RunStateSuccess, resp.Runs[0].State)
	})
}

func TestRunsGet(t *testing.T) {
	router, store := newRunsRouter(t)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(&runstore.RunRecord{
		RunID:        "run-1",
		State:        runstore.RunStateFailed,
		Plan:         "lint-check",
		OS:           "linux",
		Channel:      "nightly-2018-05-29",
		ManifestPath: "/tmp/gridrun.yaml",
		FailedStage:  "lint",
		ExitCode:     1,
		CreatedAt:    now,
	}))

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var got runstore.RunRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, "lint", got.FailedStage)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})
}
