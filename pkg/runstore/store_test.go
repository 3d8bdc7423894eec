package runstore

import (
	"testing"
	"time"
)

func TestStore_WriteGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := &RunRecord{
		RunID:        "run-1",
		State:        RunStateFailed,
		Plan:         "lint-check",
		OS:           "linux",
		Channel:      "nightly-2018-05-29",
		ManifestPath: "/tmp/gridrun.yaml",
		CacheKey:     "ab12cd34",
		CreatedAt:    now,
		StartedAt:    &now,
		FailedStage:  "fmt",
		ExitCode:     1,
		CachePrimed:  true,
	}

	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.RunID != rec.RunID {
		t.Fatalf("run_id mismatch: got=%q want=%q", got.RunID, rec.RunID)
	}
	if got.State != RunStateFailed {
		t.Fatalf("state mismatch: got=%q", got.State)
	}
	if got.FailedStage != "fmt" {
		t.Fatalf("failed_stage not persisted: got=%q", got.FailedStage)
	}
	if !got.CachePrimed {
		t.Fatalf("cache_primed not persisted")
	}
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)

	if err := s.Write(&RunRecord{RunID: "run-1", State: RunStateSuccess, Plan: "release-test", OS: "macos", Channel: "1.26.1", ManifestPath: "/tmp/a", CreatedAt: t1, StartedAt: &t1}); err != nil {
		t.Fatalf("Write run-1: %v", err)
	}
	if err := s.Write(&RunRecord{RunID: "run-2", State: RunStateRunning, Plan: "lint-check", OS: "linux", Channel: "nightly-2018-05-29", ManifestPath: "/tmp/b", CreatedAt: t2, StartedAt: &t2}); err != nil {
		t.Fatalf("Write run-2: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected run count: %d", len(got))
	}
	if got[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got[0]=%q", got[0].RunID)
	}
}

func TestStore_Latest(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest() on empty store: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil on empty store, got %+v", latest)
	}

	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	if err := s.Write(&RunRecord{RunID: "run-1", State: RunStateSuccess, Plan: "skip", OS: "macos", Channel: "nightly-2018-05-29", ManifestPath: "/tmp/a", CreatedAt: t1}); err != nil {
		t.Fatalf("Write run-1: %v", err)
	}
	if err := s.Write(&RunRecord{RunID: "run-2", State: RunStateSuccess, Plan: "release-test", OS: "linux", Channel: "1.26.1", ManifestPath: "/tmp/b", CreatedAt: t2}); err != nil {
		t.Fatalf("Write run-2: %v", err)
	}

	latest, err = s.Latest()
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if latest == nil || latest.RunID != "run-2" {
		t.Fatalf("expected run-2 as latest, got %+v", latest)
	}
}

func TestStore_GetRejectsEmptyID(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Get("  "); err == nil {
		t.Fatalf("expected error for blank run_id")
	}
}
