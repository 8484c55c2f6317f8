package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected path %q", st.Path())
	}

	// Reopening an initialized database must not recreate the schema.
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reopened.Close()
}

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, cfg, "2026-10-16-abc123")
	run.Stage = "compose"
	run.Status = store.RunFailed
	run.ErrorKind = "ComposeError"
	run.ErrorMessage = "mux failed"
	if err := st.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	fetched, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if fetched == nil || fetched.Status != store.RunFailed || fetched.Stage != "compose" || fetched.ErrorKind != "ComposeError" {
		t.Fatalf("unexpected run: %+v", fetched)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.Before(fetched.CreatedAt) {
		t.Fatalf("unexpected timestamps: %+v", fetched)
	}

	missing, err := st.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil run for unknown id, got %+v, %v", missing, err)
	}
	if err := st.UpdateRun(ctx, &store.Run{ID: "nope", Status: store.RunFailed}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows updating unknown run, got %v", err)
	}
}

func TestListRunsAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	for i, status := range []store.RunStatus{store.RunCompleted, store.RunFailed, store.RunCompleted} {
		run := &store.Run{ID: string(rune('a' + i)), Dir: "/tmp", Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	all, err := st.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Fatalf("expected newest first, got %d runs starting %q", len(all), all[0].ID)
	}
	completed, err := st.ListRuns(ctx, 1, store.RunCompleted)
	if err != nil {
		t.Fatalf("ListRuns filtered: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "c" {
		t.Fatalf("unexpected filtered runs: %+v", completed)
	}

	stats, err := st.RunStats(ctx)
	if err != nil {
		t.Fatalf("RunStats: %v", err)
	}
	if stats[store.RunCompleted] != 2 || stats[store.RunFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestResetInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, cfg, "interrupted")
	n, err := st.ResetInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetInterrupted = %d, %v", n, err)
	}
	fetched, _ := st.GetRun(ctx, run.ID)
	if fetched.Status != store.RunFailed || fetched.ErrorKind != "Interrupted" {
		t.Fatalf("unexpected run after reset: %+v", fetched)
	}
}

func TestResumableSessionLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	run := testsupport.NewRun(t, st, cfg, "run-1")
	now := time.Now().UTC()

	session := &store.UploadSession{
		ID:        "sess-1",
		RunID:     run.ID,
		FilePath:  "/runs/run-1/final.mp4",
		FileSize:  1000,
		Location:  "https://upload.example/session/1",
		State:     store.SessionPending,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := st.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := st.UpdateSessionOffset(ctx, session.ID, 400); err != nil {
		t.Fatalf("UpdateSessionOffset: %v", err)
	}

	found, err := st.FindResumableSession(ctx, run.ID, session.FilePath, now)
	if err != nil {
		t.Fatalf("FindResumableSession: %v", err)
	}
	if found == nil || found.AckedOffset != 400 || found.State != store.SessionInProgress || found.Location != session.Location {
		t.Fatalf("unexpected session: %+v", found)
	}

	other, err := st.FindResumableSession(ctx, run.ID, "/elsewhere.mp4", now)
	if err != nil || other != nil {
		t.Fatalf("expected no session for a different file, got %+v, %v", other, err)
	}
	later, err := st.FindResumableSession(ctx, run.ID, session.FilePath, now.Add(2*time.Hour))
	if err != nil || later != nil {
		t.Fatalf("expected expired session to be ignored, got %+v, %v", later, err)
	}

	found.State = store.SessionCompleted
	found.VideoID = "vid-1"
	if err := st.SaveSession(ctx, found); err != nil {
		t.Fatalf("SaveSession completed: %v", err)
	}
	done, err := st.FindResumableSession(ctx, run.ID, session.FilePath, now)
	if err != nil || done != nil {
		t.Fatalf("completed session must not be resumable, got %+v, %v", done, err)
	}
	fetched, err := st.GetSession(ctx, session.ID)
	if err != nil || fetched.VideoID != "vid-1" {
		t.Fatalf("unexpected stored session %+v, %v", fetched, err)
	}
}

func TestExpireSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	run := testsupport.NewRun(t, st, cfg, "run-2")
	now := time.Now().UTC()

	for i, ttl := range []time.Duration{-time.Minute, time.Hour} {
		s := &store.UploadSession{
			ID:        string(rune('x' + i)),
			RunID:     run.ID,
			FilePath:  "/f.mp4",
			FileSize:  10,
			State:     store.SessionInProgress,
			ExpiresAt: now.Add(ttl),
		}
		if err := st.SaveSession(ctx, s); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}
	n, err := st.ExpireSessions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ExpireSessions = %d, %v", n, err)
	}
	failed, err := st.ListSessions(ctx, run.ID, store.SessionFailed)
	if err != nil || len(failed) != 1 || failed[0].ID != "x" {
		t.Fatalf("unexpected failed sessions: %+v, %v", failed, err)
	}
	all, err := st.ListSessions(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected session list: %d, %v", len(all), err)
	}
}
