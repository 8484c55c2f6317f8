package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewRun inserts a running run record rooted in the configured runs dir.
func NewRun(t testing.TB, st *store.Store, cfg *config.Config, id string) *store.Run {
	t.Helper()

	run := &store.Run{
		ID:     id,
		Dir:    filepath.Join(cfg.Paths.RunsDir, id),
		Status: store.RunRunning,
	}
	if err := st.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
