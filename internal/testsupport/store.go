package testsupport

import (
	"context"
	"testing"

	"floravision/internal/config"
	"floravision/internal/photo"
	"floravision/internal/store"
)

// MustOpenStore opens a snapshot store for tests and registers cleanup.
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

// SaveRecord persists rec and fails the test on error.
func SaveRecord(t testing.TB, st *store.Store, rec *photo.Record) {
	t.Helper()

	if err := st.Save(context.Background(), rec); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
}
