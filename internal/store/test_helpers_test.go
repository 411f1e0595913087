package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun begins a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id, stream string) Run {
	t.Helper()
	run := Run{
		ID:           id,
		Connector:    "test-connector",
		Stream:       stream,
		ManifestHash: "test-hash",
		SyncMode:     "incremental",
	}
	if err := s.BeginRun(context.Background(), run); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return run
}
