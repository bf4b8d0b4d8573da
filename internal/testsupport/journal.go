package testsupport

import (
	"testing"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/config"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/journal"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
