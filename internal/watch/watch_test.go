package watch_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/testsupport"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/watch"
)

func startWatcher(t *testing.T, path string) (*atomic.Int32, context.CancelFunc, <-chan error) {
	t.Helper()
	w, err := watch.New(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { calls.Add(1) })
	}()
	return &calls, cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRunCoalescesBurstOfWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plate.yaml")
	testsupport.WriteFile(t, path, "objects: []\n")

	calls, cancel, done := startWatcher(t, path)
	defer cancel()

	for i := 0; i < 5; i++ {
		testsupport.WriteFile(t, path, "objects: []\n# edit\n")
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one debounced callback, got %d", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRunIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plate.yaml")
	testsupport.WriteFile(t, path, "objects: []\n")

	calls, cancel, _ := startWatcher(t, path)
	defer cancel()

	testsupport.WriteFile(t, filepath.Join(dir, "other.yaml"), "objects: []\n")
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no callback for sibling file, got %d", got)
	}

	testsupport.WriteFile(t, path, "objects: []\n# edit\n")
	waitFor(t, func() bool { return calls.Load() == 1 })
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	if _, err := watch.New(filepath.Join(t.TempDir(), "missing", "plate.yaml"), 0, nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
