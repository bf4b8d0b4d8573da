package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Debug checks are on so reconciliation inconsistencies fail loudly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Engine.DebugChecks = true
	cfgVal.Engine.WorkerParallelism = 2
	cfgVal.Engine.StatusIntervalMS = 1
	cfgVal.Watch.DebounceMS = 20
	cfgVal.Metrics.Listen = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithParallelism overrides the worker parallelism.
func WithParallelism(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.WorkerParallelism = n
	}
}

// WithReleaseChecks turns debug checks off so inconsistencies are only logged.
func WithReleaseChecks() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.DebugChecks = false
	}
}

// WithEnsuredDirectories creates the state and log directories up front.
func WithEnsuredDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
