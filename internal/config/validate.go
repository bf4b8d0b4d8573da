package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Validate ensures the configuration is usable. Every problem is reported,
// not just the first.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		add("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if c.Engine.WorkerParallelism < 1 {
		add("engine.worker_parallelism must be at least 1")
	}
	if c.Engine.StatusIntervalMS < 0 {
		add("engine.status_interval_ms must not be negative")
	}
	if c.Watch.DebounceMS < 0 {
		add("watch.debounce_ms must not be negative")
	}
	return result.ErrorOrNil()
}
