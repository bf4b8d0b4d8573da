package config

import (
	"fmt"
	"strings"
)

// normalize fills defaults for blank fields and expands paths. Values that
// are wrong rather than blank are left for Validate to report.
func (c *Config) normalize() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	for name, dir := range map[string]*string{
		"paths.state_dir": &c.Paths.StateDir,
		"paths.log_dir":   &c.Paths.LogDir,
	} {
		expanded, err := expandPath(strings.TrimSpace(*dir))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dir = expanded
	}

	c.Logging.Format = orDefault(strings.ToLower(strings.TrimSpace(c.Logging.Format)), defaultLogFormat)
	c.Logging.Level = orDefault(strings.ToLower(strings.TrimSpace(c.Logging.Level)), defaultLogLevel)
	if c.Engine.WorkerParallelism == 0 {
		c.Engine.WorkerParallelism = defaultWorkerParallelism()
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
