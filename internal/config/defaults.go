package config

import "runtime"

const (
	defaultConfigPath       = "~/.config/printsync/config.toml"
	defaultStateDir         = "~/.local/share/printsync"
	defaultLogDir           = "~/.local/share/printsync/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultStatusIntervalMS = 250
	defaultDebounceMS       = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Engine: Engine{
			WorkerParallelism: defaultWorkerParallelism(),
			StatusIntervalMS:  defaultStatusIntervalMS,
		},
		Watch: Watch{
			DebounceMS: defaultDebounceMS,
		},
	}
}

func defaultWorkerParallelism() int {
	n := runtime.GOMAXPROCS(0)
	if n > 8 {
		return 8
	}
	return n
}
