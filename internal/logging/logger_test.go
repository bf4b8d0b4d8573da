package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/config"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("apply finished", logging.String(logging.FieldSeverity, "changed"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "printsync.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "apply finished") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewFromConfigNil(t *testing.T) {
	logger, err := logging.NewFromConfig(nil)
	if err != nil {
		t.Fatalf("NewFromConfig(nil) returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func tempLogPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".log")
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := tempLogPath(t, "console-info")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := readLog(t, logPath); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := tempLogPath(t, "console-debug")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	if content := readLog(t, logPath); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerComposesSubject(t *testing.T) {
	logPath := tempLogPath(t, "console-subject")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithStep(logging.WithObject(context.Background(), 42), "infill")
	logger = logging.NewComponentLogger(logging.WithContext(ctx, logger), "pipeline")
	logger.Info("step finished", logging.Int("regions", 3))

	content := readLog(t, logPath)
	for _, want := range []string{"[pipeline]", "Object #42 (infill)", "step finished", "- regions: 3"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in console output, got %q", want, content)
		}
	}
}

func TestConsoleLoggerHidesRepeatedInfoFields(t *testing.T) {
	logPath := tempLogPath(t, "console-repeat")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "engine")
	logger.Info("apply", logging.String("model", "plate.yaml"))
	logger.Info("apply", logging.String("model", "plate.yaml"))

	content := readLog(t, logPath)
	if got := strings.Count(content, "- model: plate.yaml"); got != 1 {
		t.Fatalf("expected repeated field to be printed once, got %d in %q", got, content)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := tempLogPath(t, "json-info")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithRequestID(context.Background(), "req-1")
	logging.WithContext(ctx, logger).Info("apply finished")

	content := readLog(t, logPath)
	for _, want := range []string{`"request_id":"req-1"`, `"level":"info"`, `"ts":`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in json output, got %q", want, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := tempLogPath(t, "json-warn")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "step warning", "step_warning")

	content := readLog(t, logPath)
	for _, want := range []string{`"event_type":"step_warning"`, `"error_hint":`, `"impact":`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in output, got %q", want, content)
		}
	}
}

func TestTeeHandlerDuplicatesRecords(t *testing.T) {
	first := tempLogPath(t, "tee-first")
	second := tempLogPath(t, "tee-second")
	a, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{first}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	b, err := logging.New(logging.Options{Format: "json", Level: "warn", OutputPaths: []string{second}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger := slog.New(logging.TeeHandler(a.Handler(), nil, b.Handler())).With(logging.String(logging.FieldComponent, "tee"))
	logger.Info("info only")
	logger.Warn("both")

	if content := readLog(t, first); !strings.Contains(content, "info only") || !strings.Contains(content, "both") {
		t.Fatalf("expected both records in first sink, got %q", content)
	}
	content := readLog(t, second)
	if strings.Contains(content, "info only") || !strings.Contains(content, `"component":"tee"`) {
		t.Fatalf("expected only the warning with attrs in second sink, got %q", content)
	}
}

type stepName string

func (s stepName) String() string { return "step:" + string(s) }

func TestJSONLoggerNormalizesDurationsAndStringers(t *testing.T) {
	logPath := tempLogPath(t, "json-values")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("step finished",
		logging.Duration("elapsed", 1500*time.Microsecond),
		slog.Any("step", stepName("infill")),
	)

	content := readLog(t, logPath)
	for _, want := range []string{`"elapsed_ms":1.5`, `"step":"step:infill"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in json output, got %q", want, content)
		}
	}
}
