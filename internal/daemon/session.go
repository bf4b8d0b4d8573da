package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/config"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/journal"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/pipeline"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/scene"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// SessionOptions configures a Session. Journal, Status and Warning are
// optional.
type SessionOptions struct {
	Config   *config.Config
	Handlers stage.Set
	Journal  *journal.Store
	Logger   *slog.Logger
	Status   pipeline.StatusFunc
	Warning  pipeline.WarningFunc
}

// Outcome describes one scene load.
type Outcome struct {
	Scene    string
	ApplyID  int64
	Severity print.Severity
	Objects  int
	Regions  int
	Duration time.Duration
}

// Session applies scene files to one print and processes it.
type Session struct {
	print   *print.Print
	binder  *scene.Binder
	proc    *pipeline.Processor
	journal *journal.Store
	logger  *slog.Logger
	warning pipeline.WarningFunc

	lastApply atomic.Int64
}

// NewSession builds a session from the engine section of opts.Config.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("session requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	gen := objectid.NewGenerator()
	s := &Session{
		binder:  scene.NewBinder(gen, logger),
		journal: opts.Journal,
		logger:  logging.NewComponentLogger(logger, "session"),
		warning: opts.Warning,
	}
	s.print = print.New(print.Options{
		Generator:   gen,
		Logger:      logger,
		DebugChecks: opts.Config.Engine.DebugChecks,
	})
	s.proc = pipeline.New(pipeline.Options{
		Print:          s.print,
		Handlers:       opts.Handlers,
		Parallelism:    opts.Config.Engine.WorkerParallelism,
		StatusInterval: opts.Config.StatusInterval(),
		Status:         opts.Status,
		Warning:        s.onWarning,
		Logger:         logger,
	})
	return s, nil
}

// Print returns the derived graph.
func (s *Session) Print() *print.Print {
	return s.print
}

// Processor returns the processor draining the print.
func (s *Session) Processor() *pipeline.Processor {
	return s.proc
}

// Load reads the scene at path and applies it. A scene that fails to decode
// leaves the print untouched.
func (s *Session) Load(ctx context.Context, path string) (Outcome, error) {
	doc, err := scene.Load(path)
	if err != nil {
		return Outcome{}, err
	}
	m, cfg, err := s.binder.Bind(doc)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", path, err)
	}

	started := time.Now()
	severity := s.print.Apply(ctx, m, cfg)
	out := Outcome{
		Scene:    path,
		Severity: severity,
		Objects:  len(s.print.Objects()),
		Regions:  len(s.print.Regions()),
		Duration: time.Since(started),
	}
	s.logger.Info("scene applied",
		logging.String(logging.FieldEventType, "scene_applied"),
		logging.String("scene", path),
		logging.String("severity", severity.String()),
		logging.Int("objects", out.Objects),
		logging.Int("regions", out.Regions),
		logging.Duration("duration", out.Duration),
	)

	if s.journal != nil {
		entry := &journal.Apply{
			Scene:    path,
			ModelID:  s.print.ModelID(),
			Severity: severity.String(),
			Objects:  out.Objects,
			Regions:  out.Regions,
			Duration: out.Duration,
		}
		if err := s.journal.RecordApply(ctx, entry); err != nil {
			s.logger.Warn("journal apply failed", logging.Error(err))
		} else {
			out.ApplyID = entry.ID
			s.lastApply.Store(entry.ID)
		}
	}
	return out, nil
}

// Narrow limits the next Process call to the object named object and stops
// after step, which may name an object or a print step. Empty arguments
// leave that part of the run unrestricted. The narrowing is dropped once
// Process returns.
func (s *Session) Narrow(object, step string) error {
	var task print.TaskParams
	if object != "" {
		for _, o := range s.print.Report().Objects {
			if o.Name == object {
				task.SingleObject = o.Source
				break
			}
		}
		if task.SingleObject == 0 {
			return fmt.Errorf("narrow: no object named %q", object)
		}
	}
	if step != "" {
		if objStep, err := printstep.ParseObjectStep(step); err == nil {
			task.ToObjectStep = &objStep
		} else if printStep, err := printstep.ParsePrintStep(step); err == nil {
			task.ToPrintStep = &printStep
		} else {
			return fmt.Errorf("narrow: unknown step %q", step)
		}
	}
	return s.print.SetTask(task)
}

// Process runs every outstanding step once and resets the task narrowing.
func (s *Session) Process(ctx context.Context) (pipeline.Summary, error) {
	summary, err := s.proc.Process(ctx)
	s.print.Finalize()
	s.record(ctx, summary, err)
	return summary, err
}

func (s *Session) record(ctx context.Context, summary pipeline.Summary, err error) {
	if s.journal == nil || summary.RequestID == "" {
		return
	}
	run := &journal.Run{
		RequestID:  summary.RequestID,
		ApplyID:    s.lastApply.Load(),
		ObjectRuns: summary.ObjectRuns,
		PrintRuns:  summary.PrintRuns,
		Failures:   len(summary.Failures),
		Canceled:   summary.Canceled,
		Duration:   summary.Elapsed,
	}
	if err != nil {
		run.Error = err.Error()
	}
	if jerr := s.journal.RecordRun(context.WithoutCancel(ctx), run); jerr != nil {
		s.logger.Warn("journal run failed", logging.Error(jerr))
	}
}

func (s *Session) onWarning(owner objectid.ID, step string, level stagestate.Level, message string) {
	if s.journal != nil {
		w := &journal.Warning{Owner: owner, Step: step, Level: level.String(), Message: message}
		if err := s.journal.RecordWarning(context.Background(), w); err != nil {
			s.logger.Warn("journal warning failed", logging.Error(err))
		}
	}
	if s.warning != nil {
		s.warning(owner, step, level, message)
	}
}
