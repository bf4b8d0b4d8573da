package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/config"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/journal"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/pipeline"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/watch"
)

// historyKeep bounds how many reconciliations the journal retains.
const historyKeep = 500

// ErrAlreadyRunning is returned when another daemon holds the state lock.
var ErrAlreadyRunning = errors.New("another printsync daemon instance is already running")

// Options configures a Daemon. Journal is optional; when set the daemon owns
// it and closes it in Close.
type Options struct {
	Config   *config.Config
	Scene    string
	Handlers stage.Set
	Journal  *journal.Store
	Logger   *slog.Logger
	Status   pipeline.StatusFunc
	Warning  pipeline.WarningFunc
}

// Daemon keeps one print in sync with a scene file.
type Daemon struct {
	cfg      *config.Config
	scene    string
	handlers stage.Set
	logger   *slog.Logger
	journal  *journal.Store
	session  *Session
	worker   *pipeline.Worker
	metrics  *metricsServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	watcher *watch.Watcher
	wg      sync.WaitGroup

	mu       sync.Mutex
	last     *Outcome
	lastAt   time.Time
	lastErr  error
	lastRun  *pipeline.Summary
	runError error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                    `json:"running"`
	Scene        string                  `json:"scene"`
	LastSeverity string                  `json:"last_severity,omitempty"`
	LastApply    time.Time               `json:"last_apply,omitzero"`
	LastError    string                  `json:"last_error,omitempty"`
	Objects      int                     `json:"objects"`
	Regions      int                     `json:"regions"`
	ObjectsDone  bool                    `json:"objects_done"`
	LastRun      *RunStatus              `json:"last_run,omitempty"`
	Stages       map[string]stage.Health `json:"stages"`
	LockFilePath string                  `json:"lock_file"`
	JournalPath  string                  `json:"journal,omitempty"`
	MetricsAddr  string                  `json:"metrics_addr,omitempty"`
}

// RunStatus summarizes the most recent processing pass.
type RunStatus struct {
	RequestID  string        `json:"request_id"`
	ObjectRuns int           `json:"object_runs"`
	PrintRuns  int           `json:"print_runs"`
	Failures   int           `json:"failures"`
	Canceled   bool          `json:"canceled"`
	Elapsed    time.Duration `json:"elapsed"`
	Error      string        `json:"error,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Scene == "" {
		return nil, errors.New("daemon requires config and scene")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      opts.Config,
		scene:    opts.Scene,
		handlers: opts.Handlers,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		journal:  opts.Journal,
		lockPath: opts.Config.LockPath(),
		lock:     flock.New(opts.Config.LockPath()),
	}
	session, err := NewSession(SessionOptions{
		Config:   opts.Config,
		Handlers: opts.Handlers,
		Journal:  opts.Journal,
		Logger:   logger,
		Status:   opts.Status,
		Warning:  opts.Warning,
	})
	if err != nil {
		return nil, err
	}
	d.session = session
	d.worker = pipeline.NewWorker(session.Processor(), d.onResult)
	d.metrics = newMetricsServer(opts.Config.Metrics.Listen, d, d.logger)
	return d, nil
}

// Start acquires the daemon lock, loads the scene and begins watching it.
// A scene that fails to load at startup is reported in Status and retried on
// the next change.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateDir, err)
	}
	if err := checkDirectoryAccess(d.cfg.Paths.StateDir); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	watcher, err := watch.New(d.scene, d.cfg.Debounce(), d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := d.metrics.start(); err != nil {
		_ = watcher.Close()
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.worker.Start(runCtx); err != nil {
		cancel()
		d.metrics.stop()
		_ = watcher.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}
	d.cancel = cancel
	d.watcher = watcher
	d.running.Store(true)

	if _, err := d.Reload(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "initial scene load failed", "scene_load_failed",
			logging.String("scene", d.scene),
			logging.String(logging.FieldErrorHint, "fix the scene file; it is reloaded on save"),
			logging.Error(err),
		)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := watcher.Run(runCtx, func(ctx context.Context) {
			if _, err := d.Reload(ctx); err != nil {
				logging.WarnWithContext(d.logger, "scene reload failed", "scene_load_failed",
					logging.String("scene", d.scene),
					logging.Error(err),
				)
			}
		})
		if err != nil {
			d.logger.Error("scene watcher stopped", logging.Error(err))
		}
	}()

	d.logger.Info("printsync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("scene", d.scene),
	)
	return nil
}

// Reload applies the current scene file and kicks the worker when anything
// changed.
func (d *Daemon) Reload(ctx context.Context) (Outcome, error) {
	out, err := d.session.Load(ctx, d.scene)

	d.mu.Lock()
	d.lastErr = err
	if err == nil {
		d.last = &out
		d.lastAt = time.Now()
	}
	d.mu.Unlock()

	if err != nil {
		return Outcome{}, err
	}
	if out.Severity != print.Unchanged || !d.session.Print().ObjectsDone() {
		d.worker.Kick()
	}
	if d.journal != nil {
		if _, err := d.journal.Prune(ctx, historyKeep); err != nil {
			d.logger.Warn("journal prune failed", logging.Error(err))
		}
	}
	return out, nil
}

func (d *Daemon) onResult(summary pipeline.Summary, err error) {
	d.session.record(context.Background(), summary, err)
	d.mu.Lock()
	d.lastRun = &summary
	d.runError = err
	d.mu.Unlock()
}

// Stop stops watching and processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	d.wg.Wait()
	d.watcher = nil
	d.worker.Stop()
	d.metrics.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("printsync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Session returns the session the daemon drives.
func (d *Daemon) Session() *Session {
	return d.session
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	p := d.session.Print()
	status := Status{
		Running:      d.running.Load(),
		Scene:        d.scene,
		Objects:      len(p.Objects()),
		Regions:      len(p.Regions()),
		ObjectsDone:  p.ObjectsDone(),
		Stages:       d.handlers.Health(ctx),
		LockFilePath: d.lockPath,
		MetricsAddr:  d.metrics.addr(),
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last != nil {
		status.LastSeverity = d.last.Severity.String()
		status.LastApply = d.lastAt
	}
	if d.lastErr != nil {
		status.LastError = d.lastErr.Error()
	}
	if d.lastRun != nil {
		run := &RunStatus{
			RequestID:  d.lastRun.RequestID,
			ObjectRuns: d.lastRun.ObjectRuns,
			PrintRuns:  d.lastRun.PrintRuns,
			Failures:   len(d.lastRun.Failures),
			Canceled:   d.lastRun.Canceled,
			Elapsed:    d.lastRun.Elapsed,
		}
		if d.runError != nil {
			run.Error = d.runError.Error()
		}
		status.LastRun = run
	}
	return status
}
