package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
)

// ResultFunc observes the outcome of every background run.
type ResultFunc func(Summary, error)

// Worker runs the processor in the background whenever it is kicked. Kicks
// that arrive while a run is in progress collapse into one follow-up run.
type Worker struct {
	proc     *Processor
	logger   *slog.Logger
	onResult ResultFunc
	kick     chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    Summary
	lastErr error
}

// NewWorker wraps proc. onResult may be nil.
func NewWorker(proc *Processor, onResult ResultFunc) *Worker {
	return &Worker{
		proc:     proc,
		logger:   logging.NewComponentLogger(proc.logger, "worker"),
		onResult: onResult,
		kick:     make(chan struct{}, 1),
	}
}

// Start begins background processing.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx)
	return nil
}

// Stop cancels the current run and waits for the goroutine to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	w.proc.print.Cancel().CancelInternal()
	cancel()
	w.wg.Wait()
	w.proc.print.Cancel().ResetInternal()
}

// Kick requests a run. It never blocks.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Last returns the outcome of the most recent run.
func (w *Worker) Last() (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.lastErr
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
		}

		summary, err := w.proc.Process(ctx)
		w.proc.print.Finalize()
		if err != nil {
			w.logger.Warn("background processing failed",
				logging.String(logging.FieldEventType, "worker_run_failed"),
				logging.String(logging.FieldErrorHint, "see the step warnings for details"),
				logging.Error(err),
			)
		}
		w.mu.Lock()
		w.last, w.lastErr = summary, err
		w.mu.Unlock()
		if w.onResult != nil {
			w.onResult(summary, err)
		}
	}
}
