package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
)

// StatusFlags qualify a status update.
type StatusFlags uint8

const (
	// FlagObjectsDone marks the end of the object phase.
	FlagObjectsDone StatusFlags = 1 << iota
	// FlagPrintDone marks a complete run including the print steps.
	FlagPrintDone
	// FlagCanceled marks a run that stopped on cancellation.
	FlagCanceled
	// FlagFailed marks a run with at least one failed step.
	FlagFailed
)

const (
	phaseObjects = "objects"
	phasePrint   = "print"
)

func (f StatusFlags) Has(flag StatusFlags) bool { return f&flag != 0 }

// StatusFunc receives progress updates. percent is in [0, 100].
type StatusFunc func(percent int, message string, flags StatusFlags)

// statusReporter spaces intermediate updates by interval. The final update
// always goes through. Progress is also logged, sampled per phase.
type statusReporter struct {
	fn      StatusFunc
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	sampler *logging.ProgressSampler
	total   int
	done    int
}

func newStatusReporter(fn StatusFunc, interval time.Duration, total int, logger *slog.Logger) *statusReporter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &statusReporter{
		fn:      fn,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		sampler: logging.NewProgressSampler(25),
		total:   total,
	}
}

// advance counts one finished unit of work. phase is "objects" or "print".
func (s *statusReporter) advance(phase, step string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.done++
	percent := s.percent()
	logIt := s.logger != nil && s.sampler.Observe(phase, percent)
	s.mu.Unlock()
	if logIt {
		s.logger.Info("processing progress",
			logging.String(logging.FieldEventType, "process_progress"),
			logging.String("phase", phase),
			logging.Int("percent", percent),
			logging.String(logging.FieldStep, step),
		)
	}
	if s.fn == nil || !s.limiter.Allow() {
		return
	}
	s.fn(percent, fmt.Sprintf("Running %s", step), 0)
}

func (s *statusReporter) percent() int {
	if s.total <= 0 {
		return 100
	}
	return min(100, s.done*100/s.total)
}

func (s *statusReporter) finish(message string, flags StatusFlags) {
	if s == nil || s.fn == nil {
		return
	}
	percent := 100
	if flags.Has(FlagCanceled) || flags.Has(FlagFailed) {
		s.mu.Lock()
		percent = s.percent()
		s.mu.Unlock()
	}
	s.fn(percent, message, flags)
}
