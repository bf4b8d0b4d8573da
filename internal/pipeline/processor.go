package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/cancel"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/telemetry"
)

// ErrStageFailed is returned when at least one step body failed.
var ErrStageFailed = errors.New("stage failed")

// WarningFunc receives warnings that listeners should hear about. owner is
// the derived object, zero for print steps.
type WarningFunc func(owner objectid.ID, step string, level stagestate.Level, message string)

// Options configures a Processor.
type Options struct {
	Print       *print.Print
	Handlers    stage.Set
	Parallelism int
	// StatusInterval is the minimum spacing of intermediate status updates.
	StatusInterval time.Duration
	Status         StatusFunc
	Warning        WarningFunc
	Logger         *slog.Logger
}

// Processor executes the outstanding steps of one print.
type Processor struct {
	print       *print.Print
	handlers    stage.Set
	parallelism int
	interval    time.Duration
	onStatus    StatusFunc
	onWarning   WarningFunc
	logger      *slog.Logger
}

// New constructs a Processor.
func New(opts Options) *Processor {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Processor{
		print:       opts.Print,
		handlers:    opts.Handlers,
		parallelism: parallelism,
		interval:    opts.StatusInterval,
		onStatus:    opts.Status,
		onWarning:   opts.Warning,
		logger:      logging.NewComponentLogger(opts.Logger, "pipeline"),
	}
}

// Summary describes one Process run.
type Summary struct {
	RequestID  string
	ObjectRuns int
	PrintRuns  int
	Failures   []*stage.Failure
	Canceled   bool
	Elapsed    time.Duration
}

type run struct {
	p      *Processor
	ctx    context.Context
	snap   *print.Snapshot
	logger *slog.Logger
	status *statusReporter

	mu         sync.Mutex
	objectRuns int
	printRuns  int
	failures   *multierror.Error
	failed     []*stage.Failure
}

// Process runs every outstanding step once. Cancellation is not an error:
// it is reported through Summary.Canceled. Step failures are returned
// wrapped in ErrStageFailed after every independent step had its chance.
func (p *Processor) Process(ctx context.Context) (Summary, error) {
	if p.print == nil {
		return Summary{}, errors.New("pipeline: print is required")
	}
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.Process",
		trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	started := time.Now()
	snap := p.print.Snapshot()
	r := &run{
		p:      p,
		ctx:    ctx,
		snap:   snap,
		logger: logging.WithContext(ctx, p.logger),
	}
	objects := r.selectObjects()
	r.status = newStatusReporter(p.onStatus, p.interval, r.plannedSteps(objects), r.logger)
	r.logger.Debug("processing started",
		logging.String(logging.FieldEventType, "process_start"),
		logging.Int("derived_objects", len(objects)),
	)

	err := r.runObjects(objects)
	printed := false
	if err == nil && r.failures == nil && len(r.printSteps()) > 0 && p.print.ObjectsDone() {
		err = r.runPrint()
		printed = err == nil
	}

	summary := Summary{
		RequestID:  requestID,
		ObjectRuns: r.objectRuns,
		PrintRuns:  r.printRuns,
		Failures:   r.failed,
		Elapsed:    time.Since(started),
	}
	switch {
	case cancel.IsCanceled(err), errors.Is(err, context.Canceled):
		summary.Canceled = true
		r.status.finish("Processing canceled", FlagCanceled)
		r.logger.Info("processing canceled",
			logging.String(logging.FieldEventType, "process_canceled"),
			logging.Duration("elapsed", summary.Elapsed),
		)
		span.SetAttributes(attribute.Bool("canceled", true))
		return summary, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}

	if r.failures != nil {
		err := fmt.Errorf("%w: %w", ErrStageFailed, r.failures.ErrorOrNil())
		r.status.finish("Processing failed", FlagFailed)
		logging.WarnWithContext(r.logger, "processing finished with failures", "process_failed",
			logging.Int("failures", len(r.failed)),
			logging.String(logging.FieldErrorHint, "fix the reported objects and apply again"),
		)
		span.SetStatus(codes.Error, "stage failure")
		return summary, err
	}

	flags := FlagObjectsDone
	if printed && snap.Task.ToPrintStep == nil {
		flags |= FlagPrintDone
	}
	r.status.finish("Processing done", flags)
	r.logger.Info("processing finished",
		logging.String(logging.FieldEventType, "process_complete"),
		logging.Int("object_steps", summary.ObjectRuns),
		logging.Int("print_steps", summary.PrintRuns),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// selectObjects applies the single-object narrowing of the task.
func (r *run) selectObjects() []objectid.ID {
	only := r.snap.Task.SingleObject
	if only == 0 {
		return r.snap.Objects
	}
	var out []objectid.ID
	for _, id := range r.snap.Objects {
		if o := r.p.print.Object(id); o != nil && o.Source() == only {
			out = append(out, id)
		}
	}
	return out
}

func (r *run) objectSteps() []printstep.ObjectStep {
	steps := printstep.ObjectSteps()
	if last := r.snap.Task.ToObjectStep; last != nil {
		steps = steps[:clampStep(int(*last), len(steps))]
	}
	return steps
}

// printSteps is empty while the task keeps any object short of its last
// step: print steps read the finished output of every object.
func (r *run) printSteps() []printstep.PrintStep {
	task := r.snap.Task
	if task.SingleObject != 0 {
		return nil
	}
	if last := task.ToObjectStep; last != nil && int(*last) < printstep.ObjectStepCount-1 {
		return nil
	}
	steps := printstep.PrintSteps()
	if last := task.ToPrintStep; last != nil {
		steps = steps[:clampStep(int(*last), len(steps))]
	}
	return steps
}

// clampStep turns an inclusive last step into a slice bound within [0, n].
func clampStep(last, n int) int {
	return min(max(last+1, 0), n)
}

func (r *run) plannedSteps(objects []objectid.ID) int {
	return len(objects)*len(r.objectSteps()) + len(r.printSteps())
}

func (r *run) runObjects(objects []objectid.ID) error {
	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.p.parallelism)
	for _, id := range objects {
		g.Go(func() error {
			return r.runObject(ctx, id)
		})
	}
	return g.Wait()
}

// runObject walks the steps of one derived object in order. A failed step
// stops the walk: later steps depend on it.
func (r *run) runObject(ctx context.Context, id objectid.ID) error {
	for _, step := range r.objectSteps() {
		if err := ctx.Err(); err != nil {
			return err
		}
		failed, err := r.runObjectStep(ctx, id, step)
		if err != nil {
			return err
		}
		if failed {
			return nil
		}
	}
	return nil
}

func (r *run) runObjectStep(ctx context.Context, id objectid.ID, step printstep.ObjectStep) (bool, error) {
	pr := r.p.print
	view, started, err := pr.StartObjectStep(r.snap, id, step)
	if err != nil {
		return false, err
	}
	defer r.status.advance(phaseObjects, step.String())
	if !started {
		return false, nil
	}
	h, ok := r.p.handlers.ObjectHandler(step)
	if !ok {
		if _, err := pr.FinishObjectStep(id, step); err != nil {
			return false, err
		}
		return false, nil
	}

	stepCtx := logging.WithStep(logging.WithObject(ctx, uint64(id)), step.String())
	job := &stage.Job{
		Step:   step.String(),
		Object: view,
		Model:  r.snap.Model,
		Check:  r.snap.Token.Check,
		Logger: logging.WithContext(stepCtx, r.p.logger),
		Warn: func(level stagestate.Level, message string, messageID int) {
			notify, err := pr.WarnObject(id, level, message, messageID)
			if err == nil && notify {
				r.warn(id, step.String(), level, message)
			}
		},
	}
	bodyErr := r.execute(stepCtx, h, job)
	return r.settle(stepCtx, id, step.String(), bodyErr,
		func() { pr.AbortObjectStep(id, step) },
		func() error { _, err := pr.FinishObjectStep(id, step); return err },
		func(level stagestate.Level, msg string) (bool, error) { return pr.WarnObject(id, level, msg, 0) },
	)
}

func (r *run) runPrint() error {
	pr := r.p.print
	for _, step := range r.printSteps() {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		view, started, err := pr.StartPrintStep(r.snap, step)
		if err != nil {
			return err
		}
		if !started {
			r.status.advance(phasePrint, step.String())
			continue
		}
		h, ok := r.p.handlers.PrintHandler(step)
		if !ok {
			if _, err := pr.FinishPrintStep(step); err != nil {
				return err
			}
			r.status.advance(phasePrint, step.String())
			continue
		}
		stepCtx := logging.WithStep(r.ctx, step.String())
		job := &stage.Job{
			Step:   step.String(),
			Print:  view,
			Model:  r.snap.Model,
			Check:  r.snap.Token.Check,
			Logger: logging.WithContext(stepCtx, r.p.logger),
			Warn: func(level stagestate.Level, message string, messageID int) {
				notify, err := pr.WarnPrint(level, message, messageID)
				if err == nil && notify {
					r.warn(0, step.String(), level, message)
				}
			},
		}
		bodyErr := r.execute(stepCtx, h, job)
		failed, err := r.settle(stepCtx, 0, step.String(), bodyErr,
			func() { pr.AbortPrintStep(step) },
			func() error { _, err := pr.FinishPrintStep(step); return err },
			func(level stagestate.Level, msg string) (bool, error) { return pr.WarnPrint(level, msg, 0) },
		)
		r.status.advance(phasePrint, step.String())
		if err != nil || failed {
			return err
		}
	}
	return nil
}

func (r *run) execute(ctx context.Context, h stage.Handler, job *stage.Job) error {
	ctx, span := telemetry.Tracer().Start(ctx, "stage."+job.Step)
	defer span.End()
	started := time.Now()
	err := h.Run(ctx, job)
	telemetry.StepDuration.WithLabelValues(job.Step).Observe(time.Since(started).Seconds())
	if err != nil && !cancel.IsCanceled(err) {
		span.RecordError(err)
	}
	return err
}

// settle moves the step out of Started according to the body result. It
// reports whether the step failed; cancellation is returned as an error.
func (r *run) settle(
	ctx context.Context,
	owner objectid.ID,
	step string,
	bodyErr error,
	abort func(),
	finish func() error,
	warn func(stagestate.Level, string) (bool, error),
) (bool, error) {
	logger := logging.WithContext(ctx, r.p.logger)
	switch {
	case bodyErr == nil:
		if err := finish(); err != nil {
			telemetry.StepRunTotal.WithLabelValues(step, "canceled").Inc()
			return false, err
		}
		telemetry.StepRunTotal.WithLabelValues(step, "done").Inc()
		r.mu.Lock()
		if owner.Valid() {
			r.objectRuns++
		} else {
			r.printRuns++
		}
		r.mu.Unlock()
		logger.Debug("step done", logging.String(logging.FieldEventType, "step_done"))
		return false, nil

	case cancel.IsCanceled(bodyErr), errors.Is(bodyErr, context.Canceled):
		abort()
		telemetry.StepRunTotal.WithLabelValues(step, "canceled").Inc()
		logger.Debug("step unwound after cancellation", logging.String(logging.FieldEventType, "step_canceled"))
		if cancel.IsCanceled(bodyErr) {
			return false, bodyErr
		}
		return false, fmt.Errorf("%w: %w", cancel.ErrCanceled, bodyErr)
	}

	failure, ok := stage.AsFailure(bodyErr)
	if !ok {
		failure = &stage.Failure{Owner: owner, Step: step, Message: bodyErr.Error()}
	}
	if notify, err := warn(stagestate.LevelCritical, failure.Message); err == nil && notify {
		r.warn(owner, step, stagestate.LevelCritical, failure.Message)
	}
	abort()
	telemetry.StepRunTotal.WithLabelValues(step, "failed").Inc()
	logger.Warn("step failed",
		logging.String(logging.FieldEventType, "step_failed"),
		logging.String(logging.FieldErrorHint, "the step is retried on the next run"),
		logging.Error(bodyErr),
	)
	r.mu.Lock()
	r.failures = multierror.Append(r.failures, failure)
	r.failed = append(r.failed, failure)
	r.mu.Unlock()
	return true, nil
}

func (r *run) warn(owner objectid.ID, step string, level stagestate.Level, message string) {
	if r.p.onWarning != nil {
		r.p.onWarning(owner, step, level, message)
	}
}
