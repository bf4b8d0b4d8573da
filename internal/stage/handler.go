package stage

import (
	"context"
	"log/slog"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// Handler describes the contract the pipeline needs from each step body.
type Handler interface {
	Run(context.Context, *Job) error
	HealthCheck(context.Context) Health
}

// WarnFunc attaches a warning to the running step.
type WarnFunc func(level stagestate.Level, message string, messageID int)

// Job is one step execution. Exactly one of Object and Print is set.
type Job struct {
	Step   string
	Object *print.ObjectView
	Print  *print.PrintView
	Model  *model.Model
	Check  func() error
	Warn   WarnFunc
	Logger *slog.Logger
}

// Poll returns the cancellation state of the run.
func (j *Job) Poll() error {
	if j == nil || j.Check == nil {
		return nil
	}
	return j.Check()
}

func (j *Job) warn(level stagestate.Level, message string, id int) {
	if j != nil && j.Warn != nil {
		j.Warn(level, message, id)
	}
}

// Set maps every step to its handler.
type Set struct {
	Object map[printstep.ObjectStep]Handler
	Print  map[printstep.PrintStep]Handler
}

// ObjectHandler returns the handler for step, if any.
func (s Set) ObjectHandler(step printstep.ObjectStep) (Handler, bool) {
	h, ok := s.Object[step]
	return h, ok && h != nil
}

// PrintHandler returns the handler for step, if any.
func (s Set) PrintHandler(step printstep.PrintStep) (Handler, bool) {
	h, ok := s.Print[step]
	return h, ok && h != nil
}

// Health reports every step, keyed by step name. A step without a handler
// is reported unhealthy: processing marks it done without running anything.
func (s Set) Health(ctx context.Context) map[string]Health {
	out := make(map[string]Health, printstep.ObjectStepCount+printstep.PrintStepCount)
	for _, step := range printstep.ObjectSteps() {
		h, ok := s.ObjectHandler(step)
		out[step.String()] = checkHealth(ctx, step.String(), h, ok)
	}
	for _, step := range printstep.PrintSteps() {
		h, ok := s.PrintHandler(step)
		out[step.String()] = checkHealth(ctx, step.String(), h, ok)
	}
	return out
}

func checkHealth(ctx context.Context, name string, h Handler, ok bool) Health {
	if !ok {
		return Unhealthy(name, "no handler registered")
	}
	return h.HealthCheck(ctx)
}
