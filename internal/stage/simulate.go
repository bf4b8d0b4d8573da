package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// Warning identifiers raised by the simulated bodies.
const (
	WarnNoWalls = iota + 1
	WarnEnforcersIgnored
	WarnEmptyPlate
	WarnOverlap
	WarnSparseWithoutShells
)

type body func(ctx context.Context, job *Job) error

// Simulated is a step body that validates its input and polls for
// cancellation without producing geometry. It is safe for concurrent use.
type Simulated struct {
	name  string
	pause time.Duration
	run   body
}

// Run executes the body.
func (s *Simulated) Run(ctx context.Context, job *Job) error {
	if err := job.Poll(); err != nil {
		return err
	}
	started := time.Now()
	if err := s.run(ctx, job); err != nil {
		return err
	}
	if job.Logger != nil {
		job.Logger.Debug("step body finished",
			logging.String(logging.FieldEventType, "step_body_done"),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return nil
}

// HealthCheck always reports ready; the body has no external dependency.
func (s *Simulated) HealthCheck(context.Context) Health {
	return Healthy(s.name)
}

// unit polls for cancellation and waits for the configured pause, which
// stands in for the work on one region or object.
func (s *Simulated) unit(ctx context.Context, job *Job) error {
	if err := job.Poll(); err != nil {
		return err
	}
	if s.pause <= 0 {
		return nil
	}
	t := time.NewTimer(s.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return job.Poll()
}

func (s *Simulated) eachRegion(ctx context.Context, job *Job, fn func(printconfig.Config)) error {
	for _, r := range job.Object.Regions {
		if err := s.unit(ctx, job); err != nil {
			return err
		}
		if fn != nil {
			fn(r.Config)
		}
	}
	return nil
}

// SimulatedSet returns a simulated handler for every step. pause is spent
// once per region for object steps and once per object for print steps.
func SimulatedSet(pause time.Duration) Set {
	set := Set{
		Object: make(map[printstep.ObjectStep]Handler, printstep.ObjectStepCount),
		Print:  make(map[printstep.PrintStep]Handler, printstep.PrintStepCount),
	}
	for _, step := range printstep.ObjectSteps() {
		s := &Simulated{name: step.String(), pause: pause}
		switch step {
		case printstep.Slice:
			s.run = s.slice
		case printstep.Perimeters:
			s.run = s.perimeters
		case printstep.PrepareInfill:
			s.run = s.prepareInfill
		case printstep.SupportMaterial:
			s.run = s.supports
		default:
			s.run = func(ctx context.Context, job *Job) error { return s.eachRegion(ctx, job, nil) }
		}
		set.Object[step] = s
	}
	for _, step := range printstep.PrintSteps() {
		s := &Simulated{name: step.String(), pause: pause}
		switch step {
		case printstep.SkirtBrim:
			s.run = s.skirtBrim
		case printstep.ConflictCheck:
			s.run = s.conflicts
		default:
			s.run = s.eachObject
		}
		set.Print[step] = s
	}
	return set
}

func (s *Simulated) slice(ctx context.Context, job *Job) error {
	obj := job.Object
	if obj.Source == nil {
		return Fail(ErrInvalidInput, obj.ID, job.Step, "source object missing from snapshot")
	}
	parts := obj.Source.VolumesOf(model.ModelPart)
	if len(parts) == 0 {
		return Fail(ErrDegenerateGeometry, obj.ID, job.Step, fmt.Sprintf("object %q has no solid part", obj.Source.Name))
	}
	for _, v := range parts {
		if v.Mesh.Triangles <= 0 {
			return Fail(ErrDegenerateGeometry, obj.ID, job.Step, fmt.Sprintf("volume %q has an empty mesh", v.Name))
		}
	}
	if h := obj.Config.Float("layer_height"); h <= 0 {
		return Fail(ErrInvalidInput, obj.ID, job.Step, fmt.Sprintf("layer height %g is not positive", h))
	}
	return s.eachRegion(ctx, job, nil)
}

func (s *Simulated) perimeters(ctx context.Context, job *Job) error {
	return s.eachRegion(ctx, job, func(cfg printconfig.Config) {
		if cfg.Int("wall_loops") == 0 {
			job.warn(stagestate.LevelWarning, "a region prints without walls", WarnNoWalls)
		}
	})
}

func (s *Simulated) prepareInfill(ctx context.Context, job *Job) error {
	return s.eachRegion(ctx, job, func(cfg printconfig.Config) {
		if cfg.Float("sparse_infill_density") == 0 && cfg.Int("top_shell_layers") == 0 {
			job.warn(stagestate.LevelWarning, "hollow region has no top shell", WarnSparseWithoutShells)
		}
	})
}

func (s *Simulated) supports(ctx context.Context, job *Job) error {
	obj := job.Object
	if !obj.Config.Bool("enable_support") && obj.Source != nil && len(obj.Source.VolumesOf(model.SupportEnforcer)) > 0 {
		job.warn(stagestate.LevelWarning, "support enforcers are ignored while supports are disabled", WarnEnforcersIgnored)
	}
	return s.unit(ctx, job)
}

func (s *Simulated) eachObject(ctx context.Context, job *Job) error {
	for range job.Print.Objects {
		if err := s.unit(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulated) skirtBrim(ctx context.Context, job *Job) error {
	if len(job.Print.Objects) == 0 {
		job.warn(stagestate.LevelWarning, "nothing to print", WarnEmptyPlate)
		return nil
	}
	return s.eachObject(ctx, job)
}

// conflicts flags instances of different derived objects placed at the same
// bed position with the same orientation.
func (s *Simulated) conflicts(ctx context.Context, job *Job) error {
	type placement struct {
		trafo model.Transform
		shift model.Vec3
	}
	seen := make(map[placement]string)
	for _, obj := range job.Print.Objects {
		if err := s.unit(ctx, job); err != nil {
			return err
		}
		name := obj.ID.String()
		if obj.Source != nil {
			name = obj.Source.Name
		}
		for _, inst := range obj.Instances {
			key := placement{trafo: obj.Transform, shift: inst.Shift}
			if other, ok := seen[key]; ok && other != name {
				job.warn(stagestate.LevelWarning, fmt.Sprintf("objects %q and %q overlap", other, name), WarnOverlap)
				continue
			}
			seen[key] = name
		}
	}
	return nil
}
