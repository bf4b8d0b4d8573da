package print

import (
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/telemetry"
)

// Object steps that must rerun when the key step reruns.
var objectStepDependents = map[printstep.ObjectStep][]printstep.ObjectStep{
	printstep.Slice: {
		printstep.Perimeters, printstep.EstimateCurledExtrusions, printstep.PrepareInfill,
		printstep.Infill, printstep.Ironing, printstep.SupportMaterial,
		printstep.DetectOverhangsForLift, printstep.SimplifyPath, printstep.SimplifySupportPath,
		printstep.SimplifyWall, printstep.SimplifyInfill,
	},
	printstep.Perimeters: {
		printstep.EstimateCurledExtrusions, printstep.PrepareInfill, printstep.Infill,
		printstep.Ironing, printstep.SimplifyWall, printstep.SimplifyPath, printstep.SimplifyInfill,
	},
	printstep.PrepareInfill: {
		printstep.Infill, printstep.Ironing, printstep.SimplifyInfill, printstep.SimplifyPath,
	},
	printstep.Infill: {
		printstep.Ironing, printstep.SimplifyInfill,
	},
	printstep.SupportMaterial: {
		printstep.SimplifySupportPath,
	},
}

// Object steps whose rerun changes the skirt and brim footprint.
var skirtBrimSources = map[printstep.ObjectStep]bool{
	printstep.Slice:           true,
	printstep.Perimeters:      true,
	printstep.Infill:          true,
	printstep.SupportMaterial: true,
}

// expandObjectSteps closes steps over objectStepDependents and returns the
// print steps the closure touches.
func expandObjectSteps(steps []printstep.ObjectStep) ([]printstep.ObjectStep, []printstep.PrintStep) {
	var seen [printstep.ObjectStepCount]bool
	var out []printstep.ObjectStep
	add := func(s printstep.ObjectStep) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	skirt := false
	for _, s := range steps {
		add(s)
		for _, d := range objectStepDependents[s] {
			add(d)
		}
		skirt = skirt || skirtBrimSources[s]
	}
	if len(out) == 0 {
		return nil, nil
	}
	printSteps := []printstep.PrintStep{printstep.WipeTower, printstep.GCodeExport}
	if skirt {
		printSteps = append(printSteps, printstep.SkirtBrim)
	}
	return out, printSteps
}

// expandPrintSteps adds the export step to any other print step.
func expandPrintSteps(steps []printstep.PrintStep) []printstep.PrintStep {
	var seen [printstep.PrintStepCount]bool
	var out []printstep.PrintStep
	for _, s := range steps {
		for _, x := range []printstep.PrintStep{s, printstep.GCodeExport} {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
	}
	return out
}

// invalidatePrintSteps invalidates steps and their dependents. The result
// reports whether a step other than the export step went back to invalid.
// Callers hold p.mu.
func (p *Print) invalidatePrintSteps(steps ...printstep.PrintStep) bool {
	steps = expandPrintSteps(steps)
	var moved []printstep.PrintStep
	for _, s := range steps {
		if p.state.State(s) != stagestate.Invalid {
			moved = append(moved, s)
		}
	}
	if !p.state.InvalidateMany(steps, p.cancel.CancelInternal) {
		return false
	}
	invalidated := false
	for _, s := range moved {
		telemetry.InvalidationTotal.WithLabelValues("print", s.String()).Inc()
		invalidated = invalidated || s != printstep.GCodeExport
	}
	return invalidated
}

func (p *Print) invalidateAllPrintSteps() bool {
	return p.invalidatePrintSteps(printstep.PrintSteps()...)
}

// invalidateSteps invalidates object steps, their dependents and the print
// steps that consume them. Callers hold print.mu.
func (o *Object) invalidateSteps(steps ...printstep.ObjectStep) bool {
	objectSteps, printSteps := expandObjectSteps(steps)
	if len(objectSteps) == 0 {
		return false
	}
	var moved []printstep.ObjectStep
	for _, s := range objectSteps {
		if o.state.State(s) != stagestate.Invalid {
			moved = append(moved, s)
		}
	}
	invalidated := o.state.InvalidateMany(objectSteps, o.print.cancel.CancelInternal)
	for _, s := range moved {
		telemetry.InvalidationTotal.WithLabelValues("object", s.String()).Inc()
	}
	if o.print.invalidatePrintSteps(printSteps...) {
		invalidated = true
	}
	return invalidated
}

// invalidateAll resets every object step and every print step.
func (o *Object) invalidateAll() bool {
	invalidated := o.invalidateSteps(printstep.ObjectSteps()...)
	if o.print.invalidateAllPrintSteps() {
		invalidated = true
	}
	return invalidated
}

// invalidateByEffects applies option effects to the object and the print.
func (o *Object) invalidateByEffects(e printconfig.Effects) bool {
	if e.All {
		return o.invalidateAll()
	}
	invalidated := o.invalidateSteps(e.ObjectSteps...)
	if len(e.PrintSteps) > 0 && o.print.invalidatePrintSteps(e.PrintSteps...) {
		invalidated = true
	}
	return invalidated
}

// invalidateByEffects applies print-scope option effects.
func (p *Print) invalidateByEffects(e printconfig.Effects) bool {
	if e.All {
		return p.invalidateAllPrintSteps()
	}
	return p.invalidatePrintSteps(e.PrintSteps...)
}
