// Package printstep enumerates the pipeline steps tracked for the whole print
// and for each derived object.
package printstep

import (
	"fmt"
	"strings"
)

// PrintStep is a print-wide pipeline step.
type PrintStep int

const (
	WipeTower PrintStep = iota
	SkirtBrim
	ConflictCheck
	GCodeExport
	printStepCount
)

// PrintStepCount is the number of print-wide steps.
const PrintStepCount = int(printStepCount)

var printStepNames = [...]string{
	WipeTower:     "wipe_tower",
	SkirtBrim:     "skirt_brim",
	ConflictCheck: "conflict_check",
	GCodeExport:   "gcode_export",
}

func (s PrintStep) String() string {
	if s < 0 || int(s) >= PrintStepCount {
		return fmt.Sprintf("print_step(%d)", int(s))
	}
	return printStepNames[s]
}

// Count satisfies the stage table bound.
func (PrintStep) Count() int { return PrintStepCount }

// Valid reports whether s names a known print step.
func (s PrintStep) Valid() bool { return s >= 0 && int(s) < PrintStepCount }

// PrintSteps returns every print step in execution order.
func PrintSteps() []PrintStep {
	out := make([]PrintStep, PrintStepCount)
	for i := range out {
		out[i] = PrintStep(i)
	}
	return out
}

// ObjectStep is a per-object pipeline step.
type ObjectStep int

const (
	Slice ObjectStep = iota
	Perimeters
	EstimateCurledExtrusions
	PrepareInfill
	Infill
	Ironing
	SupportMaterial
	DetectOverhangsForLift
	SimplifyPath
	SimplifySupportPath
	SimplifyWall
	SimplifyInfill
	objectStepCount
)

// ObjectStepCount is the number of per-object steps.
const ObjectStepCount = int(objectStepCount)

var objectStepNames = [...]string{
	Slice:                    "slice",
	Perimeters:               "perimeters",
	EstimateCurledExtrusions: "estimate_curled_extrusions",
	PrepareInfill:            "prepare_infill",
	Infill:                   "infill",
	Ironing:                  "ironing",
	SupportMaterial:          "support_material",
	DetectOverhangsForLift:   "detect_overhangs_for_lift",
	SimplifyPath:             "simplify_path",
	SimplifySupportPath:      "simplify_support_path",
	SimplifyWall:             "simplify_wall",
	SimplifyInfill:           "simplify_infill",
}

func (s ObjectStep) String() string {
	if s < 0 || int(s) >= ObjectStepCount {
		return fmt.Sprintf("object_step(%d)", int(s))
	}
	return objectStepNames[s]
}

// Count satisfies the stage table bound.
func (ObjectStep) Count() int { return ObjectStepCount }

// Valid reports whether s names a known object step.
func (s ObjectStep) Valid() bool { return s >= 0 && int(s) < ObjectStepCount }

// ObjectSteps returns every object step in execution order.
func ObjectSteps() []ObjectStep {
	out := make([]ObjectStep, ObjectStepCount)
	for i := range out {
		out[i] = ObjectStep(i)
	}
	return out
}

// ParseObjectStep resolves a step name such as "support_material".
func ParseObjectStep(name string) (ObjectStep, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range objectStepNames {
		if n == name {
			return ObjectStep(i), nil
		}
	}
	return 0, fmt.Errorf("unknown object step %q", name)
}

// ParsePrintStep resolves a step name such as "gcode_export".
func ParsePrintStep(name string) (PrintStep, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range printStepNames {
		if n == name {
			return PrintStep(i), nil
		}
	}
	return 0, fmt.Errorf("unknown print step %q", name)
}
