package printconfig

import (
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
)

// Scope says which level of the print an option configures.
type Scope int

const (
	ScopePrint Scope = iota
	ScopeObject
	ScopeRegion
)

func (s Scope) String() string {
	switch s {
	case ScopeObject:
		return "object"
	case ScopeRegion:
		return "region"
	default:
		return "print"
	}
}

// Effects lists the steps invalidated when an option changes. All means every
// step of the option's scope.
type Effects struct {
	PrintSteps  []printstep.PrintStep
	ObjectSteps []printstep.ObjectStep
	All         bool
}

// Option describes one catalogue entry.
type Option struct {
	Key      string
	Scope    Scope
	Default  Value
	Effects  Effects
	Filament bool
}

func printOpt(key string, def Value, steps ...printstep.PrintStep) Option {
	return Option{Key: key, Scope: ScopePrint, Default: def, Effects: Effects{PrintSteps: steps}}
}

func objectOpt(key string, def Value, steps ...printstep.ObjectStep) Option {
	return Option{Key: key, Scope: ScopeObject, Default: def, Effects: Effects{ObjectSteps: steps}}
}

func regionOpt(key string, def Value, steps ...printstep.ObjectStep) Option {
	return Option{Key: key, Scope: ScopeRegion, Default: def, Effects: Effects{ObjectSteps: steps}}
}

func withPrintSteps(o Option, steps ...printstep.PrintStep) Option {
	o.Effects.PrintSteps = append(o.Effects.PrintSteps, steps...)
	return o
}

func filament(o Option) Option {
	o.Filament = true
	return o
}

func invalidatesAll(o Option) Option {
	o.Effects = Effects{All: true}
	return o
}

var catalogue = buildCatalogue(
	// print-wide
	printOpt("machine_start_gcode", String(""), printstep.GCodeExport),
	printOpt("machine_end_gcode", String(""), printstep.GCodeExport),
	printOpt("before_layer_change_gcode", String(""), printstep.GCodeExport),
	printOpt("layer_change_gcode", String(""), printstep.GCodeExport),
	printOpt("filename_format", String("{input_filename_base}.gcode"), printstep.GCodeExport),
	printOpt("gcode_comments", Bool(false), printstep.GCodeExport),
	printOpt("gcode_label_objects", Bool(true), printstep.GCodeExport),
	printOpt("default_acceleration", Float(500), printstep.GCodeExport),
	printOpt("skirt_loops", Int(1), printstep.SkirtBrim),
	printOpt("skirt_distance", Float(2), printstep.SkirtBrim),
	printOpt("skirt_height", Int(1), printstep.SkirtBrim),
	printOpt("enable_prime_tower", Bool(false), printstep.WipeTower),
	printOpt("prime_tower_width", Float(60), printstep.WipeTower),
	printOpt("prime_tower_brim_width", Float(3), printstep.WipeTower),
	printOpt("wipe_tower_x", Float(15), printstep.WipeTower),
	printOpt("wipe_tower_y", Float(220), printstep.WipeTower),
	printOpt("print_sequence", String("by layer"), printstep.SkirtBrim, printstep.WipeTower),
	invalidatesAll(printOpt("nozzle_diameter", Floats(0.4))),
	invalidatesAll(printOpt("printable_height", Float(250))),

	// per object
	objectOpt("layer_height", Float(0.2), printstep.Slice),
	objectOpt("initial_layer_print_height", Float(0.2), printstep.Slice),
	objectOpt("slice_closing_radius", Float(0.049), printstep.Slice),
	objectOpt("resolution", Float(0.012), printstep.Slice),
	objectOpt("enable_support", Bool(false), printstep.SupportMaterial),
	objectOpt("support_type", String("normal(auto)"), printstep.SupportMaterial),
	objectOpt("support_threshold_angle", Int(30), printstep.SupportMaterial),
	objectOpt("support_on_build_plate_only", Bool(false), printstep.SupportMaterial),
	objectOpt("support_top_z_distance", Float(0.2), printstep.SupportMaterial),
	objectOpt("raft_layers", Int(0), printstep.SupportMaterial),
	filament(objectOpt("support_filament", Int(0), printstep.SupportMaterial)),
	objectOpt("seam_position", String("aligned"), printstep.Perimeters),
	objectOpt("enable_overhang_speed", Bool(true), printstep.DetectOverhangsForLift),
	withPrintSteps(objectOpt("brim_type", String("auto_brim")), printstep.SkirtBrim),
	withPrintSteps(objectOpt("brim_width", Float(5)), printstep.SkirtBrim),
	withPrintSteps(objectOpt("brim_object_gap", Float(0.1)), printstep.SkirtBrim),

	// per region
	regionOpt("wall_loops", Int(2), printstep.Perimeters),
	regionOpt("outer_wall_line_width", Float(0.42), printstep.Perimeters),
	regionOpt("inner_wall_line_width", Float(0.45), printstep.Perimeters),
	regionOpt("detect_thin_wall", Bool(false), printstep.Perimeters),
	regionOpt("fuzzy_skin", String("none"), printstep.Perimeters),
	regionOpt("fuzzy_skin_thickness", Float(0.3), printstep.Perimeters),
	regionOpt("fuzzy_skin_point_distance", Float(0.8), printstep.Perimeters),
	filament(regionOpt("wall_filament", Int(1), printstep.Slice)),
	filament(regionOpt("sparse_infill_filament", Int(1), printstep.Slice)),
	filament(regionOpt("solid_infill_filament", Int(1), printstep.Slice)),
	regionOpt("sparse_infill_density", Float(15), printstep.PrepareInfill),
	regionOpt("sparse_infill_pattern", String("grid"), printstep.PrepareInfill),
	regionOpt("top_shell_layers", Int(3), printstep.PrepareInfill),
	regionOpt("bottom_shell_layers", Int(3), printstep.PrepareInfill),
	regionOpt("infill_wall_overlap", Float(15), printstep.Infill),
	regionOpt("infill_direction", Float(45), printstep.Infill),
	regionOpt("ironing_type", String("no ironing"), printstep.Ironing),
	regionOpt("ironing_flow", Float(10), printstep.Ironing),
	regionOpt("ironing_spacing", Float(0.1), printstep.Ironing),
	withPrintSteps(regionOpt("outer_wall_speed", Float(120)), printstep.GCodeExport),
	withPrintSteps(regionOpt("inner_wall_speed", Float(150)), printstep.GCodeExport),
	withPrintSteps(regionOpt("sparse_infill_speed", Float(100)), printstep.GCodeExport),
)

func buildCatalogue(opts ...Option) map[string]Option {
	out := make(map[string]Option, len(opts))
	for _, o := range opts {
		out[o.Key] = o
	}
	return out
}

// Lookup returns the catalogue entry for key.
func Lookup(key string) (Option, bool) {
	o, ok := catalogue[key]
	return o, ok
}

// ScopeOf returns the scope of key. Unknown keys are print-wide.
func ScopeOf(key string) Scope {
	if o, ok := catalogue[key]; ok {
		return o.Scope
	}
	return ScopePrint
}

// Defaults returns the catalogue defaults for one scope.
func Defaults(scope Scope) Config {
	out := Config{values: make(map[string]Value)}
	for k, o := range catalogue {
		if o.Scope == scope {
			out.values[k] = o.Default.clone()
		}
	}
	return out
}

// FullDefaults returns the catalogue defaults of every scope.
func FullDefaults() Config {
	out := Config{values: make(map[string]Value, len(catalogue))}
	for k, o := range catalogue {
		out.values[k] = o.Default.clone()
	}
	return out
}

// EffectsOf merges the effects of the given keys. Unknown keys and keys
// flagged as global set All.
func EffectsOf(keys []string) Effects {
	var (
		out        Effects
		seenPrint  [printstep.PrintStepCount]bool
		seenObject [printstep.ObjectStepCount]bool
	)
	for _, k := range keys {
		o, ok := catalogue[k]
		if !ok || o.Effects.All {
			out.All = true
			continue
		}
		for _, s := range o.Effects.PrintSteps {
			if !seenPrint[s] {
				seenPrint[s] = true
				out.PrintSteps = append(out.PrintSteps, s)
			}
		}
		for _, s := range o.Effects.ObjectSteps {
			if !seenObject[s] {
				seenObject[s] = true
				out.ObjectSteps = append(out.ObjectSteps, s)
			}
		}
	}
	return out
}

// Empty reports whether the effects invalidate nothing.
func (e Effects) Empty() bool {
	return !e.All && len(e.PrintSteps) == 0 && len(e.ObjectSteps) == 0
}
