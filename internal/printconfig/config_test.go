package printconfig

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
)

func TestDiffAndApplyOnly(t *testing.T) {
	a := New(map[string]Value{"wall_loops": Int(2), "layer_height": Float(0.2), "brim_width": Float(5)})
	b := New(map[string]Value{"wall_loops": Int(3), "layer_height": Float(0.2), "skirt_loops": Int(2)})

	diff := a.Diff(b)
	if got, want := diff, []string{"brim_width", "skirt_loops", "wall_loops"}; !cmp.Equal(got, want) {
		t.Fatalf("diff mismatch (-got +want):\n%s", cmp.Diff(got, want))
	}

	a.ApplyOnly(b, diff)
	if !a.Equal(b) {
		t.Fatalf("expected configs equal after ApplyOnly, got %s vs %s", a, b)
	}
}

func TestHashIgnoresInsertionOrder(t *testing.T) {
	var a, b Config
	a.Set("wall_loops", Int(2))
	a.Set("sparse_infill_density", Float(20))
	b.Set("sparse_infill_density", Float(20))
	b.Set("wall_loops", Int(2))
	if a.Hash() != b.Hash() {
		t.Fatal("expected equal hashes")
	}
	b.Set("wall_loops", Float(2))
	if a.Hash() == b.Hash() || a.Equal(b) {
		t.Fatal("kind change must alter hash and equality")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := New(map[string]Value{"nozzle_diameter": Floats(0.4, 0.6)})
	b := a.Clone()
	b.Set("nozzle_diameter", Floats(0.4))
	if ExtruderCount(a) != 2 || ExtruderCount(b) != 1 {
		t.Fatalf("clone shares storage: %d %d", ExtruderCount(a), ExtruderCount(b))
	}
}

func TestFilterByScope(t *testing.T) {
	full := FullDefaults()
	full.Set("custom_vendor_key", String("x"))
	region := full.Filter(ScopeRegion)
	if !region.Has("wall_loops") || region.Has("layer_height") || region.Has("custom_vendor_key") {
		t.Fatalf("unexpected region keys: %v", region.Keys())
	}
	if !full.Filter(ScopePrint).Has("custom_vendor_key") {
		t.Fatal("unknown keys belong to print scope")
	}
}

func TestEffectsOf(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want Effects
	}{
		{name: "gcode only", keys: []string{"machine_start_gcode", "filename_format"}, want: Effects{PrintSteps: []printstep.PrintStep{printstep.GCodeExport}}},
		{name: "wall", keys: []string{"wall_loops"}, want: Effects{ObjectSteps: []printstep.ObjectStep{printstep.Perimeters}}},
		{name: "speed", keys: []string{"outer_wall_speed"}, want: Effects{PrintSteps: []printstep.PrintStep{printstep.GCodeExport}}},
		{name: "unknown", keys: []string{"mystery"}, want: Effects{All: true}},
		{name: "nozzle", keys: []string{"nozzle_diameter"}, want: Effects{All: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectsOf(tt.keys)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("effects mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegionConfigLayersAndClamps(t *testing.T) {
	base := Defaults(ScopeRegion)
	layers := RegionLayers{
		Object:    New(map[string]Value{"wall_loops": Int(4), "layer_height": Float(0.1)}),
		Volume:    New(map[string]Value{"sparse_infill_density": Float(250)}),
		Range:     New(map[string]Value{"wall_filament": Int(3)}),
		ModelPart: true,
	}
	got := RegionConfig(base, layers, 2)
	if got.Int("wall_loops") != 4 {
		t.Fatalf("object override not applied: %d", got.Int("wall_loops"))
	}
	if got.Has("layer_height") {
		t.Fatal("object-scope key leaked into region config")
	}
	if got.Float("sparse_infill_density") != 100 {
		t.Fatalf("density not clamped: %v", got.Float("sparse_infill_density"))
	}
	if got.Int("wall_filament") != 1 {
		t.Fatalf("filament beyond extruder count not reset: %d", got.Int("wall_filament"))
	}

	layers.ModelPart = false
	layers.Volume = New(map[string]Value{"sparse_infill_density": Float(0.00001)})
	modifier := RegionConfig(base, layers, 2)
	if modifier.Int("wall_loops") != base.Int("wall_loops") {
		t.Fatal("object overrides must not apply to modifiers")
	}
	if modifier.Float("sparse_infill_density") != 0 {
		t.Fatalf("tiny density not zeroed: %v", modifier.Float("sparse_infill_density"))
	}
}

func TestFromMapCoercesKnownKinds(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"layer_height":    "0.28",
		"wall_loops":      3,
		"nozzle_diameter": 0.4,
		"vendor_note":     "abc",
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if v, _ := cfg.Get("layer_height"); v.Kind() != KindFloat || v.AsFloat() != 0.28 {
		t.Fatalf("layer_height = %#v", v)
	}
	if v, _ := cfg.Get("nozzle_diameter"); v.Kind() != KindFloats {
		t.Fatalf("nozzle_diameter = %#v", v)
	}
	if _, err := FromMap(map[string]any{"layer_height": "thick"}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}
