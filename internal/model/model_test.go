package model

import (
	"math"
	"testing"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
)

func sampleModel(t *testing.T) *Model {
	t.Helper()
	m := New(objectid.NewGenerator())
	o := m.AddObject("cube")
	part := m.AddVolume(o, "body", ModelPart, MeshRef{Source: "cube.stl", Triangles: 12})
	m.SetOption(&part.Config, "wall_loops", printconfig.Int(3))
	m.AddVolume(o, "blocker", SupportBlocker, MeshRef{Source: "box.stl", Triangles: 12})
	m.AddInstance(o, Translation(10, 20, 0))
	m.AddLayerRange(o, 2, 4)
	return m
}

func TestCopyPreservesIdentityAndIsDeep(t *testing.T) {
	m := sampleModel(t)
	dup := m.Copy()

	if dup.ID != m.ID || dup.Objects[0].ID != m.Objects[0].ID {
		t.Fatal("copy must preserve identifiers")
	}
	if dup.Objects[0] == m.Objects[0] || dup.Objects[0].Volumes[0] == m.Objects[0].Volumes[0] {
		t.Fatal("copy must not alias nodes")
	}
	if dup.Objects[0].Volumes[0].Config.Values.Int("wall_loops") != 3 {
		t.Fatal("copy lost config values")
	}
	if dup.Generator() != m.Generator() {
		t.Fatal("copy must keep the generator")
	}

	dup.SetOption(&dup.Objects[0].Volumes[0].Config, "wall_loops", printconfig.Int(5))
	if m.Objects[0].Volumes[0].Config.Values.Int("wall_loops") != 3 {
		t.Fatal("mutating the copy changed the original config")
	}
	dup.Objects[0].Instances[0].Transform = Translation(1, 1, 1)
	if m.Objects[0].Instances[0].Transform != Translation(10, 20, 0) {
		t.Fatal("mutating the copy changed the original transform")
	}
}

func TestCloneMintsFreshIdentities(t *testing.T) {
	m := sampleModel(t)
	clone := m.Clone()
	seen := map[objectid.ID]bool{m.ID: true}
	for _, o := range m.Objects {
		seen[o.ID] = true
		seen[o.Config.ID] = true
		for _, v := range o.Volumes {
			seen[v.ID] = true
			seen[v.Config.ID] = true
		}
		for _, i := range o.Instances {
			seen[i.ID] = true
		}
	}
	check := func(id objectid.ID) {
		if !id.Valid() || seen[id] {
			t.Fatalf("clone reused or lost identifier %d", id)
		}
	}
	check(clone.ID)
	for _, o := range clone.Objects {
		check(o.ID)
		check(o.Config.ID)
		for _, v := range o.Volumes {
			check(v.ID)
			check(v.Config.ID)
		}
		for _, i := range o.Instances {
			check(i.ID)
		}
	}
}

func TestReplaceOptionsTouchesOnlyOnChange(t *testing.T) {
	m := sampleModel(t)
	cfg := &m.Objects[0].Config
	before := cfg.Timestamp
	if m.ReplaceOptions(cfg, cfg.Values.Clone()) {
		t.Fatal("identical content must not count as a change")
	}
	if cfg.Timestamp != before {
		t.Fatal("timestamp moved without a change")
	}
	next := cfg.Values.Clone()
	next.Set("layer_height", printconfig.Float(0.12))
	if !m.ReplaceOptions(cfg, next) || cfg.Timestamp == before {
		t.Fatal("content change must bump the timestamp")
	}
}

func TestLayerRangesStaySorted(t *testing.T) {
	m := New(objectid.NewGenerator())
	o := m.AddObject("tower")
	m.AddLayerRange(o, 10, 20)
	m.AddLayerRange(o, 0, 5)
	m.AddLayerRange(o, 5, 10)
	for i, want := range []float64{0, 5, 10} {
		if o.LayerRanges[i].ZMin != want {
			t.Fatalf("range %d starts at %v, want %v", i, o.LayerRanges[i].ZMin, want)
		}
	}
}

func TestTransformComposition(t *testing.T) {
	r := RotationZ(math.Pi / 2)
	tr := Translation(5, 0, 0).Mul(r)
	if got := tr.Offset(); got != (Vec3{5, 0, 0}) {
		t.Fatalf("offset = %v", got)
	}
	back := RotationZ(-math.Pi / 2).Mul(r)
	if !back.ApproxEqual(Identity(), 1e-12) {
		t.Fatalf("rotation inverse mismatch: %v", back)
	}
	if !Identity().Less(Scale(2, 1, 1)) || Scale(2, 1, 1).Less(Identity()) {
		t.Fatal("lexicographic order broken")
	}
	if !tr.WithOffset(Vec3{}).ApproxEqual(r, 0) {
		t.Fatal("WithOffset should strip translation")
	}
}
