package testsupport

import (
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
)

// NewModel returns an empty model drawing identifiers from gen.
func NewModel(gen *objectid.Generator) *model.Model {
	return model.New(gen)
}

// ObjectBuilder adds one object to a model with fluent helpers.
type ObjectBuilder struct {
	m *model.Model
	o *model.Object
}

// Object appends a new object named name to m.
func Object(m *model.Model, name string) *ObjectBuilder {
	return &ObjectBuilder{m: m, o: m.AddObject(name)}
}

// Part adds a solid part with a placeholder mesh.
func (b *ObjectBuilder) Part(name string) *ObjectBuilder {
	return b.Volume(name, model.ModelPart, nil)
}

// Volume adds a volume of typ carrying opts as its config.
func (b *ObjectBuilder) Volume(name string, typ model.VolumeType, opts map[string]printconfig.Value) *ObjectBuilder {
	v := b.m.AddVolume(b.o, name, typ, model.MeshRef{Source: name + ".stl", Triangles: 12})
	if len(opts) > 0 {
		b.m.ReplaceOptions(&v.Config, printconfig.New(opts))
	}
	return b
}

// At adds a printable instance translated to (x, y).
func (b *ObjectBuilder) At(x, y float64) *ObjectBuilder {
	return b.Instance(model.Translation(x, y, 0))
}

// Instance adds a printable instance with trafo.
func (b *ObjectBuilder) Instance(trafo model.Transform) *ObjectBuilder {
	b.m.AddInstance(b.o, trafo)
	return b
}

// Option sets one object-level option.
func (b *ObjectBuilder) Option(key string, v printconfig.Value) *ObjectBuilder {
	b.m.SetOption(&b.o.Config, key, v)
	return b
}

// Range adds a height range override carrying opts.
func (b *ObjectBuilder) Range(zmin, zmax float64, opts map[string]printconfig.Value) *ObjectBuilder {
	lr := b.m.AddLayerRange(b.o, zmin, zmax)
	if len(opts) > 0 {
		b.m.ReplaceOptions(&lr.Config, printconfig.New(opts))
	}
	return b
}

// Build returns the object.
func (b *ObjectBuilder) Build() *model.Object {
	return b.o
}

// Cube appends an object with one part and one instance at (x, y).
func Cube(m *model.Model, name string, x, y float64) *model.Object {
	return Object(m, name).Part(name+"-body").At(x, y).Build()
}
