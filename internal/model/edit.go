package model

import (
	"slices"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
)

// NewConfig returns an empty identified config block.
func (m *Model) NewConfig() Config {
	g := m.Generator()
	return Config{ID: g.NewID(), Timestamp: g.Touch()}
}

// AddObject appends a new, empty object.
func (m *Model) AddObject(name string) *Object {
	o := &Object{
		ID:     m.Generator().NewID(),
		Name:   name,
		Config: m.NewConfig(),
	}
	m.Objects = append(m.Objects, o)
	return o
}

// DeleteObject removes the object with id and reports whether it existed.
func (m *Model) DeleteObject(id objectid.ID) bool {
	before := len(m.Objects)
	m.Objects = slices.DeleteFunc(m.Objects, func(o *Object) bool { return o.ID == id })
	return len(m.Objects) != before
}

// AddVolume appends a volume to o.
func (m *Model) AddVolume(o *Object, name string, typ VolumeType, mesh MeshRef) *Volume {
	v := &Volume{
		ID:        m.Generator().NewID(),
		Name:      name,
		Type:      typ,
		Mesh:      mesh,
		Transform: Identity(),
		Config:    m.NewConfig(),
	}
	o.Volumes = append(o.Volumes, v)
	return v
}

// DeleteVolume removes the volume with id from o.
func (m *Model) DeleteVolume(o *Object, id objectid.ID) bool {
	before := len(o.Volumes)
	o.Volumes = slices.DeleteFunc(o.Volumes, func(v *Volume) bool { return v.ID == id })
	return len(o.Volumes) != before
}

// AddInstance appends a printable instance to o.
func (m *Model) AddInstance(o *Object, trafo Transform) *Instance {
	i := &Instance{ID: m.Generator().NewID(), Transform: trafo, Printable: true}
	o.Instances = append(o.Instances, i)
	return i
}

// DeleteInstance removes the instance with id from o.
func (m *Model) DeleteInstance(o *Object, id objectid.ID) bool {
	before := len(o.Instances)
	o.Instances = slices.DeleteFunc(o.Instances, func(i *Instance) bool { return i.ID == id })
	return len(o.Instances) != before
}

// AddLayerRange inserts a height range override keeping ranges sorted.
func (m *Model) AddLayerRange(o *Object, zmin, zmax float64) *LayerRange {
	r := &LayerRange{ZMin: zmin, ZMax: zmax, Config: m.NewConfig()}
	idx, _ := slices.BinarySearchFunc(o.LayerRanges, zmin, func(lr *LayerRange, z float64) int {
		switch {
		case lr.ZMin < z:
			return -1
		case lr.ZMin > z:
			return 1
		}
		return 0
	})
	o.LayerRanges = slices.Insert(o.LayerRanges, idx, r)
	return r
}

// SetOption sets one value on cfg and bumps its timestamp.
func (m *Model) SetOption(cfg *Config, key string, v printconfig.Value) {
	cfg.Values.Set(key, v)
	cfg.Timestamp = m.Generator().Touch()
}

// DeleteOption removes key from cfg and bumps its timestamp.
func (m *Model) DeleteOption(cfg *Config, key string) {
	cfg.Values.Delete(key)
	cfg.Timestamp = m.Generator().Touch()
}

// ReplaceOptions swaps the whole content of cfg. The timestamp only moves
// when the content actually differs.
func (m *Model) ReplaceOptions(cfg *Config, values printconfig.Config) bool {
	if cfg.Values.Equal(values) {
		return false
	}
	cfg.Values = values.Clone()
	cfg.Timestamp = m.Generator().Touch()
	return true
}

// SetLayerHeightProfile replaces the profile of o and bumps its timestamp.
func (m *Model) SetLayerHeightProfile(o *Object, values []float64) {
	o.LayerHeightProfile = LayerHeightProfile{
		Timestamp: m.Generator().Touch(),
		Values:    slices.Clone(values),
	}
}
