package model

import (
	"slices"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
)

// VolumeType tags what a volume contributes to its object.
type VolumeType int

const (
	ModelPart VolumeType = iota
	NegativeVolume
	ParameterModifier
	SupportBlocker
	SupportEnforcer
)

func (t VolumeType) String() string {
	switch t {
	case ModelPart:
		return "part"
	case NegativeVolume:
		return "negative"
	case ParameterModifier:
		return "modifier"
	case SupportBlocker:
		return "support_blocker"
	case SupportEnforcer:
		return "support_enforcer"
	default:
		return "unknown"
	}
}

// ParseVolumeType maps the scene file spelling to a VolumeType.
func ParseVolumeType(s string) (VolumeType, bool) {
	for t := ModelPart; t <= SupportEnforcer; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// IsSupportModifier reports blockers and enforcers.
func (t VolumeType) IsSupportModifier() bool {
	return t == SupportBlocker || t == SupportEnforcer
}

// Config is an identified, timestamped option block.
type Config struct {
	ID        objectid.ID
	Timestamp objectid.Timestamp
	Values    printconfig.Config
}

// TimestampMatches reports whether both blocks are at the same revision.
func (c *Config) TimestampMatches(o *Config) bool {
	return c.Timestamp == o.Timestamp
}

// AssignNewIdentities implements objectid.Renewable.
func (c *Config) AssignNewIdentities(g *objectid.Generator) {
	c.ID = g.NewID()
}

// MeshRef is an opaque handle to volume geometry.
type MeshRef struct {
	Source    string
	Triangles int
}

// Volume is one mesh of an object.
type Volume struct {
	ID        objectid.ID
	Name      string
	Type      VolumeType
	Mesh      MeshRef
	Transform Transform
	Config    Config
}

func (v *Volume) AssignNewIdentities(g *objectid.Generator) {
	v.ID = g.NewID()
	v.Config.AssignNewIdentities(g)
}

// Instance places an object on the bed.
type Instance struct {
	ID        objectid.ID
	Transform Transform
	Printable bool
}

func (i *Instance) AssignNewIdentities(g *objectid.Generator) {
	i.ID = g.NewID()
}

// LayerRange overrides configuration for [ZMin, ZMax).
type LayerRange struct {
	ZMin   float64
	ZMax   float64
	Config Config
}

// LayerHeightProfile is a user-edited variable layer height curve.
type LayerHeightProfile struct {
	Timestamp objectid.Timestamp
	Values    []float64
}

// Object is one printable item.
type Object struct {
	ID                 objectid.ID
	Name               string
	Volumes            []*Volume
	Instances          []*Instance
	LayerRanges        []*LayerRange
	Config             Config
	LayerHeightProfile LayerHeightProfile
	Origin             Vec3
}

func (o *Object) AssignNewIdentities(g *objectid.Generator) {
	o.ID = g.NewID()
	o.Config.AssignNewIdentities(g)
	for _, v := range o.Volumes {
		v.AssignNewIdentities(g)
	}
	for _, i := range o.Instances {
		i.AssignNewIdentities(g)
	}
	for _, r := range o.LayerRanges {
		r.Config.AssignNewIdentities(g)
	}
}

// VolumesOf returns the volumes whose type is one of types, in order.
func (o *Object) VolumesOf(types ...VolumeType) []*Volume {
	var out []*Volume
	for _, v := range o.Volumes {
		if slices.Contains(types, v.Type) {
			out = append(out, v)
		}
	}
	return out
}

// Volume returns the volume with id, or nil.
func (o *Object) Volume(id objectid.ID) *Volume {
	for _, v := range o.Volumes {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Instance returns the instance with id, or nil.
func (o *Object) Instance(id objectid.ID) *Instance {
	for _, i := range o.Instances {
		if i.ID == id {
			return i
		}
	}
	return nil
}

// PrintableInstances returns the instances flagged printable.
func (o *Object) PrintableInstances() []*Instance {
	var out []*Instance
	for _, i := range o.Instances {
		if i.Printable {
			out = append(out, i)
		}
	}
	return out
}

// CustomGCodeType classifies per-height G-code insertions.
type CustomGCodeType int

const (
	ColorChange CustomGCodeType = iota
	PausePrint
	ToolChange
	Template
	Custom
)

// CustomGCode is one per-height insertion.
type CustomGCode struct {
	Z        float64
	Type     CustomGCodeType
	Extruder int
	Extra    string
}

// Model is the root of the source graph.
type Model struct {
	ID           objectid.ID
	Objects      []*Object
	CustomGCodes []CustomGCode

	gen *objectid.Generator
}

// New returns an empty model drawing identifiers from gen.
func New(gen *objectid.Generator) *Model {
	gen = objectid.Or(gen)
	return &Model{ID: gen.NewID(), gen: gen}
}

// Generator returns the identifier source used by the model helpers.
func (m *Model) Generator() *objectid.Generator {
	return objectid.Or(m.gen)
}

func (m *Model) AssignNewIdentities(g *objectid.Generator) {
	m.ID = g.NewID()
	for _, o := range m.Objects {
		o.AssignNewIdentities(g)
	}
}

// Object returns the object with id, or nil.
func (m *Model) Object(id objectid.ID) *Object {
	for _, o := range m.Objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// ObjectIDs returns the object identifiers in model order.
func (m *Model) ObjectIDs() []objectid.ID {
	ids := make([]objectid.ID, len(m.Objects))
	for i, o := range m.Objects {
		ids[i] = o.ID
	}
	return ids
}
