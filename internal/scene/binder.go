package scene

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
)

var gcodeTypes = map[string]model.CustomGCodeType{
	"color_change": model.ColorChange,
	"pause":        model.PausePrint,
	"tool_change":  model.ToolChange,
	"template":     model.Template,
	"custom":       model.Custom,
}

// Binder converts documents into models. Objects are matched to the previous
// model by name and volumes by name within their object; instances and
// ranges are matched by position. Matched nodes keep their identifiers and
// their config timestamps unless the content changed.
//
// A Binder is not safe for concurrent use.
type Binder struct {
	gen    *objectid.Generator
	logger *slog.Logger
	prev   *model.Model
}

// NewBinder returns a binder drawing identifiers from gen.
func NewBinder(gen *objectid.Generator, logger *slog.Logger) *Binder {
	return &Binder{gen: objectid.Or(gen), logger: logging.NewComponentLogger(logger, "scene")}
}

// Forget drops the remembered model. The next Bind starts a new model root.
func (b *Binder) Forget() {
	b.prev = nil
}

// Bind builds the model and print config described by doc. On error the
// binder keeps its previous state.
func (b *Binder) Bind(doc *Document) (*model.Model, printconfig.Config, error) {
	var errs *multierror.Error
	printCfg, err := printconfig.FromMap(doc.Config)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("print config: %w", err))
	}

	m := model.New(b.gen)
	prevObjects := map[string]*model.Object{}
	if b.prev != nil {
		m.ID = b.prev.ID
		prevObjects = keyed(b.prev.Objects, func(o *model.Object) string { return o.Name })
	}

	for _, c := range doc.CustomGCodes {
		typ, ok := gcodeTypes[c.Type]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: unknown custom gcode type %q", ErrInvalidScene, c.Type))
			continue
		}
		m.CustomGCodes = append(m.CustomGCodes, model.CustomGCode{Z: c.Z, Type: typ, Extruder: c.Extruder, Extra: c.Extra})
	}

	seen := map[string]int{}
	for _, entry := range doc.Objects {
		key := occurrence(seen, entry.Name)
		o, err := b.bindObject(m, prevObjects[key], entry)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("object %q: %w", entry.Name, err))
			continue
		}
		m.Objects = append(m.Objects, o)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, printconfig.Config{}, err
	}
	b.prev = m.Copy()
	b.logger.Debug("scene bound",
		logging.Uint64("model_id", uint64(m.ID)),
		logging.Int("objects", len(m.Objects)),
	)
	return m, printCfg, nil
}

func (b *Binder) bindObject(m *model.Model, prev *model.Object, entry Object) (*model.Object, error) {
	var errs *multierror.Error
	o := &model.Object{Name: entry.Name}
	if len(entry.Origin) == 3 {
		o.Origin = model.Vec3{entry.Origin[0], entry.Origin[1], entry.Origin[2]}
	}
	var prevConfig *model.Config
	if prev != nil {
		o.ID = prev.ID
		prevConfig = &prev.Config
	} else {
		o.ID = b.gen.NewID()
	}
	cfg, err := b.bindConfig(m, prevConfig, entry.Config)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	o.Config = cfg

	switch {
	case prev != nil && slices.Equal(prev.LayerHeightProfile.Values, entry.LayerHeightProfile):
		o.LayerHeightProfile = prev.LayerHeightProfile
	case prev != nil || len(entry.LayerHeightProfile) > 0:
		m.SetLayerHeightProfile(o, entry.LayerHeightProfile)
	}

	prevVolumes := map[string]*model.Volume{}
	if prev != nil {
		prevVolumes = keyed(prev.Volumes, func(v *model.Volume) string { return v.Name })
	}
	seen := map[string]int{}
	for _, vs := range entry.Volumes {
		v, err := b.bindVolume(m, prevVolumes[occurrence(seen, vs.Name)], vs)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("volume %q: %w", vs.Name, err))
			continue
		}
		o.Volumes = append(o.Volumes, v)
	}

	for i, is := range entry.Instances {
		inst := &model.Instance{Transform: is.transform(), Printable: is.Printable == nil || *is.Printable}
		if prev != nil && i < len(prev.Instances) {
			inst.ID = prev.Instances[i].ID
		} else {
			inst.ID = b.gen.NewID()
		}
		o.Instances = append(o.Instances, inst)
	}

	for i, rs := range entry.Ranges {
		var prevRange *model.Config
		if prev != nil && i < len(prev.LayerRanges) {
			prevRange = &prev.LayerRanges[i].Config
		}
		rc, err := b.bindConfig(m, prevRange, rs.Config)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("range [%g, %g): %w", rs.ZMin, rs.ZMax, err))
			continue
		}
		o.LayerRanges = append(o.LayerRanges, &model.LayerRange{ZMin: rs.ZMin, ZMax: rs.ZMax, Config: rc})
	}
	slices.SortStableFunc(o.LayerRanges, func(x, y *model.LayerRange) int {
		switch {
		case x.ZMin < y.ZMin:
			return -1
		case x.ZMin > y.ZMin:
			return 1
		}
		return 0
	})

	return o, errs.ErrorOrNil()
}

func (b *Binder) bindVolume(m *model.Model, prev *model.Volume, entry Volume) (*model.Volume, error) {
	typ := model.ModelPart
	if entry.Type != "" {
		var ok bool
		if typ, ok = model.ParseVolumeType(entry.Type); !ok {
			return nil, fmt.Errorf("%w: unknown volume type %q", ErrInvalidScene, entry.Type)
		}
	}
	v := &model.Volume{
		Name:      entry.Name,
		Type:      typ,
		Mesh:      model.MeshRef{Source: entry.Mesh.Source, Triangles: entry.Mesh.Triangles},
		Transform: entry.Transform.transform(),
	}
	var prevConfig *model.Config
	if prev != nil {
		v.ID = prev.ID
		prevConfig = &prev.Config
	} else {
		v.ID = b.gen.NewID()
	}
	cfg, err := b.bindConfig(m, prevConfig, entry.Config)
	if err != nil {
		return nil, err
	}
	v.Config = cfg
	return v, nil
}

// bindConfig keeps the identity of prev and moves its timestamp only when
// raw decodes to different values.
func (b *Binder) bindConfig(m *model.Model, prev *model.Config, raw map[string]any) (model.Config, error) {
	values, err := printconfig.FromMap(raw)
	if err != nil {
		return model.Config{}, err
	}
	if prev == nil {
		cfg := m.NewConfig()
		cfg.Values = values
		return cfg, nil
	}
	cfg := model.Config{ID: prev.ID, Timestamp: prev.Timestamp, Values: prev.Values.Clone()}
	m.ReplaceOptions(&cfg, values)
	return cfg, nil
}

func (p Placement) transform() model.Transform {
	t := model.Identity()
	if len(p.Offset) == 3 {
		t = model.Translation(p.Offset[0], p.Offset[1], p.Offset[2])
	}
	if len(p.Rotate) == 3 {
		t = t.Mul(model.RotationZ(radians(p.Rotate[2]))).
			Mul(model.RotationY(radians(p.Rotate[1]))).
			Mul(model.RotationX(radians(p.Rotate[0])))
	}
	switch len(p.Scale) {
	case 1:
		t = t.Mul(model.Scale(p.Scale[0], p.Scale[0], p.Scale[0]))
	case 3:
		t = t.Mul(model.Scale(p.Scale[0], p.Scale[1], p.Scale[2]))
	}
	return t
}

func (i Instance) transform() model.Transform {
	var at model.Vec3
	copy(at[:], i.At)
	t := model.Translation(at[0], at[1], at[2])
	if i.RotateZ != 0 {
		t = t.Mul(model.RotationZ(radians(i.RotateZ)))
	}
	if i.Scale != 0 && i.Scale != 1 {
		t = t.Mul(model.Scale(i.Scale, i.Scale, i.Scale))
	}
	return t
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// occurrence returns name suffixed with how often it was seen before, so
// repeated names still match positionally.
func occurrence(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s#%d", name, n)
}

func keyed[T any](items []T, name func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	seen := map[string]int{}
	for _, it := range items {
		out[occurrence(seen, name(it))] = it
	}
	return out
}
