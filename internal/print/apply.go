package print

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/telemetry"
)

// Tolerance used when comparing volume transforms.
const volumeTransformEpsilon = 1e-9

type reconciler struct {
	p        *Print
	logger   *slog.Logger
	severity Severity
	// sources first seen by this apply
	fresh map[objectid.ID]bool
}

// update records one invalidation outcome: any change is at least Changed,
// a step going back to invalid makes it Invalidated.
func (r *reconciler) update(invalidated bool) {
	if invalidated {
		r.raise(Invalidated)
		return
	}
	r.raise(Changed)
}

func (r *reconciler) raise(s Severity) {
	r.severity = max(r.severity, s)
}

// Apply reconciles the print with m and cfg. m is copied where it is kept,
// the caller retains ownership. cfg is overlaid on the catalogue defaults.
// Apply holds the print lock for its whole duration and must not be called
// concurrently with itself.
func (p *Print) Apply(ctx context.Context, m *model.Model, cfg printconfig.Config) Severity {
	ctx, span := telemetry.Tracer().Start(ctx, "print.Apply",
		trace.WithAttributes(attribute.Int("objects", len(m.Objects))))
	defer span.End()
	started := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.cancel.ResetInternal()

	r := &reconciler{p: p, logger: logging.WithContext(ctx, p.logger), fresh: make(map[objectid.ID]bool)}
	r.applyConfig(cfg)
	if m.ID != p.model.ID {
		r.reset(m)
	} else {
		r.applyCustomGCodes(m)
		r.syncObjects(m)
	}
	r.matchObjects()
	r.updateRegions()

	elapsed := time.Since(started)
	telemetry.ApplyTotal.WithLabelValues(r.severity.String()).Inc()
	telemetry.ApplyDuration.Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String("severity", r.severity.String()))

	level := slog.LevelDebug
	if r.severity != Unchanged {
		level = slog.LevelInfo
	}
	r.logger.Log(ctx, level, "apply finished",
		logging.String(logging.FieldSeverity, r.severity.String()),
		logging.Int("derived_objects", len(p.objects)),
		logging.Int("regions", len(p.regions())),
		logging.Duration("elapsed", elapsed),
	)
	return r.severity
}

// applyConfig splits the effective configuration by scope and invalidates
// what a print-scope change affects.
func (r *reconciler) applyConfig(cfg printconfig.Config) {
	p := r.p
	full := printconfig.FullDefaults()
	full.Apply(cfg)

	printCfg := full.Filter(printconfig.ScopePrint)
	if diff := p.printConfig.Diff(printCfg); len(diff) > 0 {
		r.logger.Debug("print config changed", logging.Any("options", diff))
		p.printConfig = printCfg
		p.extruders = printconfig.ExtruderCount(printCfg)
		invalidated := p.invalidatePrintSteps(printstep.GCodeExport)
		if p.invalidateByEffects(printconfig.EffectsOf(diff)) {
			invalidated = true
		}
		r.update(invalidated)
	}
	p.objectDefaults = full.Filter(printconfig.ScopeObject)
	p.regionDefaults = full.Filter(printconfig.ScopeRegion)
}

// reset drops the whole derived graph and adopts m as the new baseline.
func (r *reconciler) reset(m *model.Model) {
	p := r.p
	r.logger.Debug("model root changed, resetting print",
		logging.Uint64("old_model", uint64(p.model.ID)),
		logging.Uint64("new_model", uint64(m.ID)),
	)
	hadObjects := len(p.objects) > 0
	if hadObjects {
		p.cancel.CancelInternal()
	}
	for _, o := range p.objects {
		o.invalidateAll()
	}
	p.invalidateAllPrintSteps()
	p.objects = nil
	for id, t := range p.tables {
		p.releaseTable(t)
		delete(p.tables, id)
	}

	p.model = m.Copy()
	p.model.Objects = r.dedupe(p.model.Objects)
	for _, o := range p.model.Objects {
		r.fresh[o.ID] = true
	}
	if hadObjects {
		r.raise(Invalidated)
	} else {
		r.raise(Changed)
	}
}

// dedupe drops objects whose identifier was already seen.
func (r *reconciler) dedupe(objects []*model.Object) []*model.Object {
	seen := make(map[objectid.ID]bool, len(objects))
	out := objects[:0:0]
	for _, o := range objects {
		if seen[o.ID] {
			r.p.inconsistent("object %s appears twice in the model", o.ID)
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}

func (r *reconciler) applyCustomGCodes(m *model.Model) {
	p := r.p
	if slices.Equal(p.model.CustomGCodes, m.CustomGCodes) {
		return
	}
	invalidated := p.invalidatePrintSteps(printstep.GCodeExport)
	if toolChangesDiffer(p.model.CustomGCodes, m.CustomGCodes) && p.invalidatePrintSteps(printstep.WipeTower) {
		invalidated = true
	}
	r.update(invalidated)
	p.model.CustomGCodes = slices.Clone(m.CustomGCodes)
}

func toolChangesDiffer(a, b []model.CustomGCode) bool {
	other := func(c model.CustomGCode) bool { return c.Type != model.ToolChange }
	return !slices.Equal(slices.DeleteFunc(slices.Clone(a), other), slices.DeleteFunc(slices.Clone(b), other))
}

// syncObjects classifies the incoming objects and brings the baseline in
// line with them.
func (r *reconciler) syncObjects(m *model.Model) {
	p := r.p
	incoming := r.dedupe(slices.Clone(m.Objects))
	newIDs := make([]objectid.ID, len(incoming))
	for i, o := range incoming {
		newIDs[i] = o.ID
	}
	statuses := classifyObjects(p.model.ObjectIDs(), newIDs)

	baseline := make(map[objectid.ID]*model.Object, len(p.model.Objects))
	for _, o := range p.model.Objects {
		baseline[o.ID] = o
		if statuses[o.ID] == statusDeleted {
			r.logger.Debug("source object deleted", logging.Uint64("source_id", uint64(o.ID)))
			r.dropObjectsOf(o.ID)
		}
	}

	next := make([]*model.Object, 0, len(incoming))
	for _, in := range incoming {
		switch statuses[in.ID] {
		case statusNew:
			r.fresh[in.ID] = true
			next = append(next, in.Copy())
		default:
			next = append(next, r.syncObject(baseline[in.ID], in))
		}
	}
	p.model.Objects = next
}

// dropObjectsOf invalidates and removes every derived object of source and
// releases its region table.
func (r *reconciler) dropObjectsOf(source objectid.ID) {
	p := r.p
	p.objects = slices.DeleteFunc(p.objects, func(o *Object) bool {
		if o.source != source {
			return false
		}
		o.invalidateAll()
		r.raise(Invalidated)
		return true
	})
	if t, ok := p.tables[source]; ok {
		p.releaseTable(t)
		delete(p.tables, source)
	}
}

// syncObject returns the baseline object to keep for in: either base patched
// in place or a fresh copy of in when its geometry changed.
func (r *reconciler) syncObject(base, in *model.Object) *model.Object {
	p := r.p
	if geometryDiffers(base, in) {
		r.logger.Debug("source object geometry changed", logging.Uint64("source_id", uint64(in.ID)))
		r.dropObjectsOf(in.ID)
		return in.Copy()
	}

	if volumesDiffer(base.VolumesOf(model.SupportBlocker, model.SupportEnforcer), in.VolumesOf(model.SupportBlocker, model.SupportEnforcer)) {
		r.logger.Debug("support volumes changed", logging.Uint64("source_id", uint64(in.ID)))
		p.cancel.CancelInternal()
		invalidated := false
		for _, o := range p.objectsOf(in.ID) {
			if o.invalidateSteps(printstep.SupportMaterial) {
				invalidated = true
			}
		}
		r.update(invalidated)
		updateSupports(base, in)
	}

	base.Name = in.Name
	if !base.Config.TimestampMatches(&in.Config) {
		base.Config = copyConfig(in.Config)
	}
	solidBase := base.VolumesOf(model.ModelPart, model.NegativeVolume, model.ParameterModifier)
	solidIn := in.VolumesOf(model.ModelPart, model.NegativeVolume, model.ParameterModifier)
	for i, v := range solidBase {
		nv := solidIn[i]
		v.Name = nv.Name
		if !v.Config.TimestampMatches(&nv.Config) {
			v.Config = copyConfig(nv.Config)
		}
	}
	for i, lr := range base.LayerRanges {
		if !lr.Config.TimestampMatches(&in.LayerRanges[i].Config) {
			lr.Config = copyConfig(in.LayerRanges[i].Config)
		}
	}
	r.syncInstances(base, in)
	return base
}

func (r *reconciler) syncInstances(base, in *model.Object) {
	sameIDs := slices.EqualFunc(base.Instances, in.Instances, func(a, b *model.Instance) bool { return a.ID == b.ID })
	if !sameIDs {
		r.update(r.p.invalidatePrintSteps(printstep.GCodeExport))
		base.Instances = make([]*model.Instance, len(in.Instances))
		for i, ni := range in.Instances {
			inst := *ni
			base.Instances[i] = &inst
		}
		return
	}
	for i, bi := range base.Instances {
		ni := in.Instances[i]
		bi.Transform = ni.Transform
		bi.Printable = ni.Printable
	}
}

func copyConfig(c model.Config) model.Config {
	return model.Config{ID: c.ID, Timestamp: c.Timestamp, Values: c.Values.Clone()}
}

// geometryDiffers reports edits that require slicing the object again.
func geometryDiffers(base, in *model.Object) bool {
	solid := []model.VolumeType{model.ModelPart, model.NegativeVolume, model.ParameterModifier}
	if volumesDiffer(base.VolumesOf(solid...), in.VolumesOf(solid...)) {
		return true
	}
	if base.Origin != in.Origin {
		return true
	}
	if len(base.LayerRanges) != len(in.LayerRanges) {
		return true
	}
	for i, lr := range base.LayerRanges {
		if lr.ZMin != in.LayerRanges[i].ZMin || lr.ZMax != in.LayerRanges[i].ZMax {
			return true
		}
	}
	return base.LayerHeightProfile.Timestamp != in.LayerHeightProfile.Timestamp
}

func volumesDiffer(a, b []*model.Volume) bool {
	return !slices.EqualFunc(a, b, func(x, y *model.Volume) bool {
		return x.ID == y.ID &&
			x.Type == y.Type &&
			x.Mesh == y.Mesh &&
			x.Transform.ApproxEqual(y.Transform, volumeTransformEpsilon)
	})
}

// updateSupports replaces the support volumes of base with those of in,
// reusing baseline volumes matched by identifier.
func updateSupports(base, in *model.Object) {
	old := make(map[objectid.ID]*model.Volume)
	kept := make([]*model.Volume, 0, len(base.Volumes))
	for _, v := range base.Volumes {
		if v.Type.IsSupportModifier() {
			old[v.ID] = v
			continue
		}
		kept = append(kept, v)
	}
	for _, nv := range in.Volumes {
		if !nv.Type.IsSupportModifier() {
			continue
		}
		v, ok := old[nv.ID]
		if !ok {
			kept = append(kept, nv.Copy())
			continue
		}
		v.Name = nv.Name
		v.Type = nv.Type
		v.Mesh = nv.Mesh
		v.Transform = nv.Transform
		if !v.Config.TimestampMatches(&nv.Config) {
			v.Config = copyConfig(nv.Config)
		}
		kept = append(kept, v)
	}
	base.Volumes = kept
}

// instanceClass groups printable instances sharing rotation, scale, mirror
// and Z offset.
type instanceClass struct {
	trafo     model.Transform
	instances []Instance
}

func instanceClasses(src *model.Object) []instanceClass {
	var out []instanceClass
	for _, mi := range src.PrintableInstances() {
		off := mi.Transform.Offset()
		key := mi.Transform.WithOffset(model.Vec3{0, 0, off[2]})
		inst := Instance{ModelInstance: mi.ID, Shift: model.Vec3{off[0], off[1], 0}}
		idx := slices.IndexFunc(out, func(c instanceClass) bool { return c.trafo == key })
		if idx < 0 {
			out = append(out, instanceClass{trafo: key})
			idx = len(out) - 1
		}
		out[idx].instances = append(out[idx].instances, inst)
	}
	slices.SortStableFunc(out, func(a, b instanceClass) int { return compareTransforms(a.trafo, b.trafo) })
	return out
}

func compareTransforms(a, b model.Transform) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// matchObjects rebuilds the derived object list from the baseline, reusing
// every derived object whose canonical transform still exists.
func (r *reconciler) matchObjects() {
	p := r.p
	existing := make(map[objectid.ID][]*Object)
	for _, o := range p.objects {
		existing[o.source] = append(existing[o.source], o)
	}

	var next []*Object
	var dropped []*Object
	for _, src := range p.model.Objects {
		olds := existing[src.ID]
		slices.SortStableFunc(olds, func(a, b *Object) int { return compareTransforms(a.trafo, b.trafo) })
		classes := instanceClasses(src)
		objectCfg := printconfig.ObjectConfig(p.objectDefaults, src.Config.Values, p.extruders)

		i, j := 0, 0
		for i < len(olds) || j < len(classes) {
			switch {
			case j == len(classes) || (i < len(olds) && olds[i].trafo.Less(classes[j].trafo)):
				dropped = append(dropped, olds[i])
				i++
			case i == len(olds) || classes[j].trafo.Less(olds[i].trafo):
				o := p.newObject(src.ID, classes[j], objectCfg)
				if r.fresh[src.ID] {
					r.raise(Changed)
				} else {
					r.raise(Invalidated)
				}
				next = append(next, o)
				j++
			default:
				o := olds[i]
				r.setInstances(o, classes[j].instances)
				r.setObjectConfig(o, objectCfg)
				next = append(next, o)
				i++
				j++
			}
		}
	}

	for _, o := range dropped {
		r.logger.Debug("derived object dropped", logging.Uint64(logging.FieldObjectID, uint64(o.id)))
		o.invalidateAll()
		r.raise(Invalidated)
	}
	if !slices.Equal(p.objects, next) {
		p.cancel.CancelInternal()
		r.update(p.invalidatePrintSteps(printstep.SkirtBrim, printstep.WipeTower, printstep.GCodeExport))
	}
	p.objects = next
}

func (p *Print) newObject(source objectid.ID, class instanceClass, cfg printconfig.Config) *Object {
	return &Object{
		print:     p,
		id:        p.gen.NewID(),
		source:    source,
		trafo:     class.trafo,
		instances: class.instances,
		state:     stagestate.NewTable[printstep.ObjectStep](p.gen),
		config:    cfg.Clone(),
	}
}

// setInstances replaces the placements of a reused derived object. Moving
// instances only affects the skirt, the wipe tower and the export, so the
// result never exceeds Changed.
func (r *reconciler) setInstances(o *Object, instances []Instance) {
	if slices.Equal(o.instances, instances) {
		return
	}
	steps := []printstep.PrintStep{printstep.SkirtBrim, printstep.GCodeExport}
	if len(o.instances) != len(instances) {
		steps = append(steps, printstep.WipeTower)
	}
	r.p.invalidatePrintSteps(steps...)
	o.instances = instances
	r.raise(Changed)
}

func (r *reconciler) setObjectConfig(o *Object, cfg printconfig.Config) {
	diff := o.config.Diff(cfg)
	if len(diff) == 0 {
		return
	}
	r.logger.Debug("object config changed",
		logging.Uint64(logging.FieldObjectID, uint64(o.id)),
		logging.Any("options", diff),
	)
	o.config = cfg.Clone()
	r.update(o.invalidateByEffects(printconfig.EffectsOf(diff)))
}
