package print

import (
	"math"
	"slices"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/telemetry"
)

// volumeRegion binds one volume to the region it resolves to inside a layer
// range. Negative volumes carry no region. A modifier slot whose parent is a
// part and whose region is the parent's own region is a placeholder: the
// modifier overlaps the part without changing it yet.
type volumeRegion struct {
	volume objectid.ID
	kind   model.VolumeType
	parent int
	region *Region
}

type layerRangeRegions struct {
	zmin, zmax float64
	slots      []volumeRegion
}

// regionTable is shared by every derived object of one source object.
type regionTable struct {
	source objectid.ID
	ranges []layerRangeRegions
	valid  bool
}

type rangeSpec struct {
	zmin, zmax float64
	config     printconfig.Config
}

// layerRangesOf covers [0, +inf) with the object's height ranges, filling
// gaps with ranges that carry no override.
func layerRangesOf(o *model.Object) []rangeSpec {
	var out []rangeSpec
	last := 0.0
	for _, lr := range o.LayerRanges {
		if lr.ZMax <= last {
			continue
		}
		if lr.ZMin > last {
			out = append(out, rangeSpec{zmin: last, zmax: lr.ZMin})
		}
		out = append(out, rangeSpec{zmin: math.Max(lr.ZMin, last), zmax: lr.ZMax, config: lr.Config.Values})
		last = lr.ZMax
	}
	return append(out, rangeSpec{zmin: last, zmax: math.Inf(1)})
}

func (p *Print) partConfig(src *model.Object, v *model.Volume, rangeCfg printconfig.Config) printconfig.Config {
	return printconfig.RegionConfig(p.regionDefaults, printconfig.RegionLayers{
		Object:    src.Config.Values,
		Volume:    v.Config.Values,
		Range:     rangeCfg,
		ModelPart: true,
	}, p.extruders)
}

func (p *Print) modifierConfig(parent printconfig.Config, v *model.Volume) printconfig.Config {
	return printconfig.RegionConfig(parent, printconfig.RegionLayers{Volume: v.Config.Values}, p.extruders)
}

// intern returns the pooled region equal to cfg, creating it on a miss, and
// takes one reference.
func (p *Print) intern(cfg printconfig.Config) *Region {
	if r := p.lookup(cfg); r != nil {
		r.refs++
		return r
	}
	r := &Region{print: p, id: p.gen.NewID(), config: cfg, hash: cfg.Hash(), refs: 1}
	p.pool[r.hash] = append(p.pool[r.hash], r)
	telemetry.Regions.Inc()
	return r
}

func (p *Print) lookup(cfg printconfig.Config) *Region {
	for _, r := range p.pool[cfg.Hash()] {
		if r.config.Equal(cfg) {
			return r
		}
	}
	return nil
}

func (p *Print) unpool(r *Region) {
	bucket := slices.DeleteFunc(p.pool[r.hash], func(x *Region) bool { return x == r })
	if len(bucket) == 0 {
		delete(p.pool, r.hash)
		return
	}
	p.pool[r.hash] = bucket
}

func (p *Print) release(r *Region) {
	r.refs--
	if r.refs > 0 {
		return
	}
	if r.refs < 0 {
		p.inconsistent("region %s released more often than referenced", r.id)
	}
	p.unpool(r)
	telemetry.Regions.Dec()
}

// rehash replaces the configuration of r and moves it to its new bucket.
func (p *Print) rehash(r *Region, cfg printconfig.Config) {
	p.unpool(r)
	r.config = cfg
	r.hash = cfg.Hash()
	p.pool[r.hash] = append(p.pool[r.hash], r)
}

func (p *Print) releaseTable(t *regionTable) {
	for _, lr := range t.ranges {
		for _, s := range lr.slots {
			if s.region != nil {
				p.release(s.region)
			}
		}
	}
	t.ranges = nil
	t.valid = false
}

// generateTable resolves every (volume, layer range) pair of src and interns
// the resulting configurations.
func (p *Print) generateTable(t *regionTable, src *model.Object) {
	t.ranges = t.ranges[:0]
	for _, rs := range layerRangesOf(src) {
		lr := layerRangeRegions{zmin: rs.zmin, zmax: rs.zmax}
		for _, v := range src.Volumes {
			switch v.Type {
			case model.ModelPart:
				lr.slots = append(lr.slots, volumeRegion{
					volume: v.ID, kind: v.Type, parent: -1,
					region: p.intern(p.partConfig(src, v, rs.config)),
				})
			case model.NegativeVolume:
				lr.slots = append(lr.slots, volumeRegion{volume: v.ID, kind: v.Type, parent: -1})
			case model.ParameterModifier:
				lr.slots = p.appendModifier(lr.slots, v)
			}
		}
		t.ranges = append(t.ranges, lr)
	}
	t.valid = true
}

// appendModifier adds one slot per earlier region the modifier changes. A
// modifier that changes nothing is still recorded against the first part so
// a later config edit is noticed by proposeTable.
func (p *Print) appendModifier(slots []volumeRegion, v *model.Volume) []volumeRegion {
	n := len(slots)
	firstPart := -1
	added := false
	for parent := 0; parent < n; parent++ {
		pr := slots[parent].region
		if pr == nil || isPlaceholder(slots, parent) {
			continue
		}
		if firstPart < 0 && slots[parent].kind == model.ModelPart {
			firstPart = parent
		}
		cfg := p.modifierConfig(pr.config, v)
		if cfg.Equal(pr.config) {
			continue
		}
		slots = append(slots, volumeRegion{volume: v.ID, kind: v.Type, parent: parent, region: p.intern(cfg)})
		added = true
	}
	if !added && firstPart >= 0 {
		r := slots[firstPart].region
		r.refs++
		slots = append(slots, volumeRegion{volume: v.ID, kind: v.Type, parent: firstPart, region: r})
	}
	return slots
}

// isPlaceholder reports a modifier slot that does not change its parent.
func isPlaceholder(slots []volumeRegion, i int) bool {
	s := slots[i]
	return s.parent >= 0 && slots[s.parent].region == s.region
}

func (t *regionTable) references(r *Region) bool {
	for _, lr := range t.ranges {
		for _, s := range lr.slots {
			if s.region == r {
				return true
			}
		}
	}
	return false
}

func (t *regionTable) distinctRegions() []*Region {
	var out []*Region
	for _, lr := range t.ranges {
		for _, s := range lr.slots {
			if s.region != nil && !slices.Contains(out, s.region) {
				out = append(out, s.region)
			}
		}
	}
	return out
}

// slotProposal is the configuration one slot of a valid table now resolves
// to, next to the region it currently references.
type slotProposal struct {
	region *Region
	cfg    printconfig.Config
}

// proposeTable recomputes every slot of a valid table against the baseline
// without touching the pool. It reports false when the table no longer
// matches the baseline structurally or a modifier starts overriding a region
// it was not recorded against.
func (p *Print) proposeTable(t *regionTable, src *model.Object) ([]slotProposal, bool) {
	specs := layerRangesOf(src)
	if len(specs) != len(t.ranges) {
		return nil, false
	}
	var out []slotProposal

	for ri := range t.ranges {
		lr := &t.ranges[ri]
		rs := specs[ri]
		if rs.zmin != lr.zmin || rs.zmax != lr.zmax {
			return nil, false
		}
		resolved := make([]printconfig.Config, len(lr.slots))
		var lastModifier objectid.ID
		for si, slot := range lr.slots {
			v := src.Volume(slot.volume)
			if v == nil || v.Type != slot.kind {
				return nil, false
			}
			if slot.region == nil {
				continue
			}
			if slot.kind == model.ParameterModifier && slot.volume != lastModifier {
				lastModifier = slot.volume
				if p.modifierGainsParent(lr.slots, resolved, si, v) {
					return nil, false
				}
			}

			var cfg printconfig.Config
			if slot.parent < 0 {
				cfg = p.partConfig(src, v, rs.config)
			} else {
				if slot.parent >= si || lr.slots[slot.parent].region == nil {
					p.inconsistent("region slot %d of object %s has invalid parent %d", si, src.ID, slot.parent)
					return nil, false
				}
				cfg = p.modifierConfig(resolved[slot.parent], v)
			}
			resolved[si] = cfg
			out = append(out, slotProposal{region: slot.region, cfg: cfg})
		}
	}
	return out, true
}

type sourceProposal struct {
	source objectid.ID
	cfg    printconfig.Config
}

// planUpdates decides which regions change in place. A region is updated
// only when every slot still referencing it agrees on the new configuration
// and that configuration is not pooled already. Disagreeing slots split the
// region: tables that moved away from the current configuration are marked
// for rebuild. A configuration that collides with another region merges
// them: every table referencing either one is marked for rebuild. The plan
// is recomputed until no table is newly marked.
func (p *Print) planUpdates(order []objectid.ID, proposals map[objectid.ID][]slotProposal, rebuild map[objectid.ID]bool) map[*Region]printconfig.Config {
	for {
		marked := false
		mark := func(id objectid.ID) {
			if !rebuild[id] {
				rebuild[id] = true
				marked = true
			}
		}

		byRegion := make(map[*Region][]sourceProposal)
		var regions []*Region
		for _, id := range order {
			if rebuild[id] {
				continue
			}
			for _, s := range proposals[id] {
				if _, ok := byRegion[s.region]; !ok {
					regions = append(regions, s.region)
				}
				byRegion[s.region] = append(byRegion[s.region], sourceProposal{source: id, cfg: s.cfg})
			}
		}

		updates := make(map[*Region]printconfig.Config)
		var updated []*Region
		for _, r := range regions {
			props := byRegion[r]
			cfg := props[0].cfg
			agree := !slices.ContainsFunc(props[1:], func(sp sourceProposal) bool { return !sp.cfg.Equal(cfg) })
			switch {
			case !agree:
				kept := false
				for _, sp := range props {
					if sp.cfg.Equal(r.config) {
						kept = true
					} else {
						mark(sp.source)
					}
				}
				if !kept {
					for _, sp := range props {
						mark(sp.source)
					}
				}
			case cfg.Equal(r.config):
			default:
				if other := p.lookup(cfg); other != nil && other != r {
					for _, sp := range props {
						mark(sp.source)
					}
					for id, t := range p.tables {
						if t.valid && t.references(other) {
							mark(id)
						}
					}
					continue
				}
				updates[r] = cfg
				updated = append(updated, r)
			}
		}

		for i, r := range updated {
			for _, o := range updated[i+1:] {
				if !updates[r].Equal(updates[o]) {
					continue
				}
				for _, sp := range append(slices.Clone(byRegion[r]), byRegion[o]...) {
					mark(sp.source)
				}
			}
		}
		if !marked {
			return updates
		}
	}
}

// modifierGainsParent reports whether the modifier whose first slot is at
// first would now override an earlier region it was not recorded against.
func (p *Print) modifierGainsParent(slots []volumeRegion, resolved []printconfig.Config, first int, v *model.Volume) bool {
	next := first
	for parent := 0; parent < first; parent++ {
		if slots[parent].region == nil || isPlaceholder(slots, parent) {
			continue
		}
		if next < len(slots) && slots[next].volume == v.ID && slots[next].parent == parent {
			next++
			continue
		}
		parentCfg := resolved[parent]
		if p.modifierConfig(parentCfg, v).Equal(parentCfg) {
			continue
		}
		return true
	}
	return false
}

// updateRegions brings every region table in line with the baseline model.
// Callers hold p.mu.
func (r *reconciler) updateRegions() {
	p := r.p
	live := make(map[objectid.ID]bool)
	for _, o := range p.objects {
		live[o.source] = true
	}
	for id, t := range p.tables {
		if !live[id] {
			p.releaseTable(t)
			delete(p.tables, id)
		}
	}

	var order []objectid.ID
	proposals := make(map[objectid.ID][]slotProposal)
	rebuild := make(map[objectid.ID]bool)
	for _, src := range p.model.Objects {
		t, ok := p.tables[src.ID]
		if !ok || !t.valid {
			continue
		}
		order = append(order, src.ID)
		slots, ok := p.proposeTable(t, src)
		if !ok {
			rebuild[src.ID] = true
			continue
		}
		proposals[src.ID] = slots
	}

	updates := p.planUpdates(order, proposals, rebuild)
	diffs := make(map[*Region][]string, len(updates))
	for reg, cfg := range updates {
		diffs[reg] = reg.config.Diff(cfg)
		p.rehash(reg, cfg)
	}
	effects := make(map[objectid.ID][]string)
	for _, id := range order {
		if rebuild[id] {
			continue
		}
		var seen []*Region
		for _, s := range proposals[id] {
			if keys, ok := diffs[s.region]; ok && !slices.Contains(seen, s.region) {
				seen = append(seen, s.region)
				effects[id] = append(effects[id], keys...)
			}
		}
	}

	for _, src := range p.model.Objects {
		if rebuild[src.ID] {
			r.logger.Debug("rebuilding region table", logging.Uint64("source_id", uint64(src.ID)))
			p.releaseTable(p.tables[src.ID])
			for _, o := range p.objectsOf(src.ID) {
				r.update(o.invalidateAll())
			}
			continue
		}
		if keys := effects[src.ID]; len(keys) > 0 {
			r.logger.Debug("regions updated in place",
				logging.Uint64("source_id", uint64(src.ID)),
				logging.Any("options", keys),
			)
			e := printconfig.EffectsOf(keys)
			for _, o := range p.objectsOf(src.ID) {
				r.update(o.invalidateByEffects(e))
			}
		}
	}

	for _, src := range p.model.Objects {
		if !live[src.ID] {
			continue
		}
		t, ok := p.tables[src.ID]
		if !ok {
			t = &regionTable{source: src.ID}
			p.tables[src.ID] = t
		}
		if !t.valid {
			p.generateTable(t, src)
		}
		for _, o := range p.objectsOf(src.ID) {
			o.table = t
		}
	}
}
