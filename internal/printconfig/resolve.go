package printconfig

import "math"

const minInfillDensity = 0.00011

// ExtruderCount derives the number of extruders from the nozzle list.
func ExtruderCount(printCfg Config) int {
	v, ok := printCfg.Get("nozzle_diameter")
	if !ok {
		return 1
	}
	if n := len(v.AsFloats()); n > 0 {
		return n
	}
	return 1
}

// ObjectConfig resolves the effective per-object configuration: the object
// defaults overlaid with the object's own object-scope overrides.
func ObjectConfig(defaults, objectCfg Config, extruders int) Config {
	out := defaults.Clone()
	out.Apply(objectCfg.Filter(ScopeObject))
	clampFilaments(&out, extruders)
	return out
}

// RegionLayers are the overrides that stack on a region base.
type RegionLayers struct {
	Object    Config
	Volume    Config
	Range     Config
	ModelPart bool
}

// RegionConfig resolves one (volume, height range) configuration. base is
// the region defaults for solid parts or the parent region's configuration
// for modifiers. Object overrides only apply to solid parts.
func RegionConfig(base Config, layers RegionLayers, extruders int) Config {
	out := base.Clone()
	if layers.ModelPart {
		out.Apply(layers.Object.Filter(ScopeRegion))
	}
	out.Apply(layers.Volume.Filter(ScopeRegion))
	out.Apply(layers.Range.Filter(ScopeRegion))
	clampFilaments(&out, extruders)
	clampInfillDensity(&out)
	return out
}

func clampFilaments(c *Config, extruders int) {
	for _, k := range c.Keys() {
		opt, ok := Lookup(k)
		if !ok || !opt.Filament {
			continue
		}
		v, _ := c.Get(k)
		if n := v.AsInt(); n < 0 || n > int64(extruders) {
			c.Set(k, Int(1))
		}
	}
}

func clampInfillDensity(c *Config) {
	v, ok := c.Get("sparse_infill_density")
	if !ok {
		return
	}
	d := v.AsFloat()
	switch {
	case d < minInfillDensity:
		c.Set("sparse_infill_density", Float(0))
	case d > 100:
		c.Set("sparse_infill_density", Float(100))
	case math.IsNaN(d):
		c.Set("sparse_infill_density", Float(0))
	}
}
