package printconfig

import (
	"hash/fnv"
	"maps"
	"slices"
)

// Config is a flat set of option values. The zero value is an empty config.
type Config struct {
	values map[string]Value
}

// New builds a config from key/value pairs.
func New(values map[string]Value) Config {
	c := Config{values: make(map[string]Value, len(values))}
	for k, v := range values {
		c.values[k] = v.clone()
	}
	return c
}

func (c *Config) Set(key string, v Value) {
	if c.values == nil {
		c.values = make(map[string]Value)
	}
	c.values[key] = v.clone()
}

func (c *Config) Delete(key string) {
	delete(c.values, key)
}

func (c Config) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

func (c Config) Len() int { return len(c.values) }

func (c Config) Empty() bool { return len(c.values) == 0 }

// Keys returns the option keys in sorted order.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	return New(c.values)
}

// Equal reports structural equality.
func (c Config) Equal(o Config) bool {
	if len(c.values) != len(o.values) {
		return false
	}
	for k, v := range c.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Hash fingerprints the config independently of insertion order.
func (c Config) Hash() uint64 {
	h := fnv.New64a()
	for _, k := range c.Keys() {
		v := c.values[k]
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0, byte(v.kind)})
		_, _ = h.Write([]byte(v.String()))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Diff returns the sorted keys whose values differ between c and o, counting
// keys present on only one side.
func (c Config) Diff(o Config) []string {
	var out []string
	for k, v := range c.values {
		if ov, ok := o.values[k]; !ok || !v.Equal(ov) {
			out = append(out, k)
		}
	}
	for k := range o.values {
		if _, ok := c.values[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Apply overlays every value of src onto c.
func (c *Config) Apply(src Config) {
	for k, v := range src.values {
		c.Set(k, v)
	}
}

// ApplyOnly overlays the listed keys of src onto c. Keys missing from src are
// removed from c.
func (c *Config) ApplyOnly(src Config, keys []string) {
	for _, k := range keys {
		if v, ok := src.values[k]; ok {
			c.Set(k, v)
		} else {
			c.Delete(k)
		}
	}
}

// Filter returns the subset of c whose keys resolve to scope. Unknown keys
// belong to ScopePrint.
func (c Config) Filter(scope Scope) Config {
	out := Config{values: make(map[string]Value)}
	for k, v := range c.values {
		if ScopeOf(k) == scope {
			out.values[k] = v.clone()
		}
	}
	return out
}

// Float returns the value for key as float64, falling back to the catalogue
// default.
func (c Config) Float(key string) float64 {
	if v, ok := c.values[key]; ok {
		return v.AsFloat()
	}
	if opt, ok := Lookup(key); ok {
		return opt.Default.AsFloat()
	}
	return 0
}

// Int returns the value for key as int64, falling back to the catalogue
// default.
func (c Config) Int(key string) int64 {
	if v, ok := c.values[key]; ok {
		return v.AsInt()
	}
	if opt, ok := Lookup(key); ok {
		return opt.Default.AsInt()
	}
	return 0
}

// Bool returns the value for key as bool, falling back to the catalogue
// default.
func (c Config) Bool(key string) bool {
	if v, ok := c.values[key]; ok {
		return v.AsBool()
	}
	if opt, ok := Lookup(key); ok {
		return opt.Default.AsBool()
	}
	return false
}

// String renders the config as sorted key=value pairs.
func (c Config) String() string {
	var buf []byte
	for i, k := range c.Keys() {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = append(buf, c.values[k].String()...)
	}
	return string(buf)
}
