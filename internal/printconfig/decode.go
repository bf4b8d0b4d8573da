package printconfig

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
)

// ErrInvalidValue reports a raw value that cannot be coerced to its option kind.
var ErrInvalidValue = errors.New("invalid option value")

// FromMap converts loosely typed input (YAML or TOML decoded) into a Config.
// Known keys are coerced to the catalogue kind; unknown keys keep the kind
// implied by the raw value.
func FromMap(raw map[string]any) (Config, error) {
	out := Config{values: make(map[string]Value, len(raw))}
	var errs *multierror.Error
	for key, rv := range raw {
		kind := inferKind(rv)
		if opt, ok := Lookup(key); ok {
			kind = opt.Default.Kind()
		}
		v, err := coerce(kind, rv)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err))
			continue
		}
		out.values[key] = v
	}
	return out, errs.ErrorOrNil()
}

// ToMap is the inverse of FromMap.
func (c Config) ToMap() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		switch v.kind {
		case KindBool:
			out[k] = v.b
		case KindInt:
			out[k] = v.i
		case KindFloat:
			out[k] = v.f
		case KindFloats:
			out[k] = v.AsFloats()
		default:
			out[k] = v.s
		}
	}
	return out
}

func inferKind(rv any) Kind {
	switch rv.(type) {
	case bool:
		return KindBool
	case int, int64, int32, uint, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case []any, []float64, []int:
		return KindFloats
	default:
		return KindString
	}
}

func coerce(kind Kind, rv any) (Value, error) {
	switch kind {
	case KindBool:
		var b bool
		err := mapstructure.WeakDecode(rv, &b)
		return Bool(b), err
	case KindInt:
		var i int64
		err := mapstructure.WeakDecode(rv, &i)
		return Int(i), err
	case KindFloat:
		var f float64
		err := mapstructure.WeakDecode(rv, &f)
		return Float(f), err
	case KindFloats:
		var fs []float64
		err := mapstructure.WeakDecode(rv, &fs)
		return Floats(fs...), err
	default:
		var s string
		err := mapstructure.WeakDecode(rv, &s)
		return String(s), err
	}
}
