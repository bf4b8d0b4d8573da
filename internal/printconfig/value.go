package printconfig

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind tags the variant stored in a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindFloats
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindFloats:
		return "floats"
	default:
		return "none"
	}
}

// Value is one option value.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	floats []float64
}

func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func Floats(v ...float64) Value {
	return Value{kind: KindFloats, floats: slices.Clone(v)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsZero() bool { return v.kind == KindNone }

func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		b, _ := strconv.ParseBool(v.s)
		return b
	}
	return false
}

func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindBool:
		if v.b {
			return 1
		}
	}
	return 0
}

func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	}
	return 0
}

func (v Value) AsString() string {
	if v.kind == KindString {
		return v.s
	}
	return v.String()
}

// AsFloats returns a copy of a list value.
func (v Value) AsFloats() []float64 {
	if v.kind == KindFloats {
		return slices.Clone(v.floats)
	}
	if v.kind == KindFloat || v.kind == KindInt {
		return []float64{v.AsFloat()}
	}
	return nil
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindFloats:
		return slices.Equal(v.floats, o.floats)
	}
	return true
}

func (v Value) clone() Value {
	if v.kind == KindFloats {
		v.floats = slices.Clone(v.floats)
	}
	return v
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindFloats:
		parts := make([]string, len(v.floats))
		for i, f := range v.floats {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// GoString renders the value with its kind, used in diffs and debug logs.
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.String())
}
