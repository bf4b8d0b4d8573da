package model

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/copystructure"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
)

var copier = copystructure.Config{
	Copiers: map[reflect.Type]copystructure.CopierFunc{
		reflect.TypeOf(printconfig.Config{}): func(v interface{}) (interface{}, error) {
			return v.(printconfig.Config).Clone(), nil
		},
	},
}

func deepCopy[T any](v T) T {
	dup, err := copier.Copy(v)
	if err != nil {
		// Only plain data reaches here; a failure is a programming error.
		panic(fmt.Sprintf("model: deep copy %T: %v", v, err))
	}
	return dup.(T)
}

// Copy duplicates the model, keeping every identifier and timestamp.
func (m *Model) Copy() *Model {
	if m == nil {
		return nil
	}
	dup := deepCopy(m)
	dup.gen = m.gen
	return dup
}

// Clone duplicates the model and assigns fresh identifiers throughout.
func (m *Model) Clone() *Model {
	dup := m.Copy()
	objectid.AssignNewIdentities(m.Generator(), dup)
	return dup
}

// Copy duplicates the object, keeping identifiers.
func (o *Object) Copy() *Object {
	if o == nil {
		return nil
	}
	return deepCopy(o)
}

// Clone duplicates the object with fresh identifiers from g.
func (o *Object) Clone(g *objectid.Generator) *Object {
	dup := o.Copy()
	objectid.AssignNewIdentities(g, dup)
	return dup
}

// Copy duplicates the volume, keeping identifiers.
func (v *Volume) Copy() *Volume {
	if v == nil {
		return nil
	}
	return deepCopy(v)
}
