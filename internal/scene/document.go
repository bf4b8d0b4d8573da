package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// MaxFileSize bounds the scene files Load accepts.
const MaxFileSize = 4 << 20

// ErrInvalidScene wraps every decode and validation failure.
var ErrInvalidScene = errors.New("invalid scene")

// Document is one decoded scene file.
type Document struct {
	Config       map[string]any `mapstructure:"config"`
	CustomGCodes []CustomGCode  `mapstructure:"custom_gcodes"`
	Objects      []Object       `mapstructure:"objects"`
}

// CustomGCode is a per-height insertion.
type CustomGCode struct {
	Z        float64 `mapstructure:"z"`
	Type     string  `mapstructure:"type"`
	Extruder int     `mapstructure:"extruder"`
	Extra    string  `mapstructure:"extra"`
}

// Object describes one model object.
type Object struct {
	Name               string         `mapstructure:"name"`
	Config             map[string]any `mapstructure:"config"`
	Origin             []float64      `mapstructure:"origin"`
	LayerHeightProfile []float64      `mapstructure:"layer_height_profile"`
	Volumes            []Volume       `mapstructure:"volumes"`
	Instances          []Instance     `mapstructure:"instances"`
	Ranges             []Range        `mapstructure:"ranges"`
}

// Volume describes one mesh of an object.
type Volume struct {
	Name      string         `mapstructure:"name"`
	Type      string         `mapstructure:"type"`
	Mesh      Mesh           `mapstructure:"mesh"`
	Transform Placement      `mapstructure:"transform"`
	Config    map[string]any `mapstructure:"config"`
}

// Mesh references volume geometry.
type Mesh struct {
	Source    string `mapstructure:"source"`
	Triangles int    `mapstructure:"triangles"`
}

// Placement is a transform written as offset, rotation in degrees and scale.
type Placement struct {
	Offset []float64 `mapstructure:"offset"`
	Rotate []float64 `mapstructure:"rotate"`
	Scale  []float64 `mapstructure:"scale"`
}

// Instance places the object on the bed.
type Instance struct {
	At        []float64 `mapstructure:"at"`
	RotateZ   float64   `mapstructure:"rotate_z"`
	Scale     float64   `mapstructure:"scale"`
	Printable *bool     `mapstructure:"printable"`
}

// Range is a height range override.
type Range struct {
	ZMin   float64        `mapstructure:"zmin"`
	ZMax   float64        `mapstructure:"zmax"`
	Config map[string]any `mapstructure:"config"`
}

// Load reads and decodes the scene file at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat scene: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidScene, path, info.Size(), MaxFileSize)
	}
	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a scene from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidScene, MaxFileSize)
	}

	var raw map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidScene, err)
	}

	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("scene decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	for i, o := range d.Objects {
		if o.Name == "" {
			return fmt.Errorf("%w: object %d has no name", ErrInvalidScene, i)
		}
		if len(o.Origin) != 0 && len(o.Origin) != 3 {
			return fmt.Errorf("%w: object %q: origin needs 3 coordinates", ErrInvalidScene, o.Name)
		}
		for _, v := range o.Volumes {
			if v.Name == "" {
				return fmt.Errorf("%w: object %q has an unnamed volume", ErrInvalidScene, o.Name)
			}
			if err := v.Transform.validate(); err != nil {
				return fmt.Errorf("%w: volume %q: %v", ErrInvalidScene, v.Name, err)
			}
		}
		for j, inst := range o.Instances {
			if n := len(inst.At); n != 2 && n != 3 {
				return fmt.Errorf("%w: object %q instance %d: at needs 2 or 3 coordinates", ErrInvalidScene, o.Name, j)
			}
		}
		for _, r := range o.Ranges {
			if r.ZMax <= r.ZMin {
				return fmt.Errorf("%w: object %q: range [%g, %g) is empty", ErrInvalidScene, o.Name, r.ZMin, r.ZMax)
			}
		}
	}
	return nil
}

func (p Placement) validate() error {
	if n := len(p.Offset); n != 0 && n != 3 {
		return errors.New("offset needs 3 values")
	}
	if n := len(p.Rotate); n != 0 && n != 3 {
		return errors.New("rotate needs 3 values")
	}
	if n := len(p.Scale); n != 0 && n != 1 && n != 3 {
		return errors.New("scale needs 1 or 3 values")
	}
	return nil
}
