package scene_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/scene"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/testsupport"
)

const benchy = `
config:
  layer_height: 0.2
  skirt_loops: 2
custom_gcodes:
  - {z: 4.0, type: color_change, extruder: 2}
objects:
  - name: benchy
    config:
      wall_loops: 3
    volumes:
      - name: hull
        mesh: {source: hull.stl, triangles: 2048}
      - name: chimney
        type: modifier
        mesh: {source: chimney.stl, triangles: 64}
        transform:
          offset: [0, 0, 20]
        config:
          sparse_infill_density: 40
    instances:
      - at: [100, 100]
      - at: [140, 100]
        rotate_z: 90
        printable: false
    ranges:
      - zmin: 10
        zmax: 12
        config:
          wall_loops: 4
`

func decode(t *testing.T, src string) *scene.Document {
	t.Helper()
	doc, err := scene.Decode(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestDecodeReadsEverySection(t *testing.T) {
	doc := decode(t, benchy)

	assert.EqualValues(t, 0.2, doc.Config["layer_height"])
	require.Len(t, doc.CustomGCodes, 1)
	assert.Equal(t, "color_change", doc.CustomGCodes[0].Type)
	require.Len(t, doc.Objects, 1)
	obj := doc.Objects[0]
	assert.Equal(t, "benchy", obj.Name)
	require.Len(t, obj.Volumes, 2)
	assert.Equal(t, 2048, obj.Volumes[0].Mesh.Triangles)
	assert.Equal(t, []float64{0, 0, 20}, obj.Volumes[1].Transform.Offset)
	require.Len(t, obj.Instances, 2)
	require.NotNil(t, obj.Instances[1].Printable)
	assert.False(t, *obj.Instances[1].Printable)
	require.Len(t, obj.Ranges, 1)
	assert.Equal(t, 12.0, obj.Ranges[0].ZMax)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "objects:\n  - name: a\n    colour: red\n",
		"unnamed object": "objects:\n  - volumes: []\n",
		"short position": "objects:\n  - name: a\n    instances:\n      - at: [1]\n",
		"empty range":    "objects:\n  - name: a\n    ranges:\n      - {zmin: 2, zmax: 1}\n",
		"bad offset":     "objects:\n  - name: a\n    volumes:\n      - name: v\n        transform: {offset: [1, 2]}\n",
		"not yaml":       "objects: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scene.Decode(strings.NewReader(src))
			require.ErrorIs(t, err, scene.ErrInvalidScene)
		})
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	doc := decode(t, "")
	assert.Empty(t, doc.Objects)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchy.yaml")
	testsupport.WriteFile(t, path, benchy)

	doc, err := scene.Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Objects, 1)

	_, err = scene.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBindBuildsModel(t *testing.T) {
	b := scene.NewBinder(objectid.NewGenerator(), nil)
	m, cfg, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Float("layer_height"))
	require.Len(t, m.CustomGCodes, 1)
	assert.Equal(t, model.ColorChange, m.CustomGCodes[0].Type)

	obj := m.Objects[0]
	assert.EqualValues(t, 3, obj.Config.Values.Int("wall_loops"))
	require.Len(t, obj.Volumes, 2)
	assert.Equal(t, model.ModelPart, obj.Volumes[0].Type)
	assert.Equal(t, model.ParameterModifier, obj.Volumes[1].Type)
	assert.Equal(t, model.Vec3{0, 0, 20}, obj.Volumes[1].Transform.Offset())
	assert.EqualValues(t, 40, obj.Volumes[1].Config.Values.Int("sparse_infill_density"))

	require.Len(t, obj.Instances, 2)
	assert.True(t, obj.Instances[0].Printable)
	assert.False(t, obj.Instances[1].Printable)
	assert.Equal(t, model.Vec3{140, 100, 0}, obj.Instances[1].Transform.Offset())
	assert.InDelta(t, -1, obj.Instances[1].Transform.At(0, 1), 1e-9)

	require.Len(t, obj.LayerRanges, 1)
	assert.EqualValues(t, 4, obj.LayerRanges[0].Config.Values.Int("wall_loops"))
}

func TestBindKeepsIdentitiesAcrossReloads(t *testing.T) {
	b := scene.NewBinder(objectid.NewGenerator(), nil)
	first, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	second, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	a, c := first.Objects[0], second.Objects[0]
	assert.Equal(t, a.ID, c.ID)
	assert.Equal(t, a.Config.ID, c.Config.ID)
	assert.Equal(t, a.Config.Timestamp, c.Config.Timestamp)
	for i := range a.Volumes {
		assert.Equal(t, a.Volumes[i].ID, c.Volumes[i].ID)
		assert.Equal(t, a.Volumes[i].Config.Timestamp, c.Volumes[i].Config.Timestamp)
	}
	for i := range a.Instances {
		assert.Equal(t, a.Instances[i].ID, c.Instances[i].ID)
	}
	assert.Equal(t, a.LayerRanges[0].Config.Timestamp, c.LayerRanges[0].Config.Timestamp)
}

func TestBindTouchesOnlyEditedConfig(t *testing.T) {
	b := scene.NewBinder(objectid.NewGenerator(), nil)
	first, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	edited := strings.Replace(benchy, "sparse_infill_density: 40", "sparse_infill_density: 60", 1)
	second, _, err := b.Bind(decode(t, edited))
	require.NoError(t, err)

	a, c := first.Objects[0], second.Objects[0]
	assert.Equal(t, a.Config.Timestamp, c.Config.Timestamp)
	assert.Equal(t, a.Volumes[0].Config.Timestamp, c.Volumes[0].Config.Timestamp)
	assert.Equal(t, a.Volumes[1].ID, c.Volumes[1].ID)
	assert.NotEqual(t, a.Volumes[1].Config.Timestamp, c.Volumes[1].Config.Timestamp)
}

func TestBindRenamedObjectGetsNewIdentity(t *testing.T) {
	b := scene.NewBinder(objectid.NewGenerator(), nil)
	first, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	second, _, err := b.Bind(decode(t, strings.Replace(benchy, "name: benchy", "name: tugboat", 1)))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.Objects[0].ID, second.Objects[0].ID)
}

func TestBindErrorKeepsPreviousState(t *testing.T) {
	b := scene.NewBinder(objectid.NewGenerator(), nil)
	first, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)

	_, _, err = b.Bind(decode(t, strings.Replace(benchy, "type: modifier", "type: sprinkle", 1)))
	require.ErrorIs(t, err, scene.ErrInvalidScene)

	again, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	assert.Equal(t, first.Objects[0].Volumes[1].ID, again.Objects[0].Volumes[1].ID)
}

func TestBindForgetStartsNewRoot(t *testing.T) {
	b := scene.NewBinder(objectid.NewGenerator(), nil)
	first, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	b.Forget()
	second, _, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestReloadThroughPrint(t *testing.T) {
	gen := objectid.NewGenerator()
	b := scene.NewBinder(gen, nil)
	p := print.New(print.Options{Generator: gen, DebugChecks: true})
	ctx := context.Background()

	m, cfg, err := b.Bind(decode(t, benchy))
	require.NoError(t, err)
	require.Equal(t, print.Changed, p.Apply(ctx, m, cfg))
	objs := p.Objects()
	require.Len(t, objs, 1, "non-printable instance has no derived object")

	m, cfg, err = b.Bind(decode(t, benchy))
	require.NoError(t, err)
	assert.Equal(t, print.Unchanged, p.Apply(ctx, m, cfg))

	edited := strings.Replace(benchy, "wall_loops: 4", "wall_loops: 5", 1)
	m, cfg, err = b.Bind(decode(t, edited))
	require.NoError(t, err)
	assert.NotEqual(t, print.Unchanged, p.Apply(ctx, m, cfg))
	require.Len(t, p.Objects(), 1)
	assert.Same(t, objs[0], p.Objects()[0])
}
