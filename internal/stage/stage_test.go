package stage_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/cancel"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

type recordedWarning struct {
	level stagestate.Level
	msg   string
	id    int
}

func objectJob(step printstep.ObjectStep, src *model.Object, cfg map[string]printconfig.Value) (*stage.Job, *[]recordedWarning) {
	var warnings []recordedWarning
	base := printconfig.FullDefaults()
	base.Apply(printconfig.New(cfg))
	job := &stage.Job{
		Step: step.String(),
		Object: &print.ObjectView{
			ID:      objectid.ID(42),
			Source:  src,
			Config:  base,
			Regions: []print.RegionView{{ID: 7, Config: base}},
		},
		Warn: func(level stagestate.Level, msg string, id int) {
			warnings = append(warnings, recordedWarning{level, msg, id})
		},
	}
	return job, &warnings
}

func cube(triangles int) *model.Object {
	m := model.New(objectid.NewGenerator())
	o := m.AddObject("cube")
	m.AddVolume(o, "body", model.ModelPart, model.MeshRef{Source: "cube.stl", Triangles: triangles})
	return o
}

func TestSliceRejectsEmptyMesh(t *testing.T) {
	h, ok := stage.SimulatedSet(0).ObjectHandler(printstep.Slice)
	if !ok {
		t.Fatal("slice handler missing")
	}
	job, _ := objectJob(printstep.Slice, cube(0), nil)

	err := h.Run(context.Background(), job)
	if !errors.Is(err, stage.ErrDegenerateGeometry) {
		t.Fatalf("expected degenerate geometry, got %v", err)
	}
	f, ok := stage.AsFailure(err)
	if !ok {
		t.Fatalf("expected a Failure, got %T", err)
	}
	if f.Owner != 42 || f.Step != "slice" {
		t.Fatalf("unexpected failure owner/step: %+v", f)
	}
	if !strings.Contains(err.Error(), `volume "body" has an empty mesh`) {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestSliceRejectsNonPositiveLayerHeight(t *testing.T) {
	h, _ := stage.SimulatedSet(0).ObjectHandler(printstep.Slice)
	job, _ := objectJob(printstep.Slice, cube(12), map[string]printconfig.Value{"layer_height": printconfig.Float(0)})
	if err := h.Run(context.Background(), job); !errors.Is(err, stage.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestBodiesReturnCancellationUnchanged(t *testing.T) {
	ctrl := cancel.New()
	tok := ctrl.Token()
	ctrl.CancelInternal()

	set := stage.SimulatedSet(0)
	for _, step := range printstep.ObjectSteps() {
		h, _ := set.ObjectHandler(step)
		job, _ := objectJob(step, cube(12), nil)
		job.Check = tok.Check
		if err := h.Run(context.Background(), job); !cancel.IsCanceled(err) {
			t.Fatalf("%s: expected cancellation, got %v", step, err)
		}
	}
}

func TestPerimetersWarnsAboutWalllessRegion(t *testing.T) {
	h, _ := stage.SimulatedSet(0).ObjectHandler(printstep.Perimeters)
	job, warnings := objectJob(printstep.Perimeters, cube(12), map[string]printconfig.Value{"wall_loops": printconfig.Int(0)})
	if err := h.Run(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*warnings) != 1 || (*warnings)[0].id != stage.WarnNoWalls {
		t.Fatalf("unexpected warnings: %+v", *warnings)
	}
}

func TestSupportsWarnAboutIgnoredEnforcers(t *testing.T) {
	src := cube(12)
	m := model.New(objectid.NewGenerator())
	m.AddVolume(src, "enforcer", model.SupportEnforcer, model.MeshRef{Triangles: 12})

	h, _ := stage.SimulatedSet(0).ObjectHandler(printstep.SupportMaterial)
	job, warnings := objectJob(printstep.SupportMaterial, src, nil)
	if err := h.Run(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*warnings) != 1 || (*warnings)[0].id != stage.WarnEnforcersIgnored {
		t.Fatalf("unexpected warnings: %+v", *warnings)
	}

	job, warnings = objectJob(printstep.SupportMaterial, src, map[string]printconfig.Value{"enable_support": printconfig.Bool(true)})
	if err := h.Run(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*warnings) != 0 {
		t.Fatalf("supports enabled must not warn: %+v", *warnings)
	}
}

func TestConflictCheckFlagsOverlap(t *testing.T) {
	a, b := cube(12), cube(12)
	a.Name, b.Name = "left", "right"
	views := []*print.ObjectView{
		{ID: 1, Source: a, Transform: model.Identity(), Instances: []print.Instance{{ModelInstance: 10, Shift: model.Vec3{5, 5, 0}}}},
		{ID: 2, Source: b, Transform: model.Identity(), Instances: []print.Instance{{ModelInstance: 11, Shift: model.Vec3{5, 5, 0}}}},
	}
	var got []string
	job := &stage.Job{
		Step:  printstep.ConflictCheck.String(),
		Print: &print.PrintView{Objects: views},
		Warn:  func(_ stagestate.Level, msg string, _ int) { got = append(got, msg) },
	}
	h, _ := stage.SimulatedSet(0).PrintHandler(printstep.ConflictCheck)
	if err := h.Run(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != `objects "left" and "right" overlap` {
		t.Fatalf("unexpected warnings: %q", got)
	}
}

func TestPauseHonorsContext(t *testing.T) {
	h, _ := stage.SimulatedSet(time.Hour).ObjectHandler(printstep.Infill)
	job, _ := objectJob(printstep.Infill, cube(12), nil)
	ctx, cancelCtx := context.WithCancel(context.Background())
	cancelCtx()
	if err := h.Run(ctx, job); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestSetHealth(t *testing.T) {
	health := stage.SimulatedSet(0).Health(context.Background())
	if len(health) != printstep.ObjectStepCount+printstep.PrintStepCount {
		t.Fatalf("unexpected health entries: %d", len(health))
	}
	for name, h := range health {
		if !h.Ready || h.Name != name {
			t.Fatalf("unexpected health for %s: %+v", name, h)
		}
	}
}

func TestSetHealthFlagsMissingHandlers(t *testing.T) {
	set := stage.SimulatedSet(0)
	delete(set.Object, printstep.Ironing)
	set.Print[printstep.ConflictCheck] = nil

	health := set.Health(context.Background())
	if len(health) != printstep.ObjectStepCount+printstep.PrintStepCount {
		t.Fatalf("unexpected health entries: %d", len(health))
	}
	for _, name := range []string{"ironing", "conflict_check"} {
		h := health[name]
		if h.Ready || h.Name != name || h.Detail == "" {
			t.Fatalf("expected %s to be unhealthy, got %+v", name, h)
		}
	}
	if !health["infill"].Ready {
		t.Fatalf("expected infill to stay healthy, got %+v", health["infill"])
	}
}

func TestFailureFormatting(t *testing.T) {
	err := stage.Fail(stage.ErrInvalidInput, 0, " gcode_export ", " no extruder ")
	if got := err.Error(); got != "gcode_export: no extruder: invalid input" {
		t.Fatalf("unexpected message %q", got)
	}
}
