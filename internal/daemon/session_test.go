package daemon_test

import (
	"context"
	"strings"
	"testing"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/daemon"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/testsupport"
)

func TestSessionLoadProcessAndJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	rec := &testsupport.Recorder{}
	s, err := daemon.NewSession(daemon.SessionOptions{
		Config:   cfg,
		Handlers: stage.SimulatedSet(0),
		Journal:  store,
		Status:   rec.Status,
		Warning:  rec.Warning,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx := context.Background()
	scenePath := writeScene(t, cfg, plate)

	out, err := s.Load(ctx, scenePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Severity != print.Changed || out.Objects != 2 || out.ApplyID == 0 {
		t.Fatalf("unexpected outcome %#v", out)
	}
	summary, err := s.Process(ctx)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !s.Print().ObjectsDone() || summary.ObjectRuns == 0 {
		t.Fatalf("expected a complete run, got %#v", summary)
	}

	again, err := s.Load(ctx, scenePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again.Severity != print.Unchanged {
		t.Fatalf("expected unchanged reload, got %s", again.Severity)
	}

	runs, err := store.RunsFor(ctx, out.ApplyID)
	if err != nil {
		t.Fatalf("RunsFor: %v", err)
	}
	if len(runs) != 1 || runs[0].RequestID != summary.RequestID {
		t.Fatalf("expected the run to link to the first apply, got %#v", runs)
	}
	applies, err := store.RecentApplies(ctx, 10)
	if err != nil {
		t.Fatalf("RecentApplies: %v", err)
	}
	if len(applies) != 2 {
		t.Fatalf("expected 2 journaled applies, got %d", len(applies))
	}
}

func TestSessionJournalsWarnings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	rec := &testsupport.Recorder{}
	s, err := daemon.NewSession(daemon.SessionOptions{
		Config:   cfg,
		Handlers: stage.SimulatedSet(0),
		Journal:  store,
		Warning:  rec.Warning,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx := context.Background()
	wallless := strings.Replace(plate, "  - name: cylinder\n", "  - name: cylinder\n    config:\n      wall_loops: 0\n", 1)
	scenePath := writeScene(t, cfg, wallless)

	if _, err := s.Load(ctx, scenePath); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	warnings, err := store.RecentWarnings(ctx, 10)
	if err != nil {
		t.Fatalf("RecentWarnings: %v", err)
	}
	if len(warnings) == 0 || len(rec.Warnings()) != len(warnings) {
		t.Fatalf("expected journaled warnings to match callbacks, got %d and %d", len(warnings), len(rec.Warnings()))
	}
	if warnings[0].Step != "perimeters" {
		t.Fatalf("expected a perimeters warning, got %#v", warnings[0])
	}
}

func TestSessionRejectsBrokenScene(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, err := daemon.NewSession(daemon.SessionOptions{Config: cfg, Handlers: stage.SimulatedSet(0)})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	scenePath := writeScene(t, cfg, "objects:\n  - name: a\n    volumes:\n      - name: v\n        type: sprinkle\n")
	if _, err := s.Load(context.Background(), scenePath); err == nil {
		t.Fatal("expected load error")
	}
	if !s.Print().Empty() {
		t.Fatal("expected print to stay empty")
	}
}

func TestSessionNarrowLimitsOneProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, err := daemon.NewSession(daemon.SessionOptions{Config: cfg, Handlers: stage.SimulatedSet(0)})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Load(ctx, writeScene(t, cfg, plate)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.Narrow("sphere", ""); err == nil {
		t.Fatal("expected error for unknown object")
	}
	if err := s.Narrow("", "polish"); err == nil {
		t.Fatal("expected error for unknown step")
	}
	if err := s.Narrow("cube", "perimeters"); err != nil {
		t.Fatalf("Narrow: %v", err)
	}
	summary, err := s.Process(ctx)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.ObjectRuns != 2 || summary.PrintRuns != 0 {
		t.Fatalf("expected slice and perimeters of one object, got %#v", summary)
	}
	for _, o := range s.Print().Report().Objects {
		done := 0
		for _, step := range o.Steps {
			if step.State == stagestate.Done {
				done++
			}
		}
		want := 0
		if o.Name == "cube" {
			want = 2
		}
		if done != want {
			t.Fatalf("object %s: expected %d done steps, got %d", o.Name, want, done)
		}
	}
	if s.Print().Task() != (print.TaskParams{}) {
		t.Fatalf("expected narrowing to be dropped, got %#v", s.Print().Task())
	}

	if err := s.Narrow("", "skirt_brim"); err != nil {
		t.Fatalf("Narrow: %v", err)
	}
	summary, err = s.Process(ctx)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !s.Print().ObjectsDone() || summary.PrintRuns != 2 {
		t.Fatalf("expected every object step and two print steps, got %#v", summary)
	}
	if s.Print().StepState(printstep.SkirtBrim) != stagestate.Done || s.Print().StepState(printstep.GCodeExport) != stagestate.Invalid {
		t.Fatal("expected print steps to stop after skirt_brim")
	}
}
