package stagestate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
)

func newTable() *Table[printstep.ObjectStep] {
	return NewTable[printstep.ObjectStep](objectid.NewGenerator())
}

func TestLifecycle(t *testing.T) {
	tbl := newTable()
	started, err := tbl.SetStarted(printstep.Slice, nil)
	if err != nil || !started {
		t.Fatalf("SetStarted = %v, %v", started, err)
	}
	if _, _, err := tbl.SetDone(printstep.Slice); err != nil {
		t.Fatalf("SetDone: %v", err)
	}
	started, err = tbl.SetStarted(printstep.Slice, nil)
	if err != nil || started {
		t.Fatal("a Done step must be skipped")
	}
	if tbl.State(printstep.Slice) != Done {
		t.Fatalf("skip must not mutate state, got %s", tbl.State(printstep.Slice))
	}
}

func TestSetStartedConsultsCheckFirst(t *testing.T) {
	tbl := newTable()
	boom := errors.New("canceled")
	if _, err := tbl.SetStarted(printstep.Slice, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
	if tbl.State(printstep.Slice) != Invalid {
		t.Fatal("state mutated before check")
	}
}

func TestSetDoneRequiresStarted(t *testing.T) {
	tbl := newTable()
	if _, _, err := tbl.SetDone(printstep.Infill); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestInvalidateCallsCancelUnderContract(t *testing.T) {
	tbl := newTable()
	calls := 0
	cancel := func() { calls++ }

	if tbl.Invalidate(printstep.Slice, cancel) {
		t.Fatal("invalidating an Invalid step must be a no-op")
	}
	if calls != 0 {
		t.Fatal("cancel must not run for a no-op")
	}

	tbl.SetStarted(printstep.Slice, nil)
	tbl.SetDone(printstep.Slice)
	tbl.SetStarted(printstep.Perimeters, nil)
	tbl.SetDone(printstep.Perimeters)

	if !tbl.InvalidateMany([]printstep.ObjectStep{printstep.Slice, printstep.Perimeters, printstep.Infill}, cancel) {
		t.Fatal("expected change")
	}
	if calls != 1 {
		t.Fatalf("cancel called %d times, want 1", calls)
	}
	if tbl.State(printstep.Slice) != Invalid || tbl.State(printstep.Perimeters) != Invalid {
		t.Fatal("steps not invalidated")
	}
	if tbl.InvalidateAll(cancel) || calls != 1 {
		t.Fatal("InvalidateAll on an all-Invalid table must be a no-op")
	}
}

func TestWarningsAreCollectedPerRun(t *testing.T) {
	tbl := newTable()
	tbl.SetStarted(printstep.Perimeters, nil)
	if notify, err := tbl.AddWarning(LevelWarning, "thin wall", 7); err != nil || !notify {
		t.Fatalf("first warning: %v %v", notify, err)
	}
	if notify, _ := tbl.AddWarning(LevelWarning, "thin wall", 7); notify {
		t.Fatal("identical current warning must not notify")
	}
	tbl.AddWarning(LevelCritical, "empty layer", 0)
	tbl.SetDone(printstep.Perimeters)

	want := []Warning{
		{Level: LevelWarning, Message: "thin wall", MessageID: 7, Current: true},
		{Level: LevelCritical, Message: "empty layer", Current: true},
	}
	if diff := cmp.Diff(want, tbl.Warnings(printstep.Perimeters)); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}

	// Second run re-raises only the first warning.
	tbl.Invalidate(printstep.Perimeters, nil)
	tbl.SetStarted(printstep.Perimeters, nil)
	if notify, _ := tbl.AddWarning(LevelWarning, "thin wall", 7); !notify {
		t.Fatal("re-raising a stale warning must notify")
	}
	_, changed, err := tbl.SetDone(printstep.Perimeters)
	if err != nil || !changed {
		t.Fatalf("SetDone changed=%v err=%v", changed, err)
	}
	if got := tbl.Warnings(printstep.Perimeters); len(got) != 1 || got[0].MessageID != 7 {
		t.Fatalf("stale warning not dropped: %+v", got)
	}
}

func TestAddWarningRequiresActiveStep(t *testing.T) {
	tbl := newTable()
	if _, err := tbl.AddWarning(LevelWarning, "x", 0); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestAbortKeepsWarnings(t *testing.T) {
	tbl := newTable()
	tbl.SetStarted(printstep.Slice, nil)
	tbl.AddWarning(LevelCritical, "degenerate mesh", 0)
	if !tbl.Abort(printstep.Slice) {
		t.Fatal("abort of a Started step must succeed")
	}
	rec := tbl.Record(printstep.Slice)
	if rec.State != Invalid || len(rec.Warnings) != 1 || !rec.Warnings[0].Current {
		t.Fatalf("unexpected record after abort: %+v", rec)
	}
	if tbl.Abort(printstep.Slice) {
		t.Fatal("abort of an Invalid step must be a no-op")
	}
}
