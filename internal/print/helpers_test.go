package print_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/testsupport"
)

func newEngine(t *testing.T) (*print.Print, *model.Model) {
	t.Helper()
	gen := objectid.NewGenerator()
	p := print.New(print.Options{Generator: gen, DebugChecks: true})
	return p, testsupport.NewModel(gen)
}

func apply(t *testing.T, p *print.Print, m *model.Model) print.Severity {
	t.Helper()
	return p.Apply(context.Background(), m, printconfig.Config{})
}

func applyWith(t *testing.T, p *print.Print, m *model.Model, opts map[string]printconfig.Value) print.Severity {
	t.Helper()
	return p.Apply(context.Background(), m, printconfig.New(opts))
}

// runAll completes every outstanding step the way the worker would.
func runAll(t *testing.T, p *print.Print) {
	t.Helper()
	snap := p.Snapshot()
	for _, id := range snap.Objects {
		for _, step := range printstep.ObjectSteps() {
			_, started, err := p.StartObjectStep(snap, id, step)
			require.NoError(t, err)
			if !started {
				continue
			}
			_, err = p.FinishObjectStep(id, step)
			require.NoError(t, err)
		}
	}
	for _, step := range printstep.PrintSteps() {
		_, started, err := p.StartPrintStep(snap, step)
		require.NoError(t, err)
		if !started {
			continue
		}
		_, err = p.FinishPrintStep(step)
		require.NoError(t, err)
	}
}

func objectStates(o *print.Object) map[printstep.ObjectStep]stagestate.State {
	out := make(map[printstep.ObjectStep]stagestate.State)
	for _, s := range printstep.ObjectSteps() {
		out[s] = o.StepState(s)
	}
	return out
}

func onlyObject(t *testing.T, p *print.Print) *print.Object {
	t.Helper()
	objs := p.Objects()
	require.Len(t, objs, 1)
	return objs[0]
}

func regionIDs(regions []*print.Region) []objectid.ID {
	out := make([]objectid.ID, len(regions))
	for i, r := range regions {
		out[i] = r.ID()
	}
	return out
}
