package print

import (
	"fmt"
	"slices"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/cancel"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// Snapshot is what one processing run reads. The model is a private copy,
// so the editor may keep mutating its own graph.
type Snapshot struct {
	Model   *model.Model
	Objects []objectid.ID
	Task    TaskParams
	Token   cancel.Token
}

// Snapshot captures the baseline model, the derived object order, the task
// narrowing and a cancellation token for one run.
func (p *Print) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]objectid.ID, len(p.objects))
	for i, o := range p.objects {
		ids[i] = o.id
	}
	return &Snapshot{
		Model:   p.model.Copy(),
		Objects: ids,
		Task:    p.task,
		Token:   p.cancel.Token(),
	}
}

// SetTask narrows the next processing run. Steps outside the known range
// are rejected and leave the current narrowing in place.
func (p *Print) SetTask(task TaskParams) error {
	if s := task.ToObjectStep; s != nil && !s.Valid() {
		return fmt.Errorf("set task: %s is not an object step", s)
	}
	if s := task.ToPrintStep; s != nil && !s.Valid() {
		return fmt.Errorf("set task: %s is not a print step", s)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task = task
	return nil
}

// Task returns the current narrowing.
func (p *Print) Task() TaskParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task
}

// Finalize drops any narrowing set with SetTask.
func (p *Print) Finalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task = TaskParams{}
}

// RegionView is a region configuration as seen by a step body.
type RegionView struct {
	ID     objectid.ID
	Config printconfig.Config
}

// ObjectView is an immutable copy of one derived object for a step body.
type ObjectView struct {
	ID        objectid.ID
	Source    *model.Object
	Transform model.Transform
	Instances []Instance
	Config    printconfig.Config
	Regions   []RegionView
}

// PrintView is an immutable copy of the print for a print step body.
type PrintView struct {
	Config  printconfig.Config
	Objects []*ObjectView
	Model   *model.Model
}

func (p *Print) findObject(id objectid.ID) *Object {
	for _, o := range p.objects {
		if o.id == id {
			return o
		}
	}
	return nil
}

func (o *Object) view(snap *Snapshot) *ObjectView {
	v := &ObjectView{
		ID:        o.id,
		Transform: o.trafo,
		Instances: slices.Clone(o.instances),
		Config:    o.config.Clone(),
	}
	if snap != nil && snap.Model != nil {
		v.Source = snap.Model.Object(o.source)
	}
	if o.table != nil {
		for _, r := range o.table.distinctRegions() {
			v.Regions = append(v.Regions, RegionView{ID: r.id, Config: r.config.Clone()})
		}
	}
	return v
}

// errGone is returned when the derived object disappeared since the
// snapshot was taken.
func errGone(id objectid.ID) error {
	return fmt.Errorf("%w: derived object %s no longer exists", cancel.ErrCanceled, id)
}

// StartObjectStep moves step of the derived object to Started. It reports
// false when the step is already Done, and a cancellation error when the run
// was canceled or the object is gone.
func (p *Print) StartObjectStep(snap *Snapshot, id objectid.ID, step printstep.ObjectStep) (*ObjectView, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.findObject(id)
	if o == nil {
		return nil, false, errGone(id)
	}
	started, err := o.state.SetStarted(step, snap.Token.Check)
	if err != nil || !started {
		return nil, started, err
	}
	return o.view(snap), true, nil
}

// FinishObjectStep moves a Started step to Done. A step invalidated while
// its body ran yields a cancellation error. The boolean reports whether the
// step's warnings changed.
func (p *Print) FinishObjectStep(id objectid.ID, step printstep.ObjectStep) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.findObject(id)
	if o == nil {
		return false, errGone(id)
	}
	_, changed, err := o.state.SetDone(step)
	if err != nil {
		return false, fmt.Errorf("%w: %w", cancel.ErrCanceled, err)
	}
	return changed, nil
}

// AbortObjectStep returns a Started step to Invalid after its body failed or
// unwound.
func (p *Print) AbortObjectStep(id objectid.ID, step printstep.ObjectStep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o := p.findObject(id); o != nil {
		o.state.Abort(step)
	}
}

// WarnObject attaches a warning to the active step of the derived object.
func (p *Print) WarnObject(id objectid.ID, level stagestate.Level, message string, messageID int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.findObject(id)
	if o == nil {
		return false, errGone(id)
	}
	return o.state.AddWarning(level, message, messageID)
}

// ObjectStepsDone reports whether every listed step of the derived object is
// Done.
func (p *Print) ObjectStepsDone(id objectid.ID, steps ...printstep.ObjectStep) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.findObject(id)
	return o != nil && o.state.AllDone(steps...)
}

// StartPrintStep moves a print step to Started and returns a view of every
// derived object.
func (p *Print) StartPrintStep(snap *Snapshot, step printstep.PrintStep) (*PrintView, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	started, err := p.state.SetStarted(step, snap.Token.Check)
	if err != nil || !started {
		return nil, started, err
	}
	v := &PrintView{Config: p.printConfig.Clone(), Model: snap.Model}
	for _, o := range p.objects {
		v.Objects = append(v.Objects, o.view(snap))
	}
	return v, true, nil
}

// FinishPrintStep moves a Started print step to Done.
func (p *Print) FinishPrintStep(step printstep.PrintStep) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, changed, err := p.state.SetDone(step)
	if err != nil {
		return false, fmt.Errorf("%w: %w", cancel.ErrCanceled, err)
	}
	return changed, nil
}

// AbortPrintStep returns a Started print step to Invalid.
func (p *Print) AbortPrintStep(step printstep.PrintStep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Abort(step)
}

// WarnPrint attaches a warning to the active print step.
func (p *Print) WarnPrint(level stagestate.Level, message string, messageID int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.AddWarning(level, message, messageID)
}

// ObjectsDone reports whether every derived object has every object step
// Done.
func (p *Print) ObjectsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	steps := printstep.ObjectSteps()
	for _, o := range p.objects {
		if !o.state.AllDone(steps...) {
			return false
		}
	}
	return true
}
