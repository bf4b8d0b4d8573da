package print

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/cancel"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// ErrInconsistent marks an internal invariant violation detected while
// reconciling.
var ErrInconsistent = errors.New("print: inconsistent state")

// Severity is the outcome of Apply.
type Severity int

const (
	Unchanged Severity = iota
	Changed
	Invalidated
)

func (s Severity) String() string {
	switch s {
	case Changed:
		return "changed"
	case Invalidated:
		return "invalidated"
	default:
		return "unchanged"
	}
}

// TaskParams narrows the next processing run.
type TaskParams struct {
	// SingleObject limits object steps to the derived objects of one source
	// object. Print steps are skipped.
	SingleObject objectid.ID
	// ToObjectStep stops object processing after this step.
	ToObjectStep *printstep.ObjectStep
	// ToPrintStep stops print processing after this step.
	ToPrintStep *printstep.PrintStep
}

// Options configures a Print.
type Options struct {
	Generator   *objectid.Generator
	Logger      *slog.Logger
	DebugChecks bool
	Cancel      *cancel.Controller
}

// Print is the derived graph. All exported methods are safe for concurrent
// use by one editor and one worker.
type Print struct {
	mu          sync.Mutex
	gen         *objectid.Generator
	logger      *slog.Logger
	debugChecks bool
	cancel      *cancel.Controller

	model   *model.Model
	objects []*Object
	state   *stagestate.Table[printstep.PrintStep]

	printConfig    printconfig.Config
	objectDefaults printconfig.Config
	regionDefaults printconfig.Config
	extruders      int

	tables map[objectid.ID]*regionTable
	pool   map[uint64][]*Region

	task TaskParams
}

// New returns an empty print.
func New(opts Options) *Print {
	gen := objectid.Or(opts.Generator)
	ctrl := opts.Cancel
	if ctrl == nil {
		ctrl = cancel.New()
	}
	defaults := printconfig.FullDefaults()
	return &Print{
		gen:            gen,
		logger:         logging.NewComponentLogger(opts.Logger, "print"),
		debugChecks:    opts.DebugChecks,
		cancel:         ctrl,
		model:          model.New(gen),
		state:          stagestate.NewTable[printstep.PrintStep](gen),
		printConfig:    defaults.Filter(printconfig.ScopePrint),
		objectDefaults: defaults.Filter(printconfig.ScopeObject),
		regionDefaults: defaults.Filter(printconfig.ScopeRegion),
		extruders:      printconfig.ExtruderCount(defaults),
		tables:         make(map[objectid.ID]*regionTable),
		pool:           make(map[uint64][]*Region),
	}
}

// Cancel returns the cancellation controller shared with the worker.
func (p *Print) Cancel() *cancel.Controller {
	return p.cancel
}

// Generator returns the identifier source of the print.
func (p *Print) Generator() *objectid.Generator {
	return p.gen
}

// Empty reports whether the print has no derived object.
func (p *Print) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects) == 0
}

// Objects returns the derived objects in print order.
func (p *Print) Objects() []*Object {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.objects)
}

// Object returns the derived object with id, or nil.
func (p *Print) Object(id objectid.ID) *Object {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range p.objects {
		if o.id == id {
			return o
		}
	}
	return nil
}

// ObjectsOf returns the derived objects of one source object.
func (p *Print) ObjectsOf(source objectid.ID) []*Object {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.objectsOf(source)
}

func (p *Print) objectsOf(source objectid.ID) []*Object {
	var out []*Object
	for _, o := range p.objects {
		if o.source == source {
			out = append(out, o)
		}
	}
	return out
}

// Regions returns every interned region ordered by identifier.
func (p *Print) Regions() []*Region {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regions()
}

func (p *Print) regions() []*Region {
	var out []*Region
	for _, bucket := range p.pool {
		out = append(out, bucket...)
	}
	slices.SortFunc(out, func(a, b *Region) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return out
}

// StepState returns the state of a print step.
func (p *Print) StepState(step printstep.PrintStep) stagestate.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.State(step)
}

// StepRecord returns a copy of the record of a print step.
func (p *Print) StepRecord(step printstep.PrintStep) stagestate.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Record(step)
}

// ModelID returns the root identifier of the baseline model.
func (p *Print) ModelID() objectid.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.ID
}

// Config returns a copy of the effective print-scope configuration.
func (p *Print) Config() printconfig.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printConfig.Clone()
}

// inconsistent reports a broken invariant. With debug checks it panics,
// otherwise the caller continues best effort.
func (p *Print) inconsistent(format string, args ...any) {
	err := fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
	if p.debugChecks {
		panic(err)
	}
	logging.WarnWithContext(p.logger, "reconciliation inconsistency", "print_inconsistent",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "reload the scene to rebuild the print"),
		logging.String(logging.FieldImpact, "conflicting entry ignored"),
	)
}

// Instance is one placement of a derived object.
type Instance struct {
	ModelInstance objectid.ID
	Shift         model.Vec3
}

// Object is one transform class of a source object.
type Object struct {
	print  *Print
	id     objectid.ID
	source objectid.ID
	trafo  model.Transform

	instances []Instance
	state     *stagestate.Table[printstep.ObjectStep]
	config    printconfig.Config
	table     *regionTable
}

// ID returns the identifier of the derived object.
func (o *Object) ID() objectid.ID { return o.id }

// Source returns the identifier of the source object.
func (o *Object) Source() objectid.ID { return o.source }

// Transform returns the canonical transform, translation in XY removed.
func (o *Object) Transform() model.Transform { return o.trafo }

// Instances returns a copy of the instance placements.
func (o *Object) Instances() []Instance {
	o.print.mu.Lock()
	defer o.print.mu.Unlock()
	return slices.Clone(o.instances)
}

// StepState returns the state of an object step.
func (o *Object) StepState(step printstep.ObjectStep) stagestate.State {
	o.print.mu.Lock()
	defer o.print.mu.Unlock()
	return o.state.State(step)
}

// StepRecord returns a copy of the record of an object step.
func (o *Object) StepRecord(step printstep.ObjectStep) stagestate.Record {
	o.print.mu.Lock()
	defer o.print.mu.Unlock()
	return o.state.Record(step)
}

// Config returns a copy of the effective object configuration.
func (o *Object) Config() printconfig.Config {
	o.print.mu.Lock()
	defer o.print.mu.Unlock()
	return o.config.Clone()
}

// Regions returns the distinct regions used by the object, in slot order.
func (o *Object) Regions() []*Region {
	o.print.mu.Lock()
	defer o.print.mu.Unlock()
	if o.table == nil {
		return nil
	}
	return o.table.distinctRegions()
}

// Region is an interned effective region configuration.
type Region struct {
	print  *Print
	id     objectid.ID
	config printconfig.Config
	hash   uint64
	refs   int
}

// ID returns the identifier of the region.
func (r *Region) ID() objectid.ID { return r.id }

// Config returns a copy of the region configuration.
func (r *Region) Config() printconfig.Config {
	r.print.mu.Lock()
	defer r.print.mu.Unlock()
	return r.config.Clone()
}

// Hash returns the configuration fingerprint used for interning.
func (r *Region) Hash() uint64 {
	r.print.mu.Lock()
	defer r.print.mu.Unlock()
	return r.hash
}
