package stagestate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
)

// ErrNotStarted is returned when a step is completed or warned about while it
// is not Started, typically because the editor invalidated it meanwhile.
var ErrNotStarted = errors.New("step not started")

// Step is an enumeration with a fixed number of members.
type Step interface {
	~int
	fmt.Stringer
	Count() int
}

// State of one step.
type State int

const (
	Invalid State = iota
	Started
	Done
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Done:
		return "done"
	default:
		return "invalid"
	}
}

// Level grades a warning.
type Level int

const (
	LevelWarning Level = iota
	LevelCritical
)

func (l Level) String() string {
	if l == LevelCritical {
		return "critical"
	}
	return "warning"
}

// Warning is raised by a step body.
type Warning struct {
	Level     Level
	Message   string
	MessageID int
	Current   bool
}

// Record is the state of one step.
type Record struct {
	State     State
	Timestamp objectid.Timestamp
	Warnings  []Warning
}

// Table holds the records of every step of S.
type Table[S Step] struct {
	gen       *objectid.Generator
	records   []Record
	active    S
	hasActive bool
}

// NewTable returns a table with every step Invalid.
func NewTable[S Step](gen *objectid.Generator) *Table[S] {
	var s S
	return &Table[S]{
		gen:     objectid.Or(gen),
		records: make([]Record, s.Count()),
	}
}

// State returns the state of step.
func (t *Table[S]) State(step S) State {
	return t.records[step].State
}

// IsDone reports whether step is Done.
func (t *Table[S]) IsDone(step S) bool {
	return t.records[step].State == Done
}

// Record returns a copy of the record of step.
func (t *Table[S]) Record(step S) Record {
	r := t.records[step]
	r.Warnings = slices.Clone(r.Warnings)
	return r
}

// Active returns the most recently started step.
func (t *Table[S]) Active() (S, bool) {
	return t.active, t.hasActive
}

// SetStarted moves step to Started. It returns false without touching the
// record when step is already Done. check is consulted before any mutation
// and its error is returned unchanged.
func (t *Table[S]) SetStarted(step S, check func() error) (bool, error) {
	if check != nil {
		if err := check(); err != nil {
			return false, err
		}
	}
	r := &t.records[step]
	if r.State == Done {
		return false, nil
	}
	r.State = Started
	r.Timestamp = t.gen.Touch()
	for i := range r.Warnings {
		r.Warnings[i].Current = false
	}
	t.active = step
	t.hasActive = true
	return true, nil
}

// SetDone moves a Started step to Done and drops warnings that were not
// raised again during this run. The boolean reports whether the public
// warning list changed.
func (t *Table[S]) SetDone(step S) (objectid.Timestamp, bool, error) {
	r := &t.records[step]
	if r.State != Started {
		return r.Timestamp, false, fmt.Errorf("%w: %s is %s", ErrNotStarted, step, r.State)
	}
	r.State = Done
	r.Timestamp = t.gen.Touch()
	before := len(r.Warnings)
	r.Warnings = slices.DeleteFunc(r.Warnings, func(w Warning) bool { return !w.Current })
	return r.Timestamp, len(r.Warnings) != before, nil
}

// Invalidate moves step to Invalid. cancel runs while the caller still
// holds the lock, before warnings are marked stale. Returns false when step
// was already Invalid.
func (t *Table[S]) Invalidate(step S, cancel func()) bool {
	r := &t.records[step]
	if r.State == Invalid {
		return false
	}
	r.State = Invalid
	r.Timestamp = t.gen.Touch()
	if cancel != nil {
		cancel()
	}
	markStale(r)
	return true
}

// InvalidateMany invalidates every listed step, calling cancel at most once.
func (t *Table[S]) InvalidateMany(steps []S, cancel func()) bool {
	var changed []S
	for _, s := range steps {
		if t.records[s].State != Invalid {
			changed = append(changed, s)
		}
	}
	if len(changed) == 0 {
		return false
	}
	ts := t.gen.Touch()
	for _, s := range changed {
		t.records[s].State = Invalid
		t.records[s].Timestamp = ts
	}
	if cancel != nil {
		cancel()
	}
	for _, s := range changed {
		markStale(&t.records[s])
	}
	return true
}

// InvalidateAll invalidates every step, calling cancel at most once.
func (t *Table[S]) InvalidateAll(cancel func()) bool {
	steps := make([]S, len(t.records))
	for i := range steps {
		steps[i] = S(i)
	}
	return t.InvalidateMany(steps, cancel)
}

// Abort returns a Started step to Invalid without requesting cancellation.
// The worker uses it when a step body unwinds or fails; current warnings are
// kept so a failure stays visible.
func (t *Table[S]) Abort(step S) bool {
	r := &t.records[step]
	if r.State != Started {
		return false
	}
	r.State = Invalid
	r.Timestamp = t.gen.Touch()
	return true
}

// AddWarning records a warning for the active step, which must be Started.
// A warning with the same MessageID, or the same text when id is zero, is
// refreshed in place. The boolean reports whether listeners should be told.
func (t *Table[S]) AddWarning(level Level, message string, id int) (bool, error) {
	if !t.hasActive || t.records[t.active].State != Started {
		return false, fmt.Errorf("%w: no active step", ErrNotStarted)
	}
	r := &t.records[t.active]
	for i := range r.Warnings {
		w := &r.Warnings[i]
		same := w.MessageID == id && (id != 0 || w.Message == message)
		if !same {
			continue
		}
		unchanged := w.Current && w.Level == level && w.Message == message
		w.Level = level
		w.Message = message
		w.Current = true
		return !unchanged, nil
	}
	r.Warnings = append(r.Warnings, Warning{Level: level, Message: message, MessageID: id, Current: true})
	return true, nil
}

// Warnings returns the warnings of step.
func (t *Table[S]) Warnings(step S) []Warning {
	return slices.Clone(t.records[step].Warnings)
}

// AllDone reports whether every step in steps is Done.
func (t *Table[S]) AllDone(steps ...S) bool {
	for _, s := range steps {
		if t.records[s].State != Done {
			return false
		}
	}
	return true
}

func markStale(r *Record) {
	for i := range r.Warnings {
		r.Warnings[i].Current = false
	}
}
