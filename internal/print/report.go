package print

import (
	"github.com/SoftFever/OrcaSlicer-sub043/internal/model"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printconfig"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/printstep"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// StepReport is the state of one step.
type StepReport struct {
	Step     string
	State    stagestate.State
	Warnings []stagestate.Warning
}

// SlotReport is one (volume, layer range) binding of a derived object.
type SlotReport struct {
	Volume   objectid.ID
	Kind     model.VolumeType
	ZMin     float64
	ZMax     float64
	Region   objectid.ID
	Modifies bool
}

// ObjectReport describes one derived object.
type ObjectReport struct {
	ID        objectid.ID
	Source    objectid.ID
	Name      string
	Transform model.Transform
	Instances []Instance
	Steps     []StepReport
	Slots     []SlotReport
}

// RegionReport describes one interned region.
type RegionReport struct {
	ID     objectid.ID
	Refs   int
	Hash   uint64
	Config printconfig.Config
}

// Report is a consistent picture of the whole print.
type Report struct {
	ModelID objectid.ID
	Steps   []StepReport
	Objects []ObjectReport
	Regions []RegionReport
}

// Report captures the derived graph and every step state.
func (p *Print) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	rep := Report{ModelID: p.model.ID}
	for _, s := range printstep.PrintSteps() {
		rec := p.state.Record(s)
		rep.Steps = append(rep.Steps, StepReport{Step: s.String(), State: rec.State, Warnings: rec.Warnings})
	}
	for _, o := range p.objects {
		or := ObjectReport{
			ID:        o.id,
			Source:    o.source,
			Transform: o.trafo,
			Instances: append([]Instance(nil), o.instances...),
		}
		if src := p.model.Object(o.source); src != nil {
			or.Name = src.Name
		}
		for _, s := range printstep.ObjectSteps() {
			rec := o.state.Record(s)
			or.Steps = append(or.Steps, StepReport{Step: s.String(), State: rec.State, Warnings: rec.Warnings})
		}
		if o.table != nil {
			for _, lr := range o.table.ranges {
				for i, slot := range lr.slots {
					sr := SlotReport{Volume: slot.volume, Kind: slot.kind, ZMin: lr.zmin, ZMax: lr.zmax}
					if slot.region != nil {
						sr.Region = slot.region.id
						sr.Modifies = !isPlaceholder(lr.slots, i)
					}
					or.Slots = append(or.Slots, sr)
				}
			}
		}
		rep.Objects = append(rep.Objects, or)
	}
	for _, r := range p.regions() {
		rep.Regions = append(rep.Regions, RegionReport{ID: r.id, Refs: r.refs, Hash: r.hash, Config: r.config.Clone()})
	}
	return rep
}

// Warnings flattens every current warning of the report.
func (r Report) Warnings() []OwnedWarning {
	var out []OwnedWarning
	for _, s := range r.Steps {
		for _, w := range s.Warnings {
			out = append(out, OwnedWarning{Step: s.Step, Warning: w})
		}
	}
	for _, o := range r.Objects {
		for _, s := range o.Steps {
			for _, w := range s.Warnings {
				out = append(out, OwnedWarning{Owner: o.ID, Step: s.Step, Warning: w})
			}
		}
	}
	return out
}

// OwnedWarning ties a warning to its step and, for object steps, to the
// derived object. Owner is zero for print steps.
type OwnedWarning struct {
	Owner objectid.ID
	Step  string
	stagestate.Warning
}
