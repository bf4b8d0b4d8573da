package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

func newTreeCommand(ctx *commandContext) *cobra.Command {
	var process bool

	cmd := &cobra.Command{
		Use:   "tree FILE",
		Short: "Show the derived print graph of a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(ctx, false, 0)
			if err != nil {
				return err
			}
			defer closeFn()

			if _, err := session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			if process {
				if _, err := session.Process(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTree(session.Print().Report()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&process, "process", false, "Run every step before printing the graph")
	return cmd
}

func renderTree(rep print.Report) string {
	root := treeprint.NewWithRoot(fmt.Sprintf("print (model %s)", rep.ModelID))

	steps := root.AddBranch("steps")
	for _, s := range rep.Steps {
		steps.AddNode(fmt.Sprintf("%s: %s", s.Step, s.State))
	}

	for _, o := range rep.Objects {
		obj := root.AddBranch(fmt.Sprintf("object %s %q (source %s)", o.ID, o.Name, o.Source))
		insts := obj.AddBranch("instances")
		for _, inst := range o.Instances {
			insts.AddNode(fmt.Sprintf("%s at (%g, %g, %g)", inst.ModelInstance, inst.Shift[0], inst.Shift[1], inst.Shift[2]))
		}
		slots := obj.AddBranch("slots")
		for _, s := range o.Slots {
			line := fmt.Sprintf("%s %s %s", rangeText(s.ZMin, s.ZMax), s.Kind, s.Volume)
			if s.Region.Valid() {
				line += " -> region " + s.Region.String()
				if !s.Modifies {
					line += " (placeholder)"
				}
			}
			slots.AddNode(line)
		}
		var done []string
		for _, s := range o.Steps {
			if s.State == stagestate.Done {
				done = append(done, s.Step)
			}
		}
		if len(done) > 0 {
			obj.AddNode("done: " + strings.Join(done, ", "))
		}
	}

	regions := root.AddBranch("regions")
	for _, r := range rep.Regions {
		regions.AddNode(fmt.Sprintf("region %s refs=%d %s", r.ID, r.Refs, r.Config))
	}
	return root.String()
}

func rangeText(zmin, zmax float64) string {
	if math.IsInf(zmax, 1) {
		return fmt.Sprintf("[%g, inf)", zmin)
	}
	return fmt.Sprintf("[%g, %g)", zmin, zmax)
}
