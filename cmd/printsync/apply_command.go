package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/daemon"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/journal"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/pipeline"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stage"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var (
		noProcess bool
		noJournal bool
		stepDelay time.Duration
		object    string
		toStep    string
	)

	cmd := &cobra.Command{
		Use:   "apply FILE [FILE...]",
		Short: "Apply scene files in turn to one print and process it",
		Long: "Apply loads every scene into the same session, so each file after the first\n" +
			"is reconciled against the previous one and only the affected steps run again.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noProcess && (object != "" || toStep != "") {
				return errors.New("--object and --to-step need processing; drop --no-process")
			}
			session, closeFn, err := openSession(ctx, !noJournal, stepDelay)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var failed bool
			for _, path := range args {
				outcome, err := session.Load(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s (objects %d, regions %d)\n",
					path, severityText(outcome.Severity, colorize), outcome.Objects, outcome.Regions)
				if noProcess {
					continue
				}
				if err := session.Narrow(object, toStep); err != nil {
					return err
				}
				summary, err := session.Process(cmd.Context())
				switch {
				case errors.Is(err, pipeline.ErrStageFailed):
					failed = true
					fmt.Fprintf(out, "processing failed: %v\n", err)
				case err != nil:
					return err
				case summary.Canceled:
					fmt.Fprintln(out, "processing canceled")
				default:
					fmt.Fprintf(out, "processed %d object steps and %d print steps in %s\n",
						summary.ObjectRuns, summary.PrintRuns, summary.Elapsed.Round(time.Millisecond))
				}
				renderReport(out, session.Print().Report(), colorize)
			}
			if failed {
				return pipeline.ErrStageFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProcess, "no-process", false, "Only reconcile; do not run any step")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record the run in the journal")
	cmd.Flags().DurationVar(&stepDelay, "step-delay", 0, "Simulated duration of each step unit")
	cmd.Flags().StringVar(&object, "object", "", "Process only the object with this name")
	cmd.Flags().StringVar(&toStep, "to-step", "", "Stop after this object or print step (e.g. perimeters, gcode_export)")
	return cmd
}

// openSession builds a session for one-shot commands. The returned func
// closes the journal when one was opened.
func openSession(ctx *commandContext, withJournal bool, stepDelay time.Duration) (*daemon.Session, func(), error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	var store *journal.Store
	closeFn := func() {}
	if withJournal {
		if store, err = ctx.openJournal(); err != nil {
			return nil, nil, err
		}
		closeFn = func() { _ = store.Close() }
	}
	session, err := daemon.NewSession(daemon.SessionOptions{
		Config:   cfg,
		Handlers: stage.SimulatedSet(stepDelay),
		Journal:  store,
		Logger:   logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return session, closeFn, nil
}
