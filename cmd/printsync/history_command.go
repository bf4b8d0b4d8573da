package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		warnings bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reconciliations from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			applies, err := store.RecentApplies(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(applies) == 0 {
				fmt.Fprintln(out, "No reconciliations recorded")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(applies))
			for _, a := range applies {
				runs, err := store.RunsFor(cmd.Context(), a.ID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", a.ID),
					a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					filepath.Base(a.Scene),
					paintSeverity(a.Severity, colorize),
					fmt.Sprintf("%d", a.Objects),
					fmt.Sprintf("%d", a.Regions),
					fmt.Sprintf("%d", len(runs)),
					a.Duration.Round(time.Microsecond).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "When", "Scene", "Severity", "Objects", "Regions", "Runs", "Apply"},
				rows,
				"rlllrrrr",
			))

			if !warnings {
				return nil
			}
			recent, err := store.RecentWarnings(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows = rows[:0]
			for _, w := range recent {
				owner := "print"
				if w.Owner.Valid() {
					owner = w.Owner.String()
				}
				rows = append(rows, []string{
					w.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					owner,
					stepLabel(w.Step),
					w.Level,
					w.Message,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"When", "Owner", "Step", "Level", "Message"}, rows, ""))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVarP(&warnings, "warnings", "w", false, "Also list recent step warnings")
	return cmd
}

func paintSeverity(severity string, colorize bool) string {
	switch severity {
	case "unchanged":
		return paint(severity, ansiGreen, colorize)
	case "changed":
		return paint(severity, ansiBlue, colorize)
	default:
		return paint(severity, ansiYellow, colorize)
	}
}
