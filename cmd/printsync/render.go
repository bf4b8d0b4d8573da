package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/print"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.Und)

// stepLabel turns "skirt_brim" into "Skirt Brim".
func stepLabel(step string) string {
	return titleCaser.String(strings.ReplaceAll(step, "_", " "))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func stateText(state stagestate.State, colorize bool) string {
	switch state {
	case stagestate.Done:
		return paint(state.String(), ansiGreen, colorize)
	case stagestate.Started:
		return paint(state.String(), ansiYellow, colorize)
	default:
		return paint(state.String(), ansiRed, colorize)
	}
}

func severityText(sev print.Severity, colorize bool) string {
	switch sev {
	case print.Unchanged:
		return paint(sev.String(), ansiGreen, colorize)
	case print.Changed:
		return paint(sev.String(), ansiBlue, colorize)
	default:
		return paint(sev.String(), ansiYellow, colorize)
	}
}

// renderReport prints the print steps, one row per derived object and the
// current warnings.
func renderReport(out io.Writer, rep print.Report, colorize bool) {
	rows := make([][]string, 0, len(rep.Steps))
	for _, s := range rep.Steps {
		rows = append(rows, []string{stepLabel(s.Step), stateText(s.State, colorize)})
	}
	fmt.Fprintln(out, renderTable([]string{"Print step", "State"}, rows, ""))

	if len(rep.Objects) > 0 {
		rows = rows[:0]
		for _, o := range rep.Objects {
			done := 0
			var pending []string
			for _, s := range o.Steps {
				if s.State == stagestate.Done {
					done++
					continue
				}
				pending = append(pending, stepLabel(s.Step))
			}
			rows = append(rows, []string{
				o.ID.String(),
				o.Name,
				fmt.Sprintf("%d", len(o.Instances)),
				fmt.Sprintf("%d/%d", done, len(o.Steps)),
				strings.Join(pending, ", "),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Object", "Name", "Instances", "Done", "Pending"},
			rows,
			"rlrrl",
		))
	}

	for _, w := range rep.Warnings() {
		color := ansiYellow
		if w.Level == stagestate.LevelCritical {
			color = ansiRed
		}
		owner := "print"
		if w.Owner.Valid() {
			owner = "object " + w.Owner.String()
		}
		line := fmt.Sprintf("%s %s (%s): %s", w.Level, stepLabel(w.Step), owner, w.Message)
		fmt.Fprintln(out, paint(line, color, colorize))
	}
}
