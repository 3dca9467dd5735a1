package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/Digital-Shane/sort-me-down/internal/tui/theme"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// maxPathWidth bounds path cells so tables fit a normal terminal.
const maxPathWidth = 48

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	style := table.StyleRounded
	// Headers print as written; StyleRounded upper-cases them by default
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// truncatePath keeps the tail of a path, which carries the useful part.
func truncatePath(path string, width int) string {
	if runewidth.StringWidth(path) <= width {
		return path
	}
	runes := []rune(path)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail)+1 <= width {
			return "…" + tail
		}
	}
	return runewidth.Truncate(path, width, "…")
}

// outcomeBadge renders an outcome in its badge color.
func outcomeBadge(th theme.Theme, o core.Outcome) string {
	kind := theme.BadgeMuted
	switch o {
	case core.OutcomeSorted:
		kind = theme.BadgeSuccess
	case core.OutcomeMismatched:
		kind = theme.BadgeWarning
	case core.OutcomeErrored:
		kind = theme.BadgeError
	}
	return th.BadgeStyle(kind).Render(string(o))
}

// writeReport prints the per-file table followed by the pass summary.
// Skipped files are listed only when verbose.
func writeReport(w io.Writer, report core.Report, verbose bool) {
	th := theme.Default()

	rows := make([][]string, 0, len(report.Records))
	for _, rec := range report.Records {
		if rec.Outcome == core.OutcomeSkipped && !verbose {
			continue
		}
		detail := rec.Destination
		switch {
		case rec.Err != nil:
			detail = rec.Err.Error()
		case detail == "":
			detail = rec.Reason
		}
		rows = append(rows, []string{
			outcomeBadge(th, rec.Outcome),
			truncatePath(filepath.Base(rec.Source), maxPathWidth),
			rec.Verdict.String(),
			string(rec.Category),
			truncatePath(detail, maxPathWidth),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Outcome", "File", "Verdict", "Category", "Destination"}, rows, nil))
	}

	c := report.Counts
	summary := [][]string{
		{"Sorted", fmt.Sprint(c.Sorted)},
		{"Mismatched", fmt.Sprint(c.Mismatched)},
		{"Errored", fmt.Sprint(c.Errored)},
		{"Skipped", fmt.Sprint(c.Skipped)},
		{"Moved", humanize.Bytes(uint64(max(report.Bytes(), 0)))},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
	}
	fmt.Fprintln(w, renderTable([]string{"Summary", ""}, summary, []columnAlignment{alignLeft, alignRight}))

	var notes []string
	if report.DryRun {
		notes = append(notes, "dry run: nothing was moved")
	}
	if report.Canceled {
		notes = append(notes, "pass interrupted: remaining files are left for the next run")
	}
	if len(notes) > 0 {
		fmt.Fprintln(w, strings.Join(notes, "\n"))
	}
}
