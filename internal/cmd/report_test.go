package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/mattn/go-runewidth"
)

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		width int
		want  string
	}{
		{"fits", "/Movies/Up (2009)", 40, "/Movies/Up (2009)"},
		{"keeps tail", "/library/Movies/Inception (2010)", 18, "…/Inception (2010)"},
		{"wide runes", "/anime/千と千尋の神隠し", 12, "…尋の神隠し"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePath(tt.path, tt.width)
			if got != tt.want {
				t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.width, got, tt.want)
			}
			if w := runewidth.StringWidth(got); w > tt.width {
				t.Errorf("truncatePath(%q, %d) width = %d", tt.path, tt.width, w)
			}
		})
	}
}

func TestWriteReport(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := core.Report{
		Counts: core.Counts{Sorted: 1, Errored: 1, Skipped: 1},
		Records: []core.Record{
			{Source: "/src/Inception.2010.mkv", Outcome: core.OutcomeSorted, Verdict: core.VerdictConfident, Category: core.CategoryMovie, Destination: "/Movies/Inception (2010)/Inception (2010).mkv", Bytes: 2048},
			{Source: "/src/broken.mkv", Outcome: core.OutcomeErrored, Err: errors.New("permission denied")},
			{Source: "/src/partial.mkv", Outcome: core.OutcomeSkipped, Reason: "not movable yet"},
		},
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		DryRun:   true,
	}

	var quiet bytes.Buffer
	writeReport(&quiet, report, false)
	out := quiet.String()
	for _, want := range []string{"Summary", "Destination", "Inception.2010.mkv", "permission denied", "2.0 kB", "1.5s", "dry run"} {
		if !strings.Contains(out, want) {
			t.Errorf("writeReport() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "SUMMARY") {
		t.Errorf("writeReport() upper-cased the table headers:\n%s", out)
	}
	if strings.Contains(out, "partial.mkv") {
		t.Errorf("writeReport() listed a skipped file without verbose:\n%s", out)
	}

	var verbose bytes.Buffer
	writeReport(&verbose, report, true)
	if !strings.Contains(verbose.String(), "not movable yet") {
		t.Errorf("verbose writeReport() missing skip reason:\n%s", verbose.String())
	}
}
