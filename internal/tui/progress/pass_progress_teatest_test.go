package progress

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/Digital-Shane/sort-me-down/internal/tui/theme"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
)

// scriptedPass replays a fixed list of events.
type scriptedPass struct {
	events []core.PassEvent
	block  bool
}

func (p scriptedPass) Start(ctx context.Context) <-chan core.PassEvent {
	ch := make(chan core.PassEvent, len(p.events)+1)
	go func() {
		defer close(ch)
		for _, ev := range p.events {
			ch <- ev
		}
		if p.block {
			<-ctx.Done()
			report := core.Report{Canceled: true}
			ch <- core.PassEvent{Summary: core.PassSummary{Done: true, Canceled: true}, Report: &report, Err: ctx.Err()}
		}
	}()
	return ch
}

func finalOutput(t *testing.T, tm *teatest.TestModel) []byte {
	t.Helper()
	out, err := io.ReadAll(tm.FinalOutput(t, teatest.WithFinalTimeout(2*time.Second)))
	if err != nil {
		t.Fatalf("FinalOutput read error = %v", err)
	}
	return out
}

func TestPassProgressModelRunsToCompletion(t *testing.T) {
	sorted := core.Record{Source: "/src/Inception.mkv", Outcome: core.OutcomeSorted, Category: core.CategoryMovie, Destination: "/Movies/Inception (2010)"}
	report := core.Report{Counts: core.Counts{Sorted: 1}, Records: []core.Record{sorted}}
	pass := scriptedPass{events: []core.PassEvent{
		{Summary: core.PassSummary{Phase: core.PhaseLookup, Total: 1}},
		{Summary: core.PassSummary{Phase: core.PhaseLookup, Total: 1, LookedUp: 1}},
		{Summary: core.PassSummary{Phase: core.PhaseMove, Total: 1, LookedUp: 1, Processed: 1, Counts: core.Counts{Sorted: 1}}, Record: &sorted},
		{Summary: core.PassSummary{Phase: core.PhaseMove, Total: 1, LookedUp: 1, Processed: 1, Counts: core.Counts{Sorted: 1}, Done: true}, Report: &report},
	}}

	model := NewPassProgressModel(context.Background(), pass, theme.Default())
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(100, 24))
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

	final := tm.FinalModel(t).(*PassProgressModel)
	if final.Report() == nil {
		t.Fatal("Report() = nil after completion")
	}
	if got := final.Report().Counts.Sorted; got != 1 {
		t.Errorf("Report().Counts.Sorted = %d, want 1", got)
	}
	if final.Canceled() {
		t.Error("Canceled() = true for a completed pass")
	}
	if out := finalOutput(t, tm); !bytes.Contains(out, []byte("Sorting Media")) {
		t.Errorf("final output missing header:\n%s", out)
	}
}

func TestPassProgressModelCtrlCStopsPass(t *testing.T) {
	pass := scriptedPass{
		events: []core.PassEvent{{Summary: core.PassSummary{Phase: core.PhaseLookup, Total: 5}}},
		block:  true,
	}

	model := NewPassProgressModel(context.Background(), pass, theme.Default())
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(100, 24))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("LOOKUP"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

	final := tm.FinalModel(t).(*PassProgressModel)
	if !final.Canceled() {
		t.Error("Canceled() = false after ctrl+c")
	}
	if final.Report() == nil || !final.Report().Canceled {
		t.Errorf("Report() = %+v, want the canceled report", final.Report())
	}
	if final.Err() != nil {
		t.Errorf("Err() = %v, want nil", final.Err())
	}
}

func TestPassProgressModelNilStarterQuits(t *testing.T) {
	model := NewPassProgressModel(context.Background(), nil, theme.Default())
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(80, 20))
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	if final := tm.FinalModel(t).(*PassProgressModel); final.Report() != nil {
		t.Errorf("Report() = %+v, want nil", final.Report())
	}
}
