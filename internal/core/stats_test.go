package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStatsConcurrentAdd(t *testing.T) {
	s := NewStats()
	outcomes := []Outcome{OutcomeSorted, OutcomeMismatched, OutcomeErrored, OutcomeSkipped}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(Record{Source: fmt.Sprintf("/src/%02d.mkv", i), Outcome: outcomes[i%4], Bytes: 10})
		}(i)
	}
	wg.Wait()

	if diff := cmp.Diff(Counts{Sorted: 10, Mismatched: 10, Errored: 10, Skipped: 10}, s.Counts()); diff != "" {
		t.Errorf("Counts() mismatch (-want +got):\n%s", diff)
	}
	records := s.Records()
	if len(records) != 40 {
		t.Fatalf("Records() returned %d records", len(records))
	}
	for i, r := range records {
		if r.Seq != i+1 {
			t.Fatalf("Records()[%d].Seq = %d, want %d", i, r.Seq, i+1)
		}
	}

	report := Report{Records: records, Counts: s.Counts()}
	if report.Bytes() != 400 || report.Counts.Total() != 40 {
		t.Errorf("Bytes() = %d, Total() = %d", report.Bytes(), report.Counts.Total())
	}
}

func TestReportDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if d := (Report{Started: start}).Duration(); d != 0 {
		t.Errorf("unfinished Duration() = %v, want 0", d)
	}
	if d := (Report{Started: start, Finished: start.Add(90 * time.Second)}).Duration(); d != 90*time.Second {
		t.Errorf("Duration() = %v, want 1m30s", d)
	}
}
