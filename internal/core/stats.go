package core

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/mhmtszr/concurrent-swiss-map"
)

// Outcome is how a file ended up after a pass.
type Outcome string

const (
	OutcomeSorted     Outcome = "sorted"
	OutcomeMismatched Outcome = "mismatched"
	OutcomeErrored    Outcome = "errored"
	OutcomeSkipped    Outcome = "skipped"
)

// Record is the per-file result of a pass.
type Record struct {
	Seq         int
	Source      string
	Outcome     Outcome
	Verdict     VerdictKind
	Category    Category
	Destination string
	Reason      string
	Err         error
	Files       int
	Bytes       int64
}

// Counts aggregates outcomes.
type Counts struct {
	Sorted     int
	Mismatched int
	Errored    int
	Skipped    int
}

// Total returns the number of files accounted for.
func (c Counts) Total() int {
	return c.Sorted + c.Mismatched + c.Errored + c.Skipped
}

// Report summarizes one pass.
type Report struct {
	Counts   Counts
	Records  []Record
	Started  time.Time
	Finished time.Time
	DryRun   bool
	Canceled bool
}

// Duration returns the wall time of the pass.
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Bytes returns the total size of files moved (or that would be moved).
func (r Report) Bytes() int64 {
	var total int64
	for _, rec := range r.Records {
		total += rec.Bytes
	}
	return total
}

// Stats collects records from concurrent workers. It is append only.
type Stats struct {
	seq     atomic.Int64
	records *csmap.CsMap[string, Record]
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{records: csmap.Create[string, Record]()}
}

// Add stores r under the next sequence number and returns it.
func (s *Stats) Add(r Record) Record {
	r.Seq = int(s.seq.Add(1))
	s.records.Store(fmt.Sprintf("%08d|%s", r.Seq, r.Source), r)
	return r
}

// Records returns all records in the order they were added.
func (s *Stats) Records() []Record {
	out := make([]Record, 0, s.records.Count())
	s.records.Range(func(_ string, r Record) bool {
		out = append(out, r)
		return false
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Counts tallies outcomes.
func (s *Stats) Counts() Counts {
	var c Counts
	s.records.Range(func(_ string, r Record) bool {
		switch r.Outcome {
		case OutcomeSorted:
			c.Sorted++
		case OutcomeMismatched:
			c.Mismatched++
		case OutcomeErrored:
			c.Errored++
		case OutcomeSkipped:
			c.Skipped++
		}
		return false
	})
	return c
}
