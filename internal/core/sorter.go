package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"github.com/Digital-Shane/sort-me-down/internal/log"
	"github.com/Digital-Shane/sort-me-down/internal/media"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pass phases reported in PassSummary.
const (
	PhaseScan   = "scan"
	PhaseLookup = "lookup"
	PhaseMove   = "move"
	PhaseSweep  = "sweep"
)

// PassSummary captures the state of a pass at a point in time.
type PassSummary struct {
	Phase     string
	Total     int
	LookedUp  int
	Processed int
	Workers   int
	LastItem  string
	Counts    Counts
	Done      bool
	Canceled  bool
}

// PassEvent is emitted while a pass runs. Record is set when a file finished;
// Report is set on the final event.
type PassEvent struct {
	Summary PassSummary
	Record  *Record
	Report  *Report
	Err     error
}

// Lookup is the outcome of the network half of the pipeline for one entry.
type Lookup struct {
	Tokens         media.ParsedTokens
	Candidates     int
	Verdict        MatchVerdict
	Classification Classification
	err            error
}

// Sorter runs the scan, lookup, plan and move pipeline over the source tree.
type Sorter struct {
	cfg        *config.Config
	scanner    *Scanner
	parser     *media.Parser
	resolver   *Resolver
	conflicts  ConflictResolver
	classifier *Classifier
	planner    *Planner
	executor   *Executor
	journal    *log.Journal
	command    []string
	logger     *zap.Logger
	workers    int
	now        func() time.Time
}

// SorterOption configures a Sorter.
type SorterOption func(*Sorter)

// WithSession opens a journal session named after command for every pass.
func WithSession(j *log.Journal, command ...string) SorterOption {
	return func(s *Sorter) {
		s.journal = j
		s.command = command
	}
}

// WithSorterLogger sets the logger.
func WithSorterLogger(l *zap.Logger) SorterOption {
	return func(s *Sorter) { s.logger = l }
}

// NewSorter wires the pipeline components for cfg.
func NewSorter(cfg *config.Config, resolver *Resolver, classifier *Classifier, executor *Executor, opts ...SorterOption) *Sorter {
	stripTokens := cfg.StripTokens
	if len(stripTokens) == 0 {
		stripTokens = media.DefaultStripTokens
	}
	minYear := cfg.MinYear
	if minYear == 0 {
		minYear = 1900
	}

	s := &Sorter{
		cfg:        cfg,
		scanner:    NewScanner(cfg),
		parser:     media.NewParser(media.WithStripTokens(stripTokens...), media.WithYearBounds(minYear, 1)),
		resolver:   resolver,
		conflicts:  ConflictResolver{YearTolerance: cfg.YearTolerance},
		classifier: classifier,
		planner:    NewPlanner(cfg),
		executor:   executor,
		logger:     zap.NewNop(),
		workers:    max(cfg.LookupWorkers, 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs one pass in the background and streams progress events. The
// channel closes after the final event, which carries the Report.
func (s *Sorter) Start(ctx context.Context) <-chan PassEvent {
	events := make(chan PassEvent, 128)
	go func() {
		defer close(events)
		s.run(ctx, func(ev PassEvent) {
			if ev.Report != nil {
				// The final event must not be lost to cancellation
				events <- ev
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return events
}

// RunPass runs one pass and blocks until it completes.
func (s *Sorter) RunPass(ctx context.Context) (Report, error) {
	var err error
	report := s.run(ctx, func(ev PassEvent) {
		if ev.Report != nil {
			err = ev.Err
		}
	})
	return report, err
}

func (s *Sorter) run(ctx context.Context, emit func(PassEvent)) Report {
	report := Report{Started: s.now(), DryRun: s.executor.DryRun()}
	summary := PassSummary{Phase: PhaseScan, Workers: s.workers}
	finish := func(err error) Report {
		report.Finished = s.now()
		summary.Done = true
		summary.Canceled = report.Canceled
		emit(PassEvent{Summary: summary, Report: &report, Err: err})
		return report
	}

	defer s.session(s.command, report.DryRun)()

	emit(PassEvent{Summary: summary})
	entries, err := s.scanner.Scan(ctx)
	if err != nil {
		report.Canceled = ctx.Err() != nil
		return finish(err)
	}

	summary.Phase = PhaseLookup
	summary.Total = len(entries)
	emit(PassEvent{Summary: summary})
	s.logger.Info("pass started", zap.String("source", s.scanner.Root()), zap.Int("files", len(entries)), zap.Bool("dry_run", report.DryRun))

	lookups := s.lookupAll(ctx, entries, func(done int, item string) {
		sum := summary
		sum.LookedUp = done
		sum.LastItem = item
		emit(PassEvent{Summary: sum})
	})
	summary.LookedUp = len(entries)

	summary.Phase = PhaseMove
	stats := NewStats()
	for i, entry := range entries {
		// Cancellation is honored between files, never during a move
		if ctx.Err() != nil || errors.Is(lookups[i].err, context.Canceled) || errors.Is(lookups[i].err, context.DeadlineExceeded) {
			report.Canceled = true
			break
		}

		rec := stats.Add(s.process(ctx, entry, lookups[i]))
		summary.Processed++
		summary.LastItem = filepath.Base(entry.Path)
		summary.Counts = stats.Counts()
		emit(PassEvent{Summary: summary, Record: &rec})
	}

	if !report.DryRun && !report.Canceled && !s.cfg.CleanupInPlace && s.cfg.SweepEmptyDirs {
		summary.Phase = PhaseSweep
		emit(PassEvent{Summary: summary})
		SweepEmptyDirs(s.cfg.SourceDir, []string{s.cfg.MismatchedDir}, s.journal, s.logger)
	}

	report.Records = stats.Records()
	report.Counts = stats.Counts()
	s.logger.Info("pass complete",
		zap.Int("sorted", report.Counts.Sorted),
		zap.Int("mismatched", report.Counts.Mismatched),
		zap.Int("errored", report.Counts.Errored),
		zap.Int("skipped", report.Counts.Skipped),
		zap.Bool("canceled", report.Canceled))

	if report.Canceled {
		return finish(ctx.Err())
	}
	return finish(nil)
}

// lookupAll resolves entries on a bounded worker pool. Results are indexed
// like entries so the move phase keeps scan order.
func (s *Sorter) lookupAll(ctx context.Context, entries []RawEntry, progress func(done int, item string)) []Lookup {
	results := make([]Lookup, len(entries))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range entries {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return err
			}
			results[i] = s.safeLookup(gctx, entries[i])
			progress(int(done.Add(1)), filepath.Base(entries[i].Path))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Sorter) safeLookup(ctx context.Context, entry RawEntry) (l Lookup) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("lookup panicked", zap.String("path", entry.Path), zap.Any("panic", r))
			l = Lookup{err: fmt.Errorf("lookup panicked: %v", r)}
		}
	}()
	return s.Lookup(ctx, entry)
}

// Lookup parses, resolves, evaluates and classifies one entry. The error is
// only set when ctx ended before the lookup finished.
func (s *Sorter) Lookup(ctx context.Context, entry RawEntry) Lookup {
	tokens := s.Tokens(entry)
	if tokens.Degraded {
		s.logger.Debug("name degraded to best effort title", zap.String("path", entry.Path), zap.String("title", tokens.Title))
	}

	candidates, err := s.resolver.Resolve(ctx, tokens)
	if err != nil {
		return Lookup{Tokens: tokens, err: err}
	}

	verdict := s.conflicts.Evaluate(tokens, candidates)
	return Lookup{
		Tokens:         tokens,
		Candidates:     len(candidates),
		Verdict:        verdict,
		Classification: s.classifier.Classify(ctx, verdict, tokens),
	}
}

// Tokens parses an entry. The query name supplies the title and year; the
// file name decides whether it is an episode.
func (s *Sorter) Tokens(entry RawEntry) media.ParsedTokens {
	fileTokens := s.parser.ParseFile(entry.Path)
	if entry.QueryName == "" || entry.QueryName == media.Stem(entry.Path) {
		return fileTokens
	}

	tokens := s.parser.Parse(entry.QueryName)
	if tokens.Degraded && !fileTokens.Degraded {
		tokens.Title = fileTokens.Title
		tokens.Degraded = false
	}
	if fileTokens.SeriesLikely {
		tokens.SeriesLikely = true
		tokens.Season = fileTokens.Season
		tokens.Episode = fileTokens.Episode
		tokens.HasEpisode = fileTokens.HasEpisode
	}
	if tokens.Year == 0 {
		tokens.Year = fileTokens.Year
	}
	if tokens.Language == "" {
		tokens.Language = fileTokens.Language
	}
	return tokens
}

// Process runs the whole pipeline for one entry and returns its record.
func (s *Sorter) Process(ctx context.Context, entry RawEntry) Record {
	return s.process(ctx, entry, s.safeLookup(ctx, entry))
}

// process plans and executes one entry. A panic is contained to the entry.
func (s *Sorter) process(ctx context.Context, entry RawEntry, l Lookup) (rec Record) {
	rec = Record{Source: entry.Path, Verdict: l.Verdict.Kind, Reason: l.Verdict.Reason}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("processing panicked", zap.String("path", entry.Path), zap.Any("panic", r))
			rec.Outcome = OutcomeErrored
			rec.Err = fmt.Errorf("processing panicked: %v", r)
			rec.Reason = rec.Err.Error()
		}
	}()

	if l.err != nil {
		rec.Outcome = OutcomeErrored
		rec.Err = l.err
		rec.Reason = l.err.Error()
		return rec
	}

	plan := s.planner.Plan(entry, l.Tokens, l.Verdict, l.Classification)
	return s.apply(ctx, rec, plan)
}

// Apply executes an already computed plan for entry and records the outcome.
func (s *Sorter) Apply(ctx context.Context, plan DestinationPlan, reason string) Record {
	return s.apply(ctx, Record{Source: plan.Source, Verdict: VerdictNoResult, Reason: reason}, plan)
}

func (s *Sorter) apply(ctx context.Context, rec Record, plan DestinationPlan) Record {
	rec.Category = plan.Category
	if plan.Skip {
		rec.Outcome = OutcomeSkipped
		rec.Reason = plan.SkipReason
		s.logger.Info("left in place", zap.String("path", rec.Source), zap.String("reason", plan.SkipReason))
		return rec
	}

	rec.Destination = plan.Target()
	res := s.executor.Execute(ctx, plan)
	rec.Files = res.FilesMoved
	rec.Bytes = res.BytesMoved

	switch {
	case res.Err != nil:
		rec.Outcome = OutcomeErrored
		rec.Err = res.Err
		s.logger.Warn("file left for next pass", zap.String("path", rec.Source), zap.Error(res.Err))
	case len(res.Moves) == 0:
		rec.Outcome = OutcomeSkipped
		rec.Reason = "already in place"
	case plan.Fallback:
		rec.Outcome = OutcomeMismatched
	default:
		rec.Outcome = OutcomeSorted
	}
	return rec
}

// session opens a journal session for cmd and returns the func closing it.
func (s *Sorter) session(cmd []string, dryRun bool) func() {
	if s.journal == nil {
		return func() {}
	}
	if err := s.journal.Start(commandName(cmd), commandArgs(cmd), s.cfg.SourceDir, dryRun); err != nil {
		s.logger.Warn("could not start journal session", zap.Error(err))
	}
	return func() {
		path, err := s.journal.End()
		if err != nil {
			s.logger.Warn("could not write journal session", zap.Error(err))
		} else if path != "" {
			s.logger.Debug("journal written", zap.String("path", path))
		}
	}
}

func commandName(cmd []string) string {
	if len(cmd) == 0 {
		return "sort"
	}
	return cmd[0]
}

func commandArgs(cmd []string) []string {
	if len(cmd) < 2 {
		return nil
	}
	return cmd[1:]
}
