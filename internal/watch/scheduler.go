package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Run when another scheduler holds the lock.
var ErrAlreadyRunning = errors.New("another watcher is already running")

// State is the scheduler lifecycle state.
type State int32

const (
	Idle State = iota
	Scanning
	Waiting
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Waiting:
		return "waiting"
	default:
		return "idle"
	}
}

// Trigger reasons reported in events.
const (
	ReasonStart    = "start"
	ReasonInterval = "interval"
	ReasonChange   = "change"
	ReasonManual   = "manual"
)

// Runner runs one pass over the source directory. *core.Sorter implements it.
type Runner interface {
	RunPass(ctx context.Context) (core.Report, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (core.Report, error)

func (f RunnerFunc) RunPass(ctx context.Context) (core.Report, error) { return f(ctx) }

// Event describes a state transition. Report and Err are set when a pass
// has just finished.
type Event struct {
	State  State
	Reason string
	Report *core.Report
	Err    error
	At     time.Time
}

// Options configures a Scheduler.
type Options struct {
	Source   string
	Interval time.Duration
	// Debounce collapses bursts of change notifications into one pass.
	Debounce time.Duration
	// Ignore lists directories below Source whose changes never trigger a pass.
	Ignore []string
	// LockPath enables the single instance lock when set.
	LockPath string
	// Poll is how often the source mtime is checked when change
	// notifications are unavailable.
	Poll   time.Duration
	Logger *zap.Logger
}

// Scheduler re-runs a pass whenever the interval elapses, the source tree
// changes or a pass is requested manually.
type Scheduler struct {
	runner Runner
	opts   Options
	logger *zap.Logger

	state    atomic.Int32
	trigger  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	events   chan Event

	newWatcher func() (*fsnotify.Watcher, error)
	lastMtime  time.Time
}

// New creates a scheduler. Run may be called once.
func New(runner Runner, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.Poll <= 0 {
		opts.Poll = min(opts.Interval, 30*time.Second)
	}
	opts.Source = filepath.Clean(opts.Source)

	return &Scheduler{
		runner:     runner,
		opts:       opts,
		logger:     opts.Logger,
		trigger:    make(chan struct{}, 1),
		stop:       make(chan struct{}),
		events:     make(chan Event, 64),
		newWatcher: fsnotify.NewWatcher,
	}
}

// State returns the current state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Events streams state transitions. It is closed when Run returns. Events
// are dropped when the reader falls behind.
func (s *Scheduler) Events() <-chan Event { return s.events }

// Trigger requests a pass. Requests made while one is pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop asks Run to return. A running pass stops at the next file boundary.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run blocks until ctx is done or Stop is called. It runs a pass at once
// and then after every interval, change or trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.events)

	if s.opts.LockPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.opts.LockPath), 0755); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
		lock := flock.New(s.opts.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return ErrAlreadyRunning
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				s.logger.Warn("failed to release watch lock", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	changes := s.watchTree(ctx)
	s.logger.Info("watching source",
		zap.String("source", s.opts.Source),
		zap.Duration("interval", s.opts.Interval),
		zap.Bool("notify", changes != nil))

	reason := ReasonStart
	for {
		s.runPass(ctx, reason)
		if ctx.Err() != nil {
			break
		}

		var ok bool
		if reason, ok = s.wait(ctx, changes); !ok {
			break
		}
	}

	s.setState(Idle, Event{Reason: "stopped"})
	s.logger.Info("watcher stopped")
	return nil
}

func (s *Scheduler) runPass(ctx context.Context, reason string) {
	s.setState(Scanning, Event{Reason: reason})
	s.logger.Debug("pass triggered", zap.String("reason", reason))
	s.lastMtime = s.sourceMtime()

	report, err := s.runner.RunPass(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("pass failed", zap.Error(err))
	}
	s.setState(Waiting, Event{Reason: reason, Report: &report, Err: err})
}

// wait blocks in the Waiting state and returns why the next pass starts.
func (s *Scheduler) wait(ctx context.Context, changes <-chan struct{}) (string, bool) {
	interval := time.NewTimer(s.opts.Interval)
	defer interval.Stop()

	var poll <-chan time.Time
	if changes == nil {
		ticker := time.NewTicker(s.opts.Poll)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-interval.C:
			return ReasonInterval, true
		case <-s.trigger:
			return ReasonManual, true
		case <-changes:
			return ReasonChange, true
		case <-poll:
			// Some platforms do not bump the directory mtime when a write
			// completes; the interval pass still picks those files up.
			if mtime := s.sourceMtime(); mtime.After(s.lastMtime) {
				return ReasonChange, true
			}
		}
	}
}

func (s *Scheduler) setState(state State, ev Event) {
	s.state.Store(int32(state))
	ev.State = state
	ev.At = time.Now()
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Scheduler) sourceMtime() time.Time {
	info, err := os.Stat(s.opts.Source)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// watchTree subscribes to changes below the source and returns a debounced
// signal channel, or nil when notifications are unavailable.
func (s *Scheduler) watchTree(ctx context.Context) <-chan struct{} {
	w, err := s.newWatcher()
	if err != nil {
		s.logger.Warn("change notifications unavailable, polling instead", zap.Error(err))
		return nil
	}
	if err := s.addTree(w, s.opts.Source); err != nil {
		s.logger.Warn("could not watch source, polling instead", zap.Error(err))
		w.Close()
		return nil
	}

	out := make(chan struct{}, 1)
	go s.pump(ctx, w, out)
	return out
}

// pump forwards relevant notifications to out, collapsing bursts that
// arrive within the debounce window.
func (s *Scheduler) pump(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer w.Close()

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", zap.Error(err))

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !s.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := s.addTree(w, ev.Name); err != nil {
						s.logger.Warn("could not watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			s.logger.Debug("source changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))

			if s.opts.Debounce <= 0 {
				notify(out)
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(s.opts.Debounce)
			} else {
				debounce.Reset(s.opts.Debounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			notify(out)
		}
	}
}

func notify(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}

// relevant keeps new and written files outside hidden and ignored paths.
// Removals and renames are what passes themselves produce.
func (s *Scheduler) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return !s.ignored(ev.Name)
}

func (s *Scheduler) ignored(path string) bool {
	for _, dir := range s.opts.Ignore {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(dir), path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree watches dir and every visible directory below it.
func (s *Scheduler) addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || s.ignored(path)) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
