package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Digital-Shane/sort-me-down/internal/log"
	"github.com/Digital-Shane/sort-me-down/internal/util"
	"go.uber.org/zap"
)

var (
	// ErrDestinationExists is returned instead of overwriting a file.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrNotMovable is returned when the Movable gate refuses a file.
	ErrNotMovable = errors.New("file is not ready to be moved")
)

// MoveError is a filesystem failure for one path. The OS error is kept so
// errors.Is(err, fs.ErrPermission) and friends still work.
type MoveError struct {
	Op   string
	Path string
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// MoveResult reports what Execute did, or would do in dry-run mode.
type MoveResult struct {
	Success    bool
	DryRun     bool
	FilesMoved int
	BytesMoved int64
	Moves      []PlannedMove
	Err        error
}

// Executor performs destination plans.
type Executor struct {
	dryRun  bool
	movable Movable
	journal *log.Journal
	logger  *zap.Logger
	move    func(src, dst string) (int64, error)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMovable sets the gate consulted before each file is moved.
func WithMovable(m Movable) ExecutorOption {
	return func(e *Executor) { e.movable = m }
}

// WithJournal records every filesystem change in j.
func WithJournal(j *log.Journal) ExecutorOption {
	return func(e *Executor) { e.journal = j }
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor. In dry-run mode plans are validated but
// the filesystem is never changed.
func NewExecutor(dryRun bool, opts ...ExecutorOption) *Executor {
	e := &Executor{
		dryRun:  dryRun,
		movable: OSLockMovable{},
		logger:  zap.NewNop(),
		move:    util.Move,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun reports whether the executor only simulates moves.
func (e *Executor) DryRun() bool { return e.dryRun }

// Execute moves the primary file and then each sidecar. Files are moved
// individually: a failure leaves files already moved at the destination and
// the rest at the source. ctx is only checked before the first move.
func (e *Executor) Execute(ctx context.Context, plan DestinationPlan) MoveResult {
	result := MoveResult{DryRun: e.dryRun}
	if plan.Skip {
		result.Success = true
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	pending := make([]PlannedMove, 0, 1+len(plan.Sidecars))
	for _, m := range plan.Moves() {
		if filepath.Clean(m.From) == filepath.Clean(m.To) {
			e.logger.Debug("already in place", zap.String("path", m.From))
			continue
		}
		pending = append(pending, m)
	}
	result.Moves = pending
	if len(pending) == 0 {
		result.Success = true
		return result
	}

	sizes, err := preflight(plan.Dir, pending)
	if err != nil {
		result.Err = err
		return result
	}

	if e.dryRun {
		for _, m := range pending {
			e.logger.Info("dry run: would move", zap.String("from", m.From), zap.String("to", m.To))
			result.FilesMoved++
			result.BytesMoved += sizes[m.From]
		}
		result.Success = true
		return result
	}

	for _, m := range pending {
		if !e.movable.IsMovable(m.From) {
			result.Err = &MoveError{Op: "move", Path: m.From, Err: ErrNotMovable}
			return result
		}
	}

	if err := e.mkdirAll(plan.Dir); err != nil {
		result.Err = err
		return result
	}

	var errs []error
	for _, m := range pending {
		n, err := e.move(m.From, m.To)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				err = fmt.Errorf("%w: %w", ErrDestinationExists, err)
			}
			err = &MoveError{Op: "move", Path: m.From, Err: err}
			e.journal.LogMove(m.From, m.To, err)
			e.logger.Error("move failed", zap.String("from", m.From), zap.String("to", m.To), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		e.journal.LogMove(m.From, m.To, nil)
		e.logger.Info("moved", zap.String("from", m.From), zap.String("to", m.To))
		result.FilesMoved++
		result.BytesMoved += n
	}

	result.Err = errors.Join(errs...)
	result.Success = result.Err == nil
	return result
}

// mkdirAll creates dir and journals every level it had to create.
func (e *Executor) mkdirAll(dir string) error {
	for _, d := range util.MissingDirs(dir) {
		err := os.Mkdir(d, 0755)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			err = &MoveError{Op: "mkdir", Path: d, Err: err}
			e.journal.LogCreateDir(d, err)
			return err
		}
		if err == nil {
			e.journal.LogCreateDir(d, nil)
		}
	}
	return nil
}

// preflight checks every source exists, no target exists and the target
// directory can be created. It returns the source sizes.
func preflight(dir string, moves []PlannedMove) (map[string]int64, error) {
	sizes := make(map[string]int64, len(moves))
	targets := make(map[string]bool, len(moves))
	for _, m := range moves {
		info, err := os.Stat(m.From)
		if err != nil {
			return nil, &MoveError{Op: "stat", Path: m.From, Err: err}
		}
		sizes[m.From] = info.Size()

		if _, err := os.Lstat(m.To); err == nil || targets[m.To] {
			return nil, &MoveError{Op: "move", Path: m.To, Err: ErrDestinationExists}
		}
		targets[m.To] = true
	}

	ancestor := dir
	for {
		info, err := os.Stat(ancestor)
		if err == nil {
			if !info.IsDir() {
				return nil, &MoveError{Op: "mkdir", Path: ancestor, Err: fmt.Errorf("not a directory")}
			}
			if info.Mode().Perm()&0222 == 0 {
				return nil, &MoveError{Op: "mkdir", Path: ancestor, Err: fs.ErrPermission}
			}
			return sizes, nil
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return sizes, nil
		}
		ancestor = parent
	}
}
