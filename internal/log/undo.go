package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/util"
	"github.com/dustin/go-humanize"
)

type UndoResult struct {
	Operation OperationLog
	Success   bool
	Error     error
}

// UndoOperation reverses a single successful operation. Moves are only
// reversed when the original location is free; directories are only removed
// when empty.
func UndoOperation(op OperationLog) UndoResult {
	result := UndoResult{Operation: op}

	if op.DryRun {
		result.Success = true
		return result
	}

	switch op.Type {
	case OpMove:
		if op.DestPath == "" || op.SourcePath == "" {
			result.Error = fmt.Errorf("cannot undo move: path missing")
			return result
		}
		if _, err := os.Stat(op.DestPath); os.IsNotExist(err) {
			result.Error = fmt.Errorf("cannot undo move: file %s not found", op.DestPath)
			return result
		}
		if _, err := os.Stat(op.SourcePath); err == nil {
			result.Error = fmt.Errorf("cannot undo move: original path %s already exists", op.SourcePath)
			return result
		}
		// The source folder may have been swept after the move
		if err := os.MkdirAll(filepath.Dir(op.SourcePath), 0755); err != nil {
			result.Error = fmt.Errorf("failed to recreate %s: %w", filepath.Dir(op.SourcePath), err)
			return result
		}
		if _, err := util.Move(op.DestPath, op.SourcePath); err != nil {
			result.Error = fmt.Errorf("failed to move %s back to %s: %w", op.DestPath, op.SourcePath, err)
			return result
		}
		result.Success = true

	case OpCreateDir:
		path := op.DestPath
		if path == "" {
			path = op.SourcePath
		}
		if path == "" {
			result.Error = fmt.Errorf("cannot undo directory creation: path missing")
			return result
		}

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			result.Success = true
			return result
		}
		if err != nil {
			result.Error = err
			return result
		}
		if !info.IsDir() {
			result.Error = fmt.Errorf("path %s is not a directory", path)
			return result
		}

		empty, err := util.IsEmptyDir(path)
		if err != nil {
			result.Error = fmt.Errorf("failed to read directory %s: %w", path, err)
			return result
		}
		if !empty {
			result.Error = fmt.Errorf("cannot remove directory %s: not empty", path)
			return result
		}
		if err := os.Remove(path); err != nil {
			result.Error = fmt.Errorf("failed to remove directory %s: %w", path, err)
			return result
		}
		result.Success = true

	case OpRemoveDir:
		if err := os.MkdirAll(op.SourcePath, 0755); err != nil {
			result.Error = fmt.Errorf("failed to recreate directory %s: %w", op.SourcePath, err)
			return result
		}
		result.Success = true

	case OpDelete:
		result.Error = fmt.Errorf("cannot undo delete of %s: file contents are gone", op.SourcePath)

	default:
		result.Error = fmt.Errorf("unknown operation type: %s", op.Type)
	}

	return result
}

// UndoSession reverses the successful operations of a session, newest first.
func UndoSession(session *LogSession) (successful int, failed int, errs []error) {
	for i := len(session.Operations) - 1; i >= 0; i-- {
		op := session.Operations[i]
		if !op.Success {
			continue
		}

		result := UndoOperation(op)
		if result.Success {
			successful++
			continue
		}
		failed++
		if result.Error != nil {
			errs = append(errs, result.Error)
		}
	}
	return successful, failed, errs
}

// ErrNoSessions is returned when the journal directory holds no sessions.
var ErrNoSessions = errors.New("no sessions found")

// Latest returns the most recent session and its file path.
func (j *Journal) Latest() (*LogSession, string, error) {
	files, err := j.sessionFiles()
	if err != nil {
		return nil, "", err
	}
	for _, file := range files {
		session, err := ReadSession(file)
		if err != nil {
			continue
		}
		return session, file, nil
	}
	return nil, "", ErrNoSessions
}

type SessionSummary struct {
	Session      *LogSession
	FilePath     string
	RelativeTime string
	Icon         string
}

// Summaries lists up to limit sessions, newest first. Corrupt files are skipped.
func (j *Journal) Summaries(limit int) ([]SessionSummary, error) {
	files, err := j.sessionFiles()
	if err != nil {
		return nil, err
	}

	summaries := make([]SessionSummary, 0, len(files))
	for _, file := range files {
		if limit > 0 && len(summaries) == limit {
			break
		}
		session, err := ReadSession(file)
		if err != nil {
			continue
		}
		summaries = append(summaries, SessionSummary{
			Session:      session,
			FilePath:     file,
			RelativeTime: formatRelativeTime(j.now(), session.Metadata.Timestamp),
			Icon:         commandIcon(session.Metadata.CommandArgs),
		})
	}
	return summaries, nil
}

func formatRelativeTime(now, t time.Time) string {
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	if now.Sub(t) < 7*24*time.Hour {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Format("Jan 2, 2006")
}

func commandIcon(args []string) string {
	if len(args) == 0 {
		return "❓"
	}
	switch args[0] {
	case "sort":
		return "📦"
	case "watch":
		return "👀"
	case "mismatched":
		return "🔁"
	default:
		return "📝"
	}
}
