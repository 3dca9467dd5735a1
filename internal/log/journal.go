package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type OperationType string

const (
	OpMove      OperationType = "move"
	OpDelete    OperationType = "delete"
	OpCreateDir OperationType = "create_dir"
	OpRemoveDir OperationType = "remove_dir"
)

type OperationLog struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Type       OperationType `json:"type"`
	SourcePath string        `json:"source_path"`
	DestPath   string        `json:"dest_path,omitempty"`
	Success    bool          `json:"success"`
	DryRun     bool          `json:"dry_run,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type SessionMetadata struct {
	CommandArgs   []string  `json:"command_args"`
	SourceDir     string    `json:"source_dir"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	DryRun        bool      `json:"dry_run"`
	TotalOps      int       `json:"total_operations"`
	SuccessfulOps int       `json:"successful_operations"`
	FailedOps     int       `json:"failed_operations"`
}

type LogSession struct {
	Metadata   SessionMetadata `json:"metadata"`
	Operations []OperationLog  `json:"operations"`
}

// Journal records filesystem operations of one session and persists them as
// JSON under dir. A disabled or nil Journal accepts every call and writes nothing.
type Journal struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	now     func() time.Time
	session *LogSession
}

// NewJournal creates a journal writing sessions into dir.
func NewJournal(dir string, enabled bool) *Journal {
	return &Journal{dir: dir, enabled: enabled, now: time.Now}
}

// Dir returns the session directory.
func (j *Journal) Dir() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// Start opens a new session. Operations recorded before Start are dropped.
func (j *Journal) Start(command string, args []string, sourceDir string, dryRun bool) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled {
		return nil
	}

	j.session = &LogSession{
		Metadata: SessionMetadata{
			CommandArgs: append([]string{command}, args...),
			SourceDir:   sourceDir,
			Timestamp:   j.now(),
			SessionID:   uuid.NewString(),
			DryRun:      dryRun,
		},
		Operations: []OperationLog{},
	}
	return nil
}

// LogMove records a file move
func (j *Journal) LogMove(sourcePath, destPath string, err error) {
	j.Record(OpMove, sourcePath, destPath, err)
}

// LogCreateDir records a directory creation
func (j *Journal) LogCreateDir(dirPath string, err error) {
	j.Record(OpCreateDir, "", dirPath, err)
}

// LogRemoveDir records an empty directory removal
func (j *Journal) LogRemoveDir(dirPath string, err error) {
	j.Record(OpRemoveDir, dirPath, "", err)
}

// LogDelete records a file deletion
func (j *Journal) LogDelete(path string, err error) {
	j.Record(OpDelete, path, "", err)
}

// Record appends an operation to the open session. A nil err marks success.
func (j *Journal) Record(opType OperationType, sourcePath, destPath string, err error) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled || j.session == nil {
		return
	}

	op := OperationLog{
		ID:         fmt.Sprintf("%s_%d", j.session.Metadata.SessionID, len(j.session.Operations)),
		Timestamp:  j.now(),
		Type:       opType,
		SourcePath: sourcePath,
		DestPath:   destPath,
		Success:    err == nil,
		DryRun:     j.session.Metadata.DryRun,
	}
	if err != nil {
		op.Error = err.Error()
	}

	j.session.Operations = append(j.session.Operations, op)
}

// Operations returns a copy of the operations recorded so far.
func (j *Journal) Operations() []OperationLog {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.session == nil {
		return nil
	}
	return append([]OperationLog(nil), j.session.Operations...)
}

// End closes the session and writes it to disk. Sessions without operations
// are discarded. It returns the written file path, or "" when nothing was written.
func (j *Journal) End() (string, error) {
	if j == nil {
		return "", nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled || j.session == nil {
		return "", nil
	}
	session := j.session
	j.session = nil

	if len(session.Operations) == 0 {
		return "", nil
	}

	updateStats(session)
	return j.write(session)
}

func updateStats(session *LogSession) {
	successful := 0
	for _, op := range session.Operations {
		if op.Success {
			successful++
		}
	}
	session.Metadata.TotalOps = len(session.Operations)
	session.Metadata.SuccessfulOps = successful
	session.Metadata.FailedOps = len(session.Operations) - successful
}

func (j *Journal) write(session *LogSession) (string, error) {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	ts := session.Metadata.Timestamp
	name := fmt.Sprintf("%s.%03d_%s.json", ts.Format("2006-01-02_150405"), ts.Nanosecond()/1000000, session.Metadata.SessionID[:8])
	path := filepath.Join(j.dir, name)

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write log file: %w", err)
	}
	return path, nil
}

// ReadSession loads one session file.
func ReadSession(logPath string) (*LogSession, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var session LogSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// sessionFiles lists session files newest first
func (j *Journal) sessionFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(j.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// Cleanup removes session files older than retentionDays. Zero keeps everything.
func (j *Journal) Cleanup(retentionDays int) error {
	if j == nil || retentionDays <= 0 {
		return nil
	}
	if _, err := os.Stat(j.dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	files, err := j.sessionFiles()
	if err != nil {
		return err
	}

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	var errs []error
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
