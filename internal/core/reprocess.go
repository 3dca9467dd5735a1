package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// ErrOutsideMismatched is returned when a mismatched operation targets a
// file that does not live in the mismatched directory.
var ErrOutsideMismatched = errors.New("file is not in the mismatched directory")

// MismatchedDir returns the directory that receives unmatched files.
func (s *Sorter) MismatchedDir() string { return s.cfg.MismatchedDir }

// ListMismatched returns the primary files waiting in the mismatched
// directory, sorted by name. A missing directory holds nothing.
func (s *Sorter) ListMismatched() ([]RawEntry, error) {
	dir := s.cfg.MismatchedDir
	dirEntries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var entries []RawEntry
	for _, de := range dirEntries {
		if de.IsDir() || !de.Type().IsRegular() || !s.scanner.IsVideo(de.Name()) {
			continue
		}
		entries = append(entries, s.scanner.entryFor(filepath.Join(dir, de.Name())))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Reprocess runs the full pipeline again for one mismatched file.
func (s *Sorter) Reprocess(ctx context.Context, path string) (Record, error) {
	entry, err := s.mismatchedEntry(path)
	if err != nil {
		return Record{}, err
	}
	defer s.session([]string{"mismatched", "reprocess", entry.Path}, s.executor.DryRun())()

	rec := s.Process(ctx, entry)
	return rec, rec.Err
}

// Force places a file in category using its parsed name, bypassing lookup.
// lang selects a split language root when set.
func (s *Sorter) Force(ctx context.Context, path string, category Category, lang string) (Record, error) {
	if category == CategoryNone {
		return Record{}, fmt.Errorf("force %s: a category is required", path)
	}
	entry, err := s.mismatchedEntry(path)
	if err != nil {
		return Record{}, err
	}
	defer s.session([]string{"mismatched", "force", entry.Path, string(category)}, s.executor.DryRun())()

	plan := s.planner.PlanForced(entry, s.Tokens(entry), category, LanguageCode(lang))
	plan.Fallback = false
	s.logger.Info("forcing placement", zap.String("path", entry.Path), zap.String("category", string(category)))

	rec := s.Apply(ctx, plan, fmt.Sprintf("forced as %s", category))
	return rec, rec.Err
}

// Delete removes a mismatched file and its sidecars. In dry-run mode it only
// reports what would be removed.
func (s *Sorter) Delete(path string) ([]string, error) {
	entry, err := s.mismatchedEntry(path)
	if err != nil {
		return nil, err
	}
	files := append([]string{entry.Path}, entry.Sidecars...)
	if s.executor.DryRun() {
		return files, nil
	}
	defer s.session([]string{"mismatched", "delete", entry.Path}, false)()

	var errs []error
	removed := make([]string, 0, len(files))
	for _, f := range files {
		err := os.Remove(f)
		s.journal.LogDelete(f, err)
		if err != nil {
			errs = append(errs, &MoveError{Op: "delete", Path: f, Err: err})
			continue
		}
		removed = append(removed, f)
		s.logger.Info("deleted", zap.String("path", f))
	}
	return removed, errors.Join(errs...)
}

// mismatchedEntry resolves path, which may be relative to the mismatched
// directory, into an entry.
func (s *Sorter) mismatchedEntry(path string) (RawEntry, error) {
	dir := s.cfg.MismatchedDir
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(dir, path)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return RawEntry{}, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return RawEntry{}, err
	}
	if filepath.Dir(abs) != absDir {
		return RawEntry{}, fmt.Errorf("%s: %w", abs, ErrOutsideMismatched)
	}
	return s.scanner.Entry(abs)
}
