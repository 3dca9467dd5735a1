package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"github.com/Digital-Shane/sort-me-down/internal/media"
)

var seasonDirRe = regexp.MustCompile(`(?i)^(?:season[ ._-]?\d{1,3}|s\d{1,3}|specials)$`)

// RawEntry is one primary media file found in the source tree together with
// its sidecars. It lives only for the duration of a pass.
type RawEntry struct {
	Path     string
	Sidecars []string
	// QueryName is the parent folder name for nested files, otherwise the
	// file stem. Release folders usually carry the cleaner name.
	QueryName string
}

// Scanner enumerates primary media files below the source directory.
type Scanner struct {
	root       string
	mismatched string
	deep       bool
	skip       map[string]bool
	video      map[string]bool
	sidecar    map[string]bool
}

// NewScanner builds a scanner from the run configuration.
func NewScanner(cfg *config.Config) *Scanner {
	s := &Scanner{
		root:       filepath.Clean(cfg.SourceDir),
		mismatched: cleanOrEmpty(cfg.MismatchedDir),
		deep:       cfg.DeepScan,
		skip:       map[string]bool{},
		video:      extSet(cfg.VideoExtensions),
		sidecar:    extSet(cfg.SidecarExtensions),
	}
	// Library folders nested inside the source must not be sorted again
	if !cfg.CleanupInPlace {
		for _, dir := range cfg.LibraryDirs() {
			s.skip[dir] = true
		}
	} else if s.mismatched != "" {
		s.skip[s.mismatched] = true
	}
	return s
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = true
	}
	return set
}

func cleanOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Root returns the scanned source directory.
func (s *Scanner) Root() string { return s.root }

// IsVideo reports whether path has a configured video extension.
func (s *Scanner) IsVideo(path string) bool {
	return s.video[strings.ToLower(filepath.Ext(path))]
}

// Scan walks the source tree and returns entries sorted by path. Hidden
// files and folders, the mismatched directory and library folders are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]RawEntry, error) {
	var primaries []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			// Unreadable subtrees are retried on the next pass
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if s.skip[path] || !s.deep {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.IsVideo(path) {
			primaries = append(primaries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	sort.Strings(primaries)
	entries := make([]RawEntry, 0, len(primaries))
	for _, p := range primaries {
		entries = append(entries, s.entryFor(p))
	}
	return entries, nil
}

// Entry builds the RawEntry for a single primary file.
func (s *Scanner) Entry(path string) (RawEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return RawEntry{}, err
	}
	if info.IsDir() || !s.IsVideo(path) {
		return RawEntry{}, fmt.Errorf("%s is not a video file", path)
	}
	return s.entryFor(filepath.Clean(path)), nil
}

func (s *Scanner) entryFor(path string) RawEntry {
	entry := RawEntry{Path: path, Sidecars: s.sidecars(path), QueryName: media.Stem(path)}

	parent := filepath.Dir(path)
	// "Show/Season 1/ep.mkv" is queried as "Show"
	for seasonDirRe.MatchString(filepath.Base(parent)) && parent != s.root {
		parent = filepath.Dir(parent)
	}
	if parent != s.root && parent != s.mismatched && isWithin(s.root, parent) {
		entry.QueryName = filepath.Base(parent)
	}
	return entry
}

// sidecars finds siblings sharing the primary's stem. "movie.en.srt" counts
// as a sidecar of "movie.mkv".
func (s *Scanner) sidecars(primary string) []string {
	dir := filepath.Dir(primary)
	stem := media.Stem(primary)

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || name == filepath.Base(primary) {
			continue
		}
		if !s.sidecar[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		sideStem := strings.TrimSuffix(name, filepath.Ext(name))
		if sideStem == stem || (strings.HasPrefix(sideStem, stem+".") && media.IsSubtitle(name)) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

// isWithin reports whether path is root or below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
