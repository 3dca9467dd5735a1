package core

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Digital-Shane/sort-me-down/internal/log"
	"github.com/Digital-Shane/sort-me-down/internal/util"
	"go.uber.org/zap"
)

// SweepEmptyDirs removes empty directories below root, deepest first. root
// itself and the keep directories are never removed. It returns the removed paths.
func SweepEmptyDirs(root string, keep []string, journal *log.Journal, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	root = filepath.Clean(root)
	protected := map[string]bool{root: true}
	for _, k := range keep {
		if k != "" {
			protected[filepath.Clean(k)] = true
		}
	}

	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})

	// Children before parents so nested empty folders collapse in one sweep
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	var removed []string
	for _, dir := range dirs {
		if protected[dir] {
			continue
		}
		empty, err := util.IsEmptyDir(dir)
		if err != nil || !empty {
			continue
		}
		err = os.Remove(dir)
		journal.LogRemoveDir(dir, err)
		if err != nil {
			logger.Warn("could not remove empty directory", zap.String("path", dir), zap.Error(err))
			continue
		}
		logger.Info("removed empty directory", zap.String("path", dir))
		removed = append(removed, dir)
	}
	return removed
}
