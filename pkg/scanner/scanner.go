package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/moyu-x/mql-organizer/pkg/logger"
)

// FileWalker enumerates files under a root in lexical depth-first order.
// afero.Walk sorts directory entries, so discovery order is stable across runs.
type FileWalker struct {
	Fs afero.Fs

	// Exclude holds doublestar patterns matched against slash-separated paths
	// relative to the walk root. A matching directory is pruned.
	Exclude []string

	// SkipDirs are absolute directories never descended into.
	SkipDirs []string

	// Accept, when set, filters files. It receives the path and its lowercased
	// extension (with the leading dot).
	Accept func(path, ext string) bool
}

func NewFileWalker(fs afero.Fs) *FileWalker {
	return &FileWalker{Fs: fs}
}

func (w *FileWalker) Walk(root string, callback func(path string, info os.FileInfo) error) error {
	return afero.Walk(w.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Get().Warn().Err(err).Str("path", path).Msg("cannot access path, skipping")
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path != root && w.skipDir(root, path) {
				logger.Get().Debug().Str("path", path).Msg("skipping directory")
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		if w.excluded(root, path) {
			return nil
		}

		if w.Accept != nil && !w.Accept(path, Ext(path)) {
			return nil
		}

		return callback(path, info)
	})
}

func (w *FileWalker) skipDir(root, path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range w.SkipDirs {
		if clean == filepath.Clean(dir) {
			return true
		}
	}
	return w.excluded(root, path)
}

func (w *FileWalker) excluded(root, path string) bool {
	if len(w.Exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// CountFiles counts the files Walk would report across dirs.
func (w *FileWalker) CountFiles(dirs []string) (int, error) {
	count := 0
	for _, dir := range dirs {
		logger.Get().Debug().Msgf("counting files in %s", dir)
		err := w.Walk(dir, func(path string, info os.FileInfo) error {
			count++
			return nil
		})
		if err != nil {
			logger.Get().Error().Err(err).Msgf("counting files in %s failed", dir)
			return 0, err
		}
	}

	logger.Get().Info().Msgf("found %d candidate files", count)
	return count, nil
}

// Ext returns the lowercased extension of path including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
