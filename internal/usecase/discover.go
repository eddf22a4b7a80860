// File: internal/usecase/discover.go
package usecase

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain/model"
)

// resultsDirName holds per-file artifacts from previous runs; never a
// submission source.
const resultsDirName = "results"

// Discoverer walks a submission root and enumerates every file of a
// recognized format, grouped by student folder.
type Discoverer struct {
	log *zerolog.Logger
}

func NewDiscoverer(log *zerolog.Logger) *Discoverer {
	return &Discoverer{log: log}
}

// Discover returns all submissions under root. An empty tree yields an empty
// slice, not an error. Symbolic links are never followed and files lying
// directly in the root are skipped with a log line.
func (d *Discoverer) Discover(root string) ([]model.Submission, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("submission root: %w", err)
	}

	var subs []model.Submission
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			return nil
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if entry.Name() == resultsDirName && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		format, ok := model.DetectFormat(entry.Name())
		if !ok {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			d.log.Warn().Str("path", path).Msg("submission file outside any student folder, skipped")
			return nil
		}

		subs = append(subs, model.Submission{
			Path:   path,
			Folder: studentFolder(root, parts[:len(parts)-1]),
			Format: format,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	d.log.Info().Int("count", len(subs)).Str("root", root).Msg("submissions discovered")
	return subs, nil
}

// studentFolder picks the enclosing folder that follows the per-student
// export naming convention; when none of the path elements match, the
// top-level subfolder stands in for it.
func studentFolder(root string, dirs []string) string {
	for i := len(dirs) - 1; i >= 0; i-- {
		if _, id := model.ParseFolder(dirs[i]); id != "" {
			return filepath.Join(append([]string{root}, dirs[:i+1]...)...)
		}
	}
	return filepath.Join(root, dirs[0])
}
