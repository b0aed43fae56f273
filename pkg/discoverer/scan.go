package discoverer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FindConfigFiles walks the workspace and returns the workspace-relative,
// slash-separated paths of files matching any of globs. Hidden directories
// and common build/output directories are not descended into.
func FindConfigFiles(ctx context.Context, fs afero.Fs, root string, globs []string) ([]string, error) {
	var matches []string

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(info.Name(), ".") || IsSkippableDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		for _, glob := range globs {
			if MatchesGlob(glob, rel) {
				matches = append(matches, rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(matches)
	return matches, nil
}

// IsSkippableDir reports whether a directory holds installed dependencies or
// generated output rather than project sources. Neither discovery nor
// fingerprinting descends into it.
func IsSkippableDir(dirName string) bool {
	switch dirName {
	case "node_modules", "dist", "build", "out", "coverage", "tmp", "vendor", "bower_components":
		return true
	}
	return false
}
