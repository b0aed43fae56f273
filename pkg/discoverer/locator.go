package discoverer

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

var manifestFiles = []string{"package.json", "project.json"}

// MatchesGlob reports whether the workspace-relative configFile matches glob
func MatchesGlob(glob, configFile string) bool {
	matched, err := doublestar.Match(glob, filepath.ToSlash(configFile))
	return err == nil && matched
}

// Locate derives the project root of a workspace-relative config file. ok is
// false when the config file's directory holds neither a package.json nor a
// project.json, in which case no project should be registered for it.
func Locate(fs afero.Fs, workspaceRoot, configFile string) (projectRoot string, ok bool, err error) {
	projectRoot = path.Dir(filepath.ToSlash(configFile))

	dir := filepath.Join(workspaceRoot, filepath.FromSlash(projectRoot))
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", false, fmt.Errorf("failed to read project directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, manifest := range manifestFiles {
			if entry.Name() == manifest {
				return projectRoot, true, nil
			}
		}
	}
	return projectRoot, false, nil
}
