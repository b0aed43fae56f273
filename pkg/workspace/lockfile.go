package workspace

import (
	"path/filepath"

	"github.com/spf13/afero"
)

type PackageManager string

const (
	PNPM PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	Bun  PackageManager = "bun"
	NPM  PackageManager = "npm"
)

var lockFiles = []struct {
	file    string
	manager PackageManager
}{
	{"pnpm-lock.yaml", PNPM},
	{"yarn.lock", Yarn},
	{"bun.lockb", Bun},
	{"package-lock.json", NPM},
}

// DetectPackageManager checks for lock files in order of preference; npm when none exist
func DetectPackageManager(fs afero.Fs, root string) PackageManager {
	for _, lf := range lockFiles {
		if ok, _ := afero.Exists(fs, filepath.Join(root, lf.file)); ok {
			return lf.manager
		}
	}
	return NPM
}

// LockFileName is the workspace-relative lockfile written by pm
func LockFileName(pm PackageManager) string {
	for _, lf := range lockFiles {
		if lf.manager == pm {
			return lf.file
		}
	}
	return "package-lock.json"
}
