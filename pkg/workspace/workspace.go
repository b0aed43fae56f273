// Package workspace describes the monorepo being indexed: where it lives,
// which lockfile identifies its installed dependencies, and which named input
// groups each project sees.
package workspace

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"taskinfer/pkg/targets"
)

const (
	PackageManifest = "package.json"
	ProjectManifest = "project.json"
)

// NamedInputResolver returns the named input groups visible to a project
type NamedInputResolver interface {
	NamedInputs(projectRoot string) (targets.NamedInputs, error)
}

// Context is what the engine knows about the workspace
type Context struct {
	// Root is the absolute workspace directory
	Root string
	// Fs is the filesystem every read goes through
	Fs          afero.Fs
	NamedInputs NamedInputResolver
}

// NewContext builds a Context whose named inputs come from workspaceInputs
// merged with each project's project.json
func NewContext(fs afero.Fs, root string, workspaceInputs targets.NamedInputs) *Context {
	return &Context{
		Root:        root,
		Fs:          fs,
		NamedInputs: NewManifestNamedInputs(fs, root, workspaceInputs),
	}
}

// Abs resolves a workspace-relative path
func (c *Context) Abs(rel string) string {
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// ManifestNamedInputs merges workspace-level named inputs with the
// "namedInputs" object of the project's project.json; project groups win.
type ManifestNamedInputs struct {
	fs        afero.Fs
	root      string
	workspace targets.NamedInputs
}

func NewManifestNamedInputs(fs afero.Fs, root string, workspaceInputs targets.NamedInputs) *ManifestNamedInputs {
	return &ManifestNamedInputs{fs: fs, root: root, workspace: workspaceInputs}
}

func (m *ManifestNamedInputs) NamedInputs(projectRoot string) (targets.NamedInputs, error) {
	merged := make(targets.NamedInputs, len(m.workspace))
	for name, patterns := range m.workspace {
		merged[name] = patterns
	}

	manifest := filepath.Join(m.root, filepath.FromSlash(path.Join(projectRoot, ProjectManifest)))
	exists, err := afero.Exists(m.fs, manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", manifest, err)
	}
	if !exists {
		return merged, nil
	}

	data, err := afero.ReadFile(m.fs, manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", manifest, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON in %s", manifest)
	}

	gjson.GetBytes(data, "namedInputs").ForEach(func(key, value gjson.Result) bool {
		var patterns []any
		for _, entry := range value.Array() {
			patterns = append(patterns, entry.Value())
		}
		merged[key.String()] = patterns
		return true
	})
	return merged, nil
}
