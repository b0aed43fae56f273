// Package outputs turns framework-reported output directories into portable
// path tokens anchored on {workspaceRoot} or {projectRoot}.
package outputs

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	WorkspaceRootToken = "{workspaceRoot}"
	ProjectRootToken   = "{projectRoot}"
)

// Label names the conventional directory used when no output path is configured
type Label string

const (
	LabelDist     Label = "dist"
	LabelCoverage Label = "coverage"
)

// Normalize converts raw into a token path. Rules, first match wins:
//  1. empty raw: {projectRoot}/<label> for the workspace root project,
//     otherwise {workspaceRoot}/<label>/{projectRoot}
//  2. absolute raw: rewritten relative to workspaceRoot
//  3. raw starting with "..": joined onto the project root under {workspaceRoot}
//  4. anything else: joined onto {projectRoot}
func Normalize(raw, projectRoot, workspaceRoot string, label Label) string {
	projectRoot = cleanProjectRoot(projectRoot)

	if raw == "" {
		if projectRoot == "." {
			return ProjectRootToken + "/" + string(label)
		}
		return WorkspaceRootToken + "/" + string(label) + "/" + ProjectRootToken
	}

	if filepath.IsAbs(raw) {
		rel, err := filepath.Rel(workspaceRoot, raw)
		if err != nil {
			// different volume, nothing portable to say about it
			return filepath.ToSlash(raw)
		}
		return joinToken(WorkspaceRootToken, filepath.ToSlash(rel))
	}

	raw = filepath.ToSlash(raw)
	if strings.HasPrefix(raw, "..") {
		return joinToken(WorkspaceRootToken, path.Join(projectRoot, raw))
	}
	return joinToken(ProjectRootToken, raw)
}

// StripBuildCacheDir drops a trailing leaf segment (e.g. ".nuxt") from buildDir,
// returning the directory that contains it. Other paths are returned unchanged.
func StripBuildCacheDir(buildDir, leaf string) string {
	if buildDir == "" || leaf == "" {
		return buildDir
	}
	slashed := strings.TrimRight(filepath.ToSlash(buildDir), "/")
	if path.Base(slashed) != leaf {
		return buildDir
	}
	parent := path.Dir(slashed)
	if filepath.IsAbs(buildDir) {
		return filepath.FromSlash(parent)
	}
	return parent
}

// joinToken appends a slash path to a token without letting ".." eat the token
func joinToken(token, rel string) string {
	rel = path.Clean(rel)
	if rel == "." {
		return token
	}
	return token + "/" + rel
}

func cleanProjectRoot(projectRoot string) string {
	if projectRoot == "" {
		return "."
	}
	return path.Clean(filepath.ToSlash(projectRoot))
}
