package graph

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"taskinfer/pkg/plugin"
	"taskinfer/pkg/workspace"
)

var dependencyFields = []string{"dependencies", "devDependencies", "peerDependencies"}

// Build assembles the task graph of the inferred projects. Project
// dependencies come from each project's package.json: a dependency on the
// package name of another project makes "^target" resolve to that project's
// target of the same name.
func Build(fs afero.Fs, workspaceRoot string, projects map[string]*plugin.Project) (*Graph, error) {
	roots := make([]string, 0, len(projects))
	for root := range projects {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	manifests := make(map[string]gjson.Result, len(roots))
	byPackage := make(map[string]string)
	for _, root := range roots {
		manifest, err := readManifest(fs, workspaceRoot, root)
		if err != nil {
			return nil, err
		}
		manifests[root] = manifest
		if name := manifest.Get("name").String(); name != "" {
			byPackage[name] = root
		}
	}

	tasks := make(map[string]*Task)
	for _, root := range roots {
		for _, name := range sortedTargets(projects[root]) {
			task := NewTask(root, name, projects[root].Targets[name])
			tasks[task.ID()] = task
		}
	}

	for _, root := range roots {
		upstream := projectDependencies(manifests[root], byPackage, root)
		for _, name := range sortedTargets(projects[root]) {
			task := tasks[root+":"+name]
			for _, dep := range task.Descriptor.DependsOn {
				if target, ok := strings.CutPrefix(dep, "^"); ok {
					for _, up := range upstream {
						if depTask, ok := tasks[up+":"+target]; ok {
							task.DependOn(depTask)
						}
					}
					continue
				}
				depTask, ok := tasks[root+":"+dep]
				if !ok {
					return nil, fmt.Errorf("target %s depends on missing target %s", task.ID(), dep)
				}
				task.DependOn(depTask)
			}
			// executors such as the file server consume another target's output
			if bt := task.Descriptor.Options.BuildTarget; bt != "" {
				if depTask, ok := tasks[root+":"+bt]; ok {
					task.DependOn(depTask)
				}
			}
		}
	}

	g := NewGraph()
	for _, root := range roots {
		for _, name := range sortedTargets(projects[root]) {
			if err := g.AddTask(tasks[root+":"+name]); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func readManifest(fs afero.Fs, workspaceRoot, projectRoot string) (gjson.Result, error) {
	manifestPath := filepath.Join(workspaceRoot, filepath.FromSlash(path.Join(projectRoot, workspace.PackageManifest)))
	data, err := afero.ReadFile(fs, manifestPath)
	if err != nil {
		exists, statErr := afero.Exists(fs, manifestPath)
		if statErr == nil && !exists {
			// project.json-only projects have no package dependencies
			return gjson.Result{}, nil
		}
		return gjson.Result{}, fmt.Errorf("failed to read %s: %w", manifestPath, err)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("failed to parse %s: invalid JSON", manifestPath)
	}
	return gjson.ParseBytes(data), nil
}

// projectDependencies lists the roots of the workspace projects a manifest
// depends on, sorted
func projectDependencies(manifest gjson.Result, byPackage map[string]string, self string) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, field := range dependencyFields {
		manifest.Get(field).ForEach(func(name, _ gjson.Result) bool {
			root, ok := byPackage[name.String()]
			if ok && root != self && !seen[root] {
				seen[root] = true
				roots = append(roots, root)
			}
			return true
		})
	}
	sort.Strings(roots)
	return roots
}

func sortedTargets(project *plugin.Project) []string {
	names := project.Targets.Names()
	sort.Strings(names)
	return names
}
