package graph

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskinfer/pkg/plugin"
	"taskinfer/pkg/targets"
)

func newTask(project, target string, deps ...*Task) *Task {
	task := NewTask(project, target, &targets.Descriptor{Command: target})
	for _, dep := range deps {
		task.DependOn(dep)
	}
	return task
}

func ids(tasks []*Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID()
	}
	return out
}

func TestGraph_AddTask(t *testing.T) {
	g := NewGraph()
	task := newTask("app", "build")

	require.NoError(t, g.AddTask(task))
	assert.Error(t, g.AddTask(task))

	found, err := g.GetTask("app:build")
	require.NoError(t, err)
	assert.Same(t, task, found)

	_, err = g.GetTask("app:test")
	assert.Error(t, err)
}

func TestGraph_TopologicalSort(t *testing.T) {
	t.Run("Should order dependencies first", func(t *testing.T) {
		c := newTask("c", "build")
		b := newTask("b", "build", c)
		a := newTask("a", "build", b)

		g := NewGraph()
		require.NoError(t, g.AddTask(a))
		require.NoError(t, g.AddTask(b))
		require.NoError(t, g.AddTask(c))

		sorted, err := g.TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, []string{"c:build", "b:build", "a:build"}, ids(sorted))
	})

	t.Run("Should detect cycles", func(t *testing.T) {
		a := newTask("a", "build")
		b := newTask("b", "build", a)
		a.DependOn(b)

		g := NewGraph()
		require.NoError(t, g.AddTask(a))
		require.NoError(t, g.AddTask(b))

		_, err := g.TopologicalSort()
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("Should reject dependencies outside the graph", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.AddTask(newTask("a", "build", newTask("b", "build"))))

		_, err := g.TopologicalSort()
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCycle)
	})
}

func TestComputeTaskHash(t *testing.T) {
	c := newTask("c", "build")
	b := newTask("b", "build", c)
	a := newTask("a", "build", b)

	hashA, hashB, hashC := ComputeTaskHash(a), ComputeTaskHash(b), ComputeTaskHash(c)
	assert.NotEqual(t, hashA, hashB)
	assert.NotEqual(t, hashB, hashC)
	assert.Equal(t, hashA, ComputeTaskHash(a))

	c.Descriptor.Outputs = []string{"{projectRoot}/dist"}
	assert.NotEqual(t, hashA, ComputeTaskHash(a), "upstream change must propagate")
}

func buildTarget() *targets.Descriptor {
	return &targets.Descriptor{
		Command:   "vite build",
		Options:   targets.Options{Cwd: "."},
		Cache:     true,
		DependsOn: []string{"^build"},
		Outputs:   []string{"{projectRoot}/dist"},
	}
}

func TestBuild(t *testing.T) {
	root := filepath.FromSlash("/ws")
	fs := afero.NewMemMapFs()
	write := func(name, content string) {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(root, filepath.FromSlash(name)), []byte(content), 0o644))
	}
	write("libs/ui/package.json", `{"name": "@acme/ui"}`)
	write("libs/utils/package.json", `{"name": "@acme/utils"}`)
	write("apps/web/package.json", `{
		"name": "web",
		"dependencies": {"@acme/ui": "workspace:*", "react": "^18.0.0"},
		"devDependencies": {"@acme/utils": "workspace:*"}
	}`)
	write("apps/admin/project.json", `{}`)

	projects := map[string]*plugin.Project{
		"libs/ui":    {Root: "libs/ui", Targets: targets.TargetSet{"build": buildTarget()}},
		"libs/utils": {Root: "libs/utils", Targets: targets.TargetSet{"test": {Command: "vitest run"}}},
		"apps/web": {Root: "apps/web", Targets: targets.TargetSet{
			"build":        buildTarget(),
			"serve-static": targets.ServeStatic("build"),
		}},
		"apps/admin": {Root: "apps/admin", Targets: targets.TargetSet{"build": buildTarget()}},
	}

	g, err := Build(fs, root, projects)
	require.NoError(t, err)
	assert.Len(t, g.GetTasks(), 5)

	web, err := g.GetTask("apps/web:build")
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/ui:build"}, ids(web.Dependencies()), "utils has no build target")

	static, err := g.GetTask("apps/web:serve-static")
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/web:build"}, ids(static.Dependencies()))

	admin, err := g.GetTask("apps/admin:build")
	require.NoError(t, err)
	assert.Empty(t, admin.Dependencies())

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	order := ids(sorted)
	assert.Less(t, indexOf(order, "libs/ui:build"), indexOf(order, "apps/web:build"))
	assert.Less(t, indexOf(order, "apps/web:build"), indexOf(order, "apps/web:serve-static"))
}

func TestBuild_InvalidManifest(t *testing.T) {
	root := filepath.FromSlash("/ws")
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "app", "package.json"), []byte(`{"name":`), 0o644))

	_, err := Build(fs, root, map[string]*plugin.Project{
		"app": {Root: "app", Targets: targets.TargetSet{"build": buildTarget()}},
	})
	assert.Error(t, err)
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
