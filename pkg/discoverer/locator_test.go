package discoverer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(root, filepath.FromSlash(f)), []byte("{}"), 0o644))
	}
}

func TestLocate(t *testing.T) {
	root := filepath.FromSlash("/ws")

	t.Run("Should register a project next to package.json", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, root, "apps/web/vite.config.ts", "apps/web/package.json")

		projectRoot, ok, err := Locate(fs, root, "apps/web/vite.config.ts")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "apps/web", projectRoot)
	})

	t.Run("Should register a project next to project.json", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, root, "libs/ui/vite.config.js", "libs/ui/project.json")

		_, ok, err := Locate(fs, root, "libs/ui/vite.config.js")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should treat the workspace root as project root .", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, root, "vite.config.ts", "package.json")

		projectRoot, ok, err := Locate(fs, root, "vite.config.ts")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ".", projectRoot)
	})

	t.Run("Should skip a directory without manifests", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, root, "examples/demo/vite.config.ts", "examples/package.json")
		require.NoError(t, fs.MkdirAll(filepath.Join(root, "examples", "demo", "package.json"), 0o755))

		_, ok, err := Locate(fs, root, "examples/demo/vite.config.ts")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should fail when the directory is missing", func(t *testing.T) {
		_, _, err := Locate(afero.NewMemMapFs(), root, "gone/vite.config.ts")
		assert.Error(t, err)
	})
}

func TestMatchesGlob(t *testing.T) {
	glob := "**/vite.config.{js,ts}"
	assert.True(t, MatchesGlob(glob, "vite.config.ts"))
	assert.True(t, MatchesGlob(glob, "apps/web/vite.config.js"))
	assert.False(t, MatchesGlob(glob, "apps/web/vitest.config.ts"))
	assert.False(t, MatchesGlob(glob, "apps/web/vite.config.json"))
}

func TestFindConfigFiles(t *testing.T) {
	root := filepath.FromSlash("/ws")
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, root,
		"vite.config.ts",
		"apps/web/vite.config.ts",
		"apps/shop/nuxt.config.ts",
		"libs/ui/vite.config.js",
		"node_modules/pkg/vite.config.ts",
		"dist/apps/web/vite.config.ts",
		".cache/vite.config.ts",
	)

	files, err := FindConfigFiles(context.Background(), fs, root, []string{"**/vite.config.{js,ts}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/web/vite.config.ts", "libs/ui/vite.config.js", "vite.config.ts"}, files)

	t.Run("Should stop on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := FindConfigFiles(ctx, fs, root, []string{"**/nuxt.config.{js,ts}"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
