package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOptions(t *testing.T) {
	t.Run("Should fill every requested role", func(t *testing.T) {
		opts := NormalizeOptions(Options{}, RoleBuild, RoleServe, RolePreview, RoleTest, RoleServeStatic)
		assert.Equal(t, Options{
			BuildTargetName:       "build",
			ServeTargetName:       "serve",
			PreviewTargetName:     "preview",
			TestTargetName:        "test",
			ServeStaticTargetName: "serve-static",
		}, opts)
	})

	t.Run("Should keep supplied names", func(t *testing.T) {
		opts := NormalizeOptions(Options{BuildTargetName: "compile"}, RoleBuild, RoleTest)
		assert.Equal(t, "compile", opts.BuildTargetName)
		assert.Equal(t, "test", opts.TestTargetName)
	})

	t.Run("Should clear roles the family does not produce", func(t *testing.T) {
		opts := NormalizeOptions(Options{PreviewTargetName: "preview-it"}, RoleBuild, RoleServe, RoleTest)
		assert.Empty(t, opts.PreviewTargetName)
		assert.Empty(t, opts.ServeStaticTargetName)
	})
}

func TestOptions_CheckUnique(t *testing.T) {
	t.Run("Should accept distinct names", func(t *testing.T) {
		opts := NormalizeOptions(Options{BuildTargetName: "bundle"}, RoleBuild, RoleServe, RolePreview, RoleTest, RoleServeStatic)
		assert.NoError(t, opts.CheckUnique())
	})

	t.Run("Should reject a name that collides with a default", func(t *testing.T) {
		opts := NormalizeOptions(Options{BuildTargetName: "test"}, RoleBuild, RoleServe, RoleTest)
		err := opts.CheckUnique()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"test"`)
	})

	t.Run("Should ignore roles cleared by normalization", func(t *testing.T) {
		opts := NormalizeOptions(Options{ServeTargetName: "preview", PreviewTargetName: "preview"}, RoleBuild, RoleServe, RoleTest)
		assert.NoError(t, opts.CheckUnique())
	})
}
