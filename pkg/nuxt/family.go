// Package nuxt infers build, serve and test targets from nuxt.config files.
package nuxt

import (
	"context"
	"fmt"
	"path"

	"github.com/spf13/afero"

	"taskinfer/pkg/introspect"
	"taskinfer/pkg/outputs"
	"taskinfer/pkg/plugin"
	"taskinfer/pkg/targets"
)

// Roles are the targets every nuxt project gets
var Roles = []plugin.Role{plugin.RoleBuild, plugin.RoleServe, plugin.RoleTest}

const (
	ConfigGlob    = "**/nuxt.config.{js,ts}"
	CacheFileName = "nuxt.hash"

	// VitestConfigFile is only loaded when present beside the nuxt config
	VitestConfigFile = "vitest.config.ts"

	// buildCacheDir is nuxt's intermediate build directory, nested one level
	// inside the output directory
	buildCacheDir = ".nuxt"
)

// Family implements plugin.Family for nuxt projects
type Family struct {
	nuxt   introspect.Resolver
	vitest introspect.Resolver
}

// NewFamily creates the nuxt family. nuxtResolver loads nuxt configs;
// vitestResolver loads the companion vitest config with vite's loader.
func NewFamily(nuxtResolver, vitestResolver introspect.Resolver) *Family {
	return &Family{nuxt: nuxtResolver, vitest: vitestResolver}
}

func (f *Family) Name() string          { return "nuxt" }
func (f *Family) ConfigGlob() string    { return ConfigGlob }
func (f *Family) CacheFileName() string { return CacheFileName }

func (f *Family) NormalizeOptions(opts plugin.Options) plugin.Options {
	return plugin.NormalizeOptions(opts, Roles...)
}

func (f *Family) BuildTargets(ctx context.Context, req *plugin.Request) (targets.TargetSet, error) {
	testCfg := &introspect.FrameworkConfig{}
	vitestConfig := req.Workspace.Abs(path.Join(req.ProjectRoot, VitestConfigFile))
	exists, err := afero.Exists(req.Workspace.Fs, vitestConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", vitestConfig, err)
	}
	if exists {
		testCfg = introspect.Introspect(ctx, f.vitest, req.ProjectRoot, VitestConfigFile, req.Log)
	}

	nuxtCfg := introspect.Introspect(ctx, f.nuxt, req.ConfigDir(), req.ConfigFileName(), req.Log)

	buildDir := outputs.StripBuildCacheDir(nuxtCfg.BuildDir, buildCacheDir)
	buildOutput := outputs.Normalize(buildDir, req.ProjectRoot, req.Workspace.Root, outputs.LabelDist)
	coverageOutput := outputs.Normalize(testCfg.CoverageReportsDir, req.ProjectRoot, req.Workspace.Root, outputs.LabelCoverage)

	opts := req.Options
	return targets.TargetSet{
		opts.BuildTargetName: targets.Build("nuxi build", opts.BuildTargetName, "nuxi",
			req.NamedInputs, []string{buildOutput}, req.ProjectRoot),
		opts.ServeTargetName: targets.Serve("nuxi dev", req.ProjectRoot),
		opts.TestTargetName: targets.Test("vitest run", "vitest",
			req.NamedInputs, []string{coverageOutput}, req.ProjectRoot),
	}, nil
}
