// Package vite infers build, serve, preview, test and static-serve targets
// from vite.config files.
package vite

import (
	"context"

	"taskinfer/pkg/introspect"
	"taskinfer/pkg/outputs"
	"taskinfer/pkg/plugin"
	"taskinfer/pkg/targets"
)

// Roles are the targets every vite project gets
var Roles = []plugin.Role{
	plugin.RoleBuild, plugin.RoleServe, plugin.RolePreview, plugin.RoleTest, plugin.RoleServeStatic,
}

const (
	ConfigGlob    = "**/vite.config.{js,ts,mjs,mts}"
	CacheFileName = "vite.hash"
)

// Family implements plugin.Family for vite projects
type Family struct {
	resolver introspect.Resolver
}

// NewFamily creates the vite family. resolver loads vite configs, normally an
// introspect.NodeResolver bound to introspect.LoaderVite.
func NewFamily(resolver introspect.Resolver) *Family {
	return &Family{resolver: resolver}
}

func (f *Family) Name() string          { return "vite" }
func (f *Family) ConfigGlob() string    { return ConfigGlob }
func (f *Family) CacheFileName() string { return CacheFileName }

func (f *Family) NormalizeOptions(opts plugin.Options) plugin.Options {
	return plugin.NormalizeOptions(opts, Roles...)
}

func (f *Family) BuildTargets(ctx context.Context, req *plugin.Request) (targets.TargetSet, error) {
	cfg := introspect.Introspect(ctx, f.resolver, req.ConfigDir(), req.ConfigFileName(), req.Log)

	buildOutput := outputs.Normalize(cfg.BuildOutDir, req.ProjectRoot, req.Workspace.Root, outputs.LabelDist)
	coverageOutput := outputs.Normalize(cfg.CoverageReportsDir, req.ProjectRoot, req.Workspace.Root, outputs.LabelCoverage)

	opts := req.Options
	return targets.TargetSet{
		opts.BuildTargetName: targets.Build("vite build", opts.BuildTargetName, "vite",
			req.NamedInputs, []string{buildOutput}, req.ProjectRoot),
		opts.ServeTargetName:   targets.Serve("vite serve", req.ProjectRoot),
		opts.PreviewTargetName: targets.Preview("vite preview", req.ProjectRoot),
		opts.TestTargetName: targets.Test("vitest run", "vitest",
			req.NamedInputs, []string{coverageOutput}, req.ProjectRoot),
		opts.ServeStaticTargetName: targets.ServeStatic(opts.BuildTargetName),
	}, nil
}
