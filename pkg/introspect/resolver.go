// Package introspect asks a framework for its own resolved configuration
// instead of re-implementing the framework's config semantics.
package introspect

import (
	"context"

	"github.com/tidwall/gjson"

	"taskinfer/pkg/logger"
)

// FrameworkConfig holds the settings the engine cares about. Every field is
// optional; empty means the framework did not report it.
type FrameworkConfig struct {
	// BuildOutDir is a bundler's build output directory (vite build.outDir)
	BuildOutDir string
	// BuildDir is a meta-framework's build directory (nuxt buildDir)
	BuildDir string
	// CoverageReportsDir is test.coverage.reportsDirectory
	CoverageReportsDir string
}

// Resolver loads the configuration file filename located in the
// workspace-relative directory dir
type Resolver interface {
	ResolveConfig(ctx context.Context, dir, filename string) (*FrameworkConfig, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, dir, filename string) (*FrameworkConfig, error)

func (f ResolverFunc) ResolveConfig(ctx context.Context, dir, filename string) (*FrameworkConfig, error) {
	return f(ctx, dir, filename)
}

// Introspect resolves the config and degrades to an empty FrameworkConfig when
// the resolver fails, so callers fall back to conventional output locations.
func Introspect(ctx context.Context, r Resolver, dir, filename string, log logger.Logger) *FrameworkConfig {
	cfg, err := r.ResolveConfig(ctx, dir, filename)
	if err != nil {
		log.Warn("config resolution failed, using defaults", "dir", dir, "file", filename, "error", err)
		return &FrameworkConfig{}
	}
	if cfg == nil {
		return &FrameworkConfig{}
	}
	return cfg
}

// ParseFrameworkConfig reads the JSON shape printed by the loader scripts.
// Unknown or null fields are left empty.
func ParseFrameworkConfig(raw string) *FrameworkConfig {
	fields := gjson.GetMany(raw, "build.outDir", "buildDir", "test.coverage.reportsDirectory")
	return &FrameworkConfig{
		BuildOutDir:        stringField(fields[0]),
		BuildDir:           stringField(fields[1]),
		CoverageReportsDir: stringField(fields[2]),
	}
}

func stringField(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.String()
}
