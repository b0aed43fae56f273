// Package plugin is the inference engine shared by every framework family:
// locate the project, consult the cache, and otherwise ask the family to
// build the project's targets.
package plugin

import (
	"context"
	"fmt"
	"path"
	"sync/atomic"

	"taskinfer/pkg/cache"
	"taskinfer/pkg/discoverer"
	"taskinfer/pkg/logger"
	"taskinfer/pkg/targets"
	"taskinfer/pkg/workspace"
)

// Request carries everything a family needs to build one project's targets
type Request struct {
	// ConfigFile is the workspace-relative path of the matched config file
	ConfigFile  string
	ProjectRoot string
	Options     Options
	NamedInputs targets.NamedInputs
	Workspace   *workspace.Context
	Log         logger.Logger
}

// ConfigDir is the workspace-relative directory holding the config file
func (r *Request) ConfigDir() string {
	return path.Dir(r.ConfigFile)
}

// ConfigFileName is the base name of the config file
func (r *Request) ConfigFileName() string {
	return path.Base(r.ConfigFile)
}

// Family is one supported framework
type Family interface {
	// Name identifies the family in logs and the CLI
	Name() string
	// ConfigGlob matches the family's config files, relative to the workspace
	ConfigGlob() string
	// CacheFileName is the base name of the family's persisted cache
	CacheFileName() string
	// NormalizeOptions fills defaults for the roles the family produces
	NormalizeOptions(opts Options) Options
	// BuildTargets introspects the config and synthesizes the target set
	BuildTargets(ctx context.Context, req *Request) (targets.TargetSet, error)
}

// Project is one registered project
type Project struct {
	Root    string            `json:"root"`
	Targets targets.TargetSet `json:"targets"`
}

// Result is the engine's answer for one config file
type Result struct {
	Projects map[string]*Project `json:"projects,omitempty"`
}

// Empty reports whether no project was registered
func (r *Result) Empty() bool {
	return len(r.Projects) == 0
}

// Engine runs the inference pipeline of one family against one workspace.
// CreateNodes is safe for concurrent use; Finalize must run after every
// CreateNodes call of the pass has returned.
type Engine struct {
	family    Family
	store     *cache.Store
	workspace *workspace.Context
	log       logger.Logger

	finalized atomic.Bool
}

// New creates an engine. The store should already be loaded.
func New(family Family, store *cache.Store, ws *workspace.Context, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		family:    family,
		store:     store,
		workspace: ws,
		log:       log.With("family", family.Name()),
	}
}

// Family is the framework this engine serves
func (e *Engine) Family() Family {
	return e.family
}

// CreateNodes infers the targets for the project owning configFile. The
// result is empty when the config file has no manifest beside it or does not
// match the family's glob.
func (e *Engine) CreateNodes(ctx context.Context, configFile string, opts Options) (*Result, error) {
	if !discoverer.MatchesGlob(e.family.ConfigGlob(), configFile) {
		return &Result{}, nil
	}

	projectRoot, ok, err := discoverer.Locate(e.workspace.Fs, e.workspace.Root, configFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.log.Debug("no package.json or project.json beside config, skipping", "config", configFile)
		return &Result{}, nil
	}

	opts = e.family.NormalizeOptions(opts)
	if err := opts.CheckUnique(); err != nil {
		return nil, fmt.Errorf("invalid %s options for %s: %w", e.family.Name(), configFile, err)
	}
	log := e.log.With("project", projectRoot)

	lockFile := workspace.LockFileName(workspace.DetectPackageManager(e.workspace.Fs, e.workspace.Root))
	fp, err := cache.ComputeFingerprint(e.workspace.Fs, e.workspace.Root, projectRoot, opts, []string{lockFile})
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", projectRoot, err)
	}

	set, hit, err := e.store.GetOrCompute(ctx, fp, func(ctx context.Context) (targets.TargetSet, error) {
		return e.buildTargets(ctx, configFile, projectRoot, opts, log)
	})
	if err != nil {
		return nil, err
	}
	log.Debug("targets inferred", "cached", hit, "targets", len(set))

	return &Result{
		Projects: map[string]*Project{
			projectRoot: {Root: projectRoot, Targets: set},
		},
	}, nil
}

func (e *Engine) buildTargets(ctx context.Context, configFile, projectRoot string, opts Options, log logger.Logger) (targets.TargetSet, error) {
	namedInputs, err := e.workspace.NamedInputs.NamedInputs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve named inputs for %s: %w", projectRoot, err)
	}

	set, err := e.family.BuildTargets(ctx, &Request{
		ConfigFile:  configFile,
		ProjectRoot: projectRoot,
		Options:     opts,
		NamedInputs: namedInputs,
		Workspace:   e.workspace,
		Log:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s targets for %s: %w", e.family.Name(), projectRoot, err)
	}

	for name, target := range set {
		if err := target.Validate(); err != nil {
			return nil, fmt.Errorf("target %s of %s: %w", name, projectRoot, err)
		}
	}
	return set, nil
}

// Finalize persists the cache entries of this pass. It is the end-of-pass hook
// that precedes dependency assembly and contributes no dependency edges itself.
// Calling it more than once is a no-op.
func (e *Engine) Finalize() error {
	if !e.finalized.CompareAndSwap(false, true) {
		return nil
	}
	if err := e.store.Flush(e.workspace.Fs); err != nil {
		return fmt.Errorf("failed to persist %s cache: %w", e.family.Name(), err)
	}
	e.log.Debug("cache persisted", "entries", e.store.Len(), "path", e.store.Path())
	return nil
}
