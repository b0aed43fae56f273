// Package inference runs every configured family over a workspace: one
// CreateNodes call per matching config file, bounded concurrency, and a single
// cache flush per family once all calls have returned.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"taskinfer/pkg/discoverer"
	"taskinfer/pkg/logger"
	"taskinfer/pkg/plugin"
	"taskinfer/pkg/targets"
	"taskinfer/pkg/workspace"
)

// Unit pairs an engine with the options its config files are inferred with
type Unit struct {
	Engine  *plugin.Engine
	Options plugin.Options
}

// ProgressCallback is called after each config file has been processed
type ProgressCallback func(family, configFile string, result *plugin.Result, err error)

// Pass is one inference run over a workspace
type Pass struct {
	workspace *workspace.Context
	units     []Unit
	parallel  int
	log       logger.Logger
	progress  ProgressCallback
}

// NewPass creates a pass. Units are merged in order, so a later family's
// target wins over an earlier one's when both name the same target of the
// same project.
func NewPass(ws *workspace.Context, units []Unit, parallel int, log logger.Logger) *Pass {
	if parallel < 1 {
		parallel = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pass{workspace: ws, units: units, parallel: parallel, log: log}
}

// OnProgress registers a callback for finished config files
func (p *Pass) OnProgress(cb ProgressCallback) {
	p.progress = cb
}

type job struct {
	unit       Unit
	configFile string
}

// Run discovers config files, infers their projects and finalizes every
// engine. Engines are finalized even when a config file failed so that
// entries computed before the failure are kept.
func (p *Pass) Run(ctx context.Context) (*plugin.Result, error) {
	globs := make([]string, 0, len(p.units))
	for _, unit := range p.units {
		globs = append(globs, unit.Engine.Family().ConfigGlob())
	}

	files, err := discoverer.FindConfigFiles(ctx, p.workspace.Fs, p.workspace.Root, globs)
	if err != nil {
		return nil, fmt.Errorf("failed to discover config files: %w", err)
	}

	var jobs []job
	for _, unit := range p.units {
		for _, file := range files {
			if discoverer.MatchesGlob(unit.Engine.Family().ConfigGlob(), file) {
				jobs = append(jobs, job{unit: unit, configFile: file})
			}
		}
	}
	p.log.Debug("config files discovered", "files", len(files), "jobs", len(jobs))

	results := make([]*plugin.Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, j := range jobs {
		g.Go(func() error {
			res, err := j.unit.Engine.CreateNodes(gctx, j.configFile, j.unit.Options)
			if p.progress != nil {
				p.progress(j.unit.Engine.Family().Name(), j.configFile, res, err)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", j.configFile, err)
			}
			results[i] = res
			return nil
		})
	}
	runErr := g.Wait()

	var finalizeErrs []error
	for _, unit := range p.units {
		if err := unit.Engine.Finalize(); err != nil {
			finalizeErrs = append(finalizeErrs, err)
		}
	}
	if err := errors.Join(append([]error{runErr}, finalizeErrs...)...); err != nil {
		return nil, err
	}

	return merge(results), nil
}

// merge combines per-file results into one project mapping. Target sets are
// copied because the cache hands out shared maps.
func merge(results []*plugin.Result) *plugin.Result {
	merged := &plugin.Result{Projects: make(map[string]*plugin.Project)}
	for _, res := range results {
		if res == nil {
			continue
		}
		roots := make([]string, 0, len(res.Projects))
		for root := range res.Projects {
			roots = append(roots, root)
		}
		sort.Strings(roots)

		for _, root := range roots {
			project, ok := merged.Projects[root]
			if !ok {
				project = &plugin.Project{Root: root, Targets: make(targets.TargetSet)}
				merged.Projects[root] = project
			}
			for name, target := range res.Projects[root].Targets {
				project.Targets[name] = target
			}
		}
	}
	return merged
}
