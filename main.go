package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
	"github.com/tidwall/pretty"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"taskinfer/pkg/cache"
	"taskinfer/pkg/config"
	"taskinfer/pkg/graph"
	"taskinfer/pkg/inference"
	"taskinfer/pkg/introspect"
	"taskinfer/pkg/logger"
	"taskinfer/pkg/nuxt"
	"taskinfer/pkg/plugin"
	"taskinfer/pkg/vite"
	"taskinfer/pkg/workspace"
)

const version = "0.3.0"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version information"`
	Parallel int              `short:"j" help:"Number of config files inferred concurrently (defaults to the configured value)"`
	LogLevel string           `help:"Log level: debug, info, warn or error"`
	LogJSON  bool             `name:"log-json" help:"Write log lines as JSON"`
	Metrics  bool             `help:"Log cache metrics when the command finishes"`

	Infer InferCmd `cmd:"" help:"Infer targets and print the project mapping as JSON"`
	Plan  PlanCmd  `cmd:"" help:"Infer targets and print them in dependency order"`
	Cache CacheCmd `cmd:"" help:"Manage the inference caches"`
}

type InferCmd struct {
	Directory string   `arg:"" optional:"" help:"Workspace root (defaults to current directory)"`
	Family    []string `short:"f" help:"Families to run" enum:"vite,nuxt" default:"vite,nuxt"`
}

type PlanCmd struct {
	Directory string   `arg:"" optional:"" help:"Workspace root (defaults to current directory)"`
	Family    []string `short:"f" help:"Families to run" enum:"vite,nuxt" default:"vite,nuxt"`
}

type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Delete the persisted caches"`
}

type CacheClearCmd struct {
	Directory string `arg:"" optional:"" help:"Workspace root (defaults to current directory)"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("taskinfer"),
		kong.Description("Infer build, serve and test targets from vite and nuxt configs."),
		kong.Vars{"version": version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch kctx.Command() {
	case "infer <directory>", "infer":
		err = runInfer(ctx, &cli)
	case "plan <directory>", "plan":
		err = runPlan(ctx, &cli)
	case "cache clear <directory>", "cache clear":
		err = runCacheClear(&cli)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is the state shared by every command for one workspace
type session struct {
	root string
	fs   afero.Fs
	cfg  *config.Config
	log  logger.Logger
	ws   *workspace.Context

	reader *sdkmetric.ManualReader
}

func newSession(cli *CLI, directory string) (*session, error) {
	root, err := resolveDirectory(directory)
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader().Load(root)
	if err != nil {
		return nil, err
	}
	if cli.Parallel > 0 {
		cfg.Parallel = cli.Parallel
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogJSON {
		cfg.Log.JSON = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     os.Stderr,
		JSON:       cfg.Log.JSON,
		TimeFormat: logger.DefaultConfig().TimeFormat,
	})

	s := &session{root: root, fs: afero.NewOsFs(), cfg: cfg, log: log}
	s.ws = workspace.NewContext(s.fs, root, cfg.NamedInputs)

	if cli.Metrics {
		s.reader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(s.reader)))
	}
	return s, nil
}

func resolveDirectory(directory string) (string, error) {
	if directory == "" {
		var err error
		directory, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	absDir, err := filepath.Abs(directory)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absDir, nil
}

// families builds the requested families with node-backed resolvers
func (s *session) families(names []string) ([]plugin.Family, error) {
	viteResolver, err := introspect.NewNodeResolver(s.cfg.NodeCommand, introspect.LoaderVite, s.root)
	if err != nil {
		return nil, err
	}
	nuxtResolver, err := introspect.NewNodeResolver(s.cfg.NodeCommand, introspect.LoaderNuxt, s.root)
	if err != nil {
		return nil, err
	}

	var families []plugin.Family
	for _, name := range names {
		switch name {
		case "vite":
			families = append(families, vite.NewFamily(viteResolver))
		case "nuxt":
			families = append(families, nuxt.NewFamily(nuxtResolver, viteResolver))
		default:
			return nil, fmt.Errorf("unknown family %q", name)
		}
	}
	return families, nil
}

func (s *session) options(family plugin.Family) plugin.Options {
	switch family.Name() {
	case "vite":
		return s.cfg.Plugins.Vite
	case "nuxt":
		return s.cfg.Plugins.Nuxt
	}
	return plugin.Options{}
}

func (s *session) infer(ctx context.Context, names []string) (*plugin.Result, error) {
	families, err := s.families(names)
	if err != nil {
		return nil, err
	}

	var units []inference.Unit
	for _, family := range families {
		store := cache.NewStore(s.cfg.CachePath(s.root, family.CacheFileName()), s.log)
		if err := store.Load(s.fs); err != nil {
			return nil, err
		}
		units = append(units, inference.Unit{
			Engine:  plugin.New(family, store, s.ws, s.log),
			Options: s.options(family),
		})
	}

	pass := inference.NewPass(s.ws, units, s.cfg.Parallel, s.log)
	pass.OnProgress(func(family, configFile string, result *plugin.Result, err error) {
		switch {
		case err != nil:
			s.log.Error("inference failed", "family", family, "config", configFile, "error", err)
		case result.Empty():
			s.log.Debug("no project registered", "family", family, "config", configFile)
		default:
			s.log.Info("inferred", "family", family, "config", configFile)
		}
	})

	result, err := pass.Run(ctx)
	s.reportMetrics(ctx)
	return result, err
}

// reportMetrics logs the collected cache instruments when --metrics is set
func (s *session) reportMetrics(ctx context.Context) {
	if s.reader == nil {
		return
	}
	var rm metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &rm); err != nil {
		s.log.Warn("failed to collect metrics", "error", err)
		return
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					s.log.Info(m.Name, append(attributes(dp.Attributes.ToSlice()), "value", dp.Value)...)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					s.log.Info(m.Name, append(attributes(dp.Attributes.ToSlice()), "count", dp.Count, "sum", dp.Sum)...)
				}
			}
		}
	}
}

func runInfer(ctx context.Context, cli *CLI) error {
	s, err := newSession(cli, cli.Infer.Directory)
	if err != nil {
		return err
	}
	result, err := s.infer(ctx, cli.Infer.Family)
	if err != nil {
		return fmt.Errorf("failed to infer targets: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = os.Stdout.Write(pretty.Pretty(data))
	return err
}

func runPlan(ctx context.Context, cli *CLI) error {
	s, err := newSession(cli, cli.Plan.Directory)
	if err != nil {
		return err
	}
	result, err := s.infer(ctx, cli.Plan.Family)
	if err != nil {
		return fmt.Errorf("failed to infer targets: %w", err)
	}

	g, err := graph.Build(s.fs, s.root, result.Projects)
	if err != nil {
		return fmt.Errorf("failed to plan task graph: %w", err)
	}
	ordered, err := g.TopologicalSort()
	if err != nil {
		return fmt.Errorf("failed to sort tasks: %w", err)
	}

	fmt.Printf("Planning Directory: %s\n", s.root)
	if len(ordered) == 0 {
		fmt.Println("No tasks inferred.")
		return nil
	}
	for _, task := range ordered {
		printTask(task)
	}
	return nil
}

func runCacheClear(cli *CLI) error {
	s, err := newSession(cli, cli.Cache.Clear.Directory)
	if err != nil {
		return err
	}
	families, err := s.families([]string{"vite", "nuxt"})
	if err != nil {
		return err
	}

	var errs []error
	for _, family := range families {
		store := cache.NewStore(s.cfg.CachePath(s.root, family.CacheFileName()), s.log)
		if err := store.Clear(s.fs); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Info("cache cleared", "family", family.Name(), "path", store.Path())
	}
	return errors.Join(errs...)
}

func printTask(task *graph.Task) {
	// Colors
	green := "\033[32m"
	gray := "\033[90m"
	blue := "\033[34m"
	yellow := "\033[33m"
	cyan := "\033[36m"
	reset := "\033[0m"

	desc := task.Descriptor
	action := desc.Command
	actionColor := yellow
	if action == "" {
		action = desc.Executor
		actionColor = cyan
	}

	fmt.Printf("- %s%s%s %s[%s]%s %s(%s)%s %s%s%s\n",
		green, task.Target, reset,
		actionColor, action, reset,
		blue, task.Project, reset,
		gray, graph.ComputeTaskHash(task)[:8], reset)

	deps := append([]*graph.Task(nil), task.Dependencies()...)
	sort.Slice(deps, func(i, j int) bool { return deps[i].ID() < deps[j].ID() })
	for _, dep := range deps {
		fmt.Printf("    -> %s%s%s %s(%s)%s\n",
			green, dep.Target, reset,
			blue, dep.Project, reset)
	}
}

func attributes(kvs []attribute.KeyValue) []any {
	out := make([]any, 0, 2*len(kvs))
	for _, kv := range kvs {
		out = append(out, string(kv.Key), kv.Value.Emit())
	}
	return out
}
