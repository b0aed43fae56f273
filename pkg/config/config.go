// Package config loads taskinfer settings from defaults, every taskinfer.json
// between the filesystem root and the workspace, and TASKINFER_* environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"taskinfer/pkg/plugin"
	"taskinfer/pkg/targets"
)

const (
	// FileName is the per-directory configuration file
	FileName = "taskinfer.json"
	// EnvPrefix marks the environment variables read into the configuration
	EnvPrefix = "TASKINFER_"

	DefaultCacheDirectory = ".taskinfer/cache"
	DefaultNodeCommand    = "node"
)

// Config is the merged configuration
type Config struct {
	// CacheDirectory holds the per-family cache files, relative to the workspace root
	CacheDirectory string `koanf:"cacheDirectory" validate:"required"`
	// NodeCommand runs the config loader scripts; split like a shell would
	NodeCommand string              `koanf:"nodeCommand" validate:"required"`
	NamedInputs targets.NamedInputs `koanf:"namedInputs"`
	Plugins     PluginsConfig       `koanf:"plugins"`
	Log         LogConfig           `koanf:"log"`
	Parallel    int                 `koanf:"parallel" validate:"min=1"`
}

// PluginsConfig holds the target naming options of each family
type PluginsConfig struct {
	Vite plugin.Options `koanf:"vite"`
	Nuxt plugin.Options `koanf:"nuxt"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		CacheDirectory: DefaultCacheDirectory,
		NodeCommand:    DefaultNodeCommand,
		NamedInputs:    targets.NamedInputs{},
		Log:            LogConfig{Level: "info"},
		Parallel:       runtime.NumCPU(),
	}
}

// CachePath is the absolute path of a family's cache file
func (c *Config) CachePath(workspaceRoot, cacheFileName string) string {
	dir := filepath.FromSlash(c.CacheDirectory)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspaceRoot, dir)
	}
	return filepath.Join(dir, cacheFileName)
}

// envKeys maps environment variable names, without the prefix, to config paths
var envKeys = map[string]string{
	"CACHE_DIRECTORY": "cacheDirectory",
	"NODE_COMMAND":    "nodeCommand",
	"LOG_LEVEL":       "log.level",
	"LOG_JSON":        "log.json",
	"PARALLEL":        "parallel",
}

// Loader reads the configuration for one workspace directory
type Loader struct {
	Fs afero.Fs
	// Environ lists the environment as KEY=value pairs; os.Environ when nil
	Environ func() []string
}

// NewLoader creates a loader over the real filesystem and process environment
func NewLoader() *Loader {
	return &Loader{Fs: afero.NewOsFs(), Environ: os.Environ}
}

// Load merges and validates the configuration seen from startDir
func (l *Loader) Load(startDir string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	files, err := l.configFiles(startDir)
	if err != nil {
		return nil, err
	}
	// Process config files from root to leaf so leaf configs override parent configs
	for i := len(files) - 1; i >= 0; i-- {
		data, err := l.readFile(files[i])
		if err != nil {
			return nil, fmt.Errorf("failed to merge config file %s: %w", files[i], err)
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, fmt.Errorf("failed to merge config file %s: %w", files[i], err)
		}
	}

	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			return envKeys[strings.TrimPrefix(key, EnvPrefix)], value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if cfg.NamedInputs == nil {
		cfg.NamedInputs = targets.NamedInputs{}
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// configFiles lists every config file from startDir up to the filesystem
// root, nearest first
func (l *Loader) configFiles(startDir string) ([]string, error) {
	var files []string
	current := startDir
	for {
		candidate := filepath.Join(current, FileName)
		exists, err := afero.Exists(l.Fs, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		if exists {
			files = append(files, candidate)
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return files, nil
}

func (l *Loader) readFile(path string) (map[string]any, error) {
	data, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse config file: invalid JSON")
	}
	parsed, ok := gjson.ParseBytes(data).Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to parse config file: top level must be an object")
	}
	return parsed, nil
}

// rawMap is a koanf.Provider adapter for already decoded data
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
