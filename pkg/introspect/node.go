package introspect

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/tidwall/gjson"
)

// Loader selects which framework's config-loading routine a NodeResolver calls
type Loader string

const (
	LoaderVite Loader = "vite"
	LoaderNuxt Loader = "nuxt"
)

const outputMarker = "__TASKINFER_CONFIG__"

var (
	//go:embed scripts/vite.mjs
	viteScript string
	//go:embed scripts/nuxt.mjs
	nuxtScript string
)

// NodeResolver runs the framework's config loader in a node subprocess whose
// working directory is the config's directory, so the framework package is
// resolved from the project's own node_modules.
type NodeResolver struct {
	command       []string
	loader        Loader
	workspaceRoot string
}

// NewNodeResolver splits nodeCommand shell-style ("node", "npx tsx",
// "node --conditions=development") and binds it to a loader.
func NewNodeResolver(nodeCommand string, loader Loader, workspaceRoot string) (*NodeResolver, error) {
	command, err := shlex.Split(nodeCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid node command %q: %w", nodeCommand, err)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("node command is empty")
	}
	if loader != LoaderVite && loader != LoaderNuxt {
		return nil, fmt.Errorf("unknown loader %q", loader)
	}
	return &NodeResolver{command: command, loader: loader, workspaceRoot: workspaceRoot}, nil
}

func (r *NodeResolver) script() string {
	if r.loader == LoaderNuxt {
		return nuxtScript
	}
	return viteScript
}

// Args is the full argument vector of the subprocess
func (r *NodeResolver) Args() []string {
	args := append([]string{}, r.command...)
	return append(args, "--input-type=module", "-e", r.script())
}

func (r *NodeResolver) ResolveConfig(ctx context.Context, dir, filename string) (*FrameworkConfig, error) {
	args := r.Args()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Join(r.workspaceRoot, filepath.FromSlash(dir))
	cmd.Env = append(os.Environ(),
		"TASKINFER_CONFIG_FILE="+filename,
		"TASKINFER_MARKER="+outputMarker,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s config loader failed: %w: %s", r.loader, err, strings.TrimSpace(stderr.String()))
	}
	return parseLoaderOutput(stdout.String())
}

// parseLoaderOutput extracts the JSON document following the last marker;
// config files are free to print to stdout before it.
func parseLoaderOutput(out string) (*FrameworkConfig, error) {
	idx := strings.LastIndex(out, outputMarker)
	if idx < 0 {
		return nil, fmt.Errorf("config loader produced no result")
	}
	raw := strings.TrimSpace(out[idx+len(outputMarker):])
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("config loader produced invalid JSON: %q", raw)
	}
	return ParseFrameworkConfig(raw), nil
}
