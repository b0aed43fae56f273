package targets

const (
	ProductionInput = "production"
	DefaultInput    = "default"

	// FileServerExecutor serves a build output as static files
	FileServerExecutor = "@nx/web:file-server"
)

// NamedInputs is the set of named input groups visible to a project
type NamedInputs map[string][]any

// HasProduction reports whether a "production" group is defined
func (n NamedInputs) HasProduction() bool {
	_, ok := n[ProductionInput]
	return ok
}

// BuildInputs prefers production over default for both the project and its
// dependencies.
func BuildInputs(namedInputs NamedInputs) []Input {
	if namedInputs.HasProduction() {
		return []Input{NamedInput(ProductionInput), NamedInput("^" + ProductionInput)}
	}
	return []Input{NamedInput(DefaultInput), NamedInput("^" + DefaultInput)}
}

// TestInputs always includes the project's default files; dependencies
// contribute production files when that group exists.
func TestInputs(namedInputs NamedInputs) []Input {
	if namedInputs.HasProduction() {
		return []Input{NamedInput(DefaultInput), NamedInput("^" + ProductionInput)}
	}
	return []Input{NamedInput(DefaultInput), NamedInput("^" + DefaultInput)}
}

// Build is cacheable and depends on the same target in upstream projects
func Build(command, buildTargetName, tool string, namedInputs NamedInputs, outputs []string, projectRoot string) *Descriptor {
	return &Descriptor{
		Command:   command,
		Options:   Options{Cwd: projectRoot},
		Cache:     true,
		DependsOn: []string{"^" + buildTargetName},
		Inputs:    append(BuildInputs(namedInputs), ExternalDependencies(tool)),
		Outputs:   outputs,
	}
}

// Serve runs a long-lived dev server and is never cached
func Serve(command, projectRoot string) *Descriptor {
	return &Descriptor{
		Command: command,
		Options: Options{Cwd: projectRoot},
	}
}

// Preview runs a server over an existing build and is never cached
func Preview(command, projectRoot string) *Descriptor {
	return Serve(command, projectRoot)
}

func Test(command, tool string, namedInputs NamedInputs, outputs []string, projectRoot string) *Descriptor {
	return &Descriptor{
		Command: command,
		Options: Options{Cwd: projectRoot},
		Cache:   true,
		Inputs:  append(TestInputs(namedInputs), ExternalDependencies(tool)),
		Outputs: outputs,
	}
}

// ServeStatic points the file-server executor at the build target by name
func ServeStatic(buildTargetName string) *Descriptor {
	return &Descriptor{
		Executor: FileServerExecutor,
		Options:  Options{BuildTarget: buildTargetName},
	}
}
