// Package targets holds the task descriptors produced for a project and the
// helpers that assemble them.
package targets

import (
	"encoding/json"
	"fmt"
)

// TargetSet maps a target name to its descriptor
type TargetSet map[string]*Descriptor

// Names returns the target names in no particular order
func (s TargetSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// Options are the executor options of a target
type Options struct {
	Cwd         string `json:"cwd,omitempty"`
	BuildTarget string `json:"buildTarget,omitempty"`
}

// Descriptor is one runnable task definition
type Descriptor struct {
	Command   string   `json:"command,omitempty"`
	Executor  string   `json:"executor,omitempty"`
	Options   Options  `json:"options"`
	Cache     bool     `json:"cache,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty"`
	Inputs    []Input  `json:"inputs,omitempty"`
	Outputs   []string `json:"outputs,omitempty"`
}

// WorkingDirectory is the project root the command runs in
func (d *Descriptor) WorkingDirectory() string {
	return d.Options.Cwd
}

// Validate checks that a cacheable target declares where its outputs go
func (d *Descriptor) Validate() error {
	if d.Command == "" && d.Executor == "" {
		return fmt.Errorf("target has neither a command nor an executor")
	}
	if d.Cache && len(d.Outputs) == 0 {
		return fmt.Errorf("cacheable target %q declares no outputs", d.Command)
	}
	return nil
}

// Input is either a named-input reference such as "production" or "^default",
// or a group of external tool dependencies.
type Input struct {
	Name                 string
	ExternalDependencies []string
}

// NamedInput references a named input group
func NamedInput(name string) Input {
	return Input{Name: name}
}

// ExternalDependencies references the installed versions of the given tools
func ExternalDependencies(deps ...string) Input {
	return Input{ExternalDependencies: deps}
}

type externalDependenciesJSON struct {
	ExternalDependencies []string `json:"externalDependencies"`
}

func (i Input) MarshalJSON() ([]byte, error) {
	if i.Name != "" {
		return json.Marshal(i.Name)
	}
	return json.Marshal(externalDependenciesJSON{ExternalDependencies: i.ExternalDependencies})
}

func (i *Input) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*i = Input{Name: name}
		return nil
	}
	var group externalDependenciesJSON
	if err := json.Unmarshal(data, &group); err != nil {
		return fmt.Errorf("input must be a string or an externalDependencies object: %w", err)
	}
	*i = Input{ExternalDependencies: group.ExternalDependencies}
	return nil
}

func (i Input) String() string {
	if i.Name != "" {
		return i.Name
	}
	return fmt.Sprintf("externalDependencies%v", i.ExternalDependencies)
}
