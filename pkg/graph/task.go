package graph

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"taskinfer/pkg/targets"
)

// Task is one target of one project in the task graph
type Task struct {
	Project    string
	Target     string
	Descriptor *targets.Descriptor

	dependencies []*Task
}

// NewTask creates a task without dependencies
func NewTask(project, target string, descriptor *targets.Descriptor) *Task {
	return &Task{Project: project, Target: target, Descriptor: descriptor}
}

// ID returns the unique "project:target" identifier
func (t *Task) ID() string {
	return t.Project + ":" + t.Target
}

// Dependencies returns the tasks that must complete before this one
func (t *Task) Dependencies() []*Task {
	return t.dependencies
}

// DependOn records dep as a prerequisite, ignoring duplicates
func (t *Task) DependOn(dep *Task) {
	for _, existing := range t.dependencies {
		if existing == dep {
			return
		}
	}
	t.dependencies = append(t.dependencies, dep)
}

// Hash represents the task's own configuration, without its dependencies
func (t *Task) Hash() string {
	h := sha256.New()
	h.Write([]byte(t.ID()))
	// Descriptor only holds JSON-safe fields
	data, _ := json.Marshal(t.Descriptor)
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}
