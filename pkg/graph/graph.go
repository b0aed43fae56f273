// Package graph assembles inferred targets into a task graph and orders it.
package graph

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when tasks depend on each other
var ErrCycle = errors.New("cycle detected in task graph")

// Graph represents a directed acyclic graph of tasks
type Graph struct {
	tasks []*Task
	index map[string]*Task
	edges map[string][]string // task ID -> list of dependency task IDs
}

// NewGraph creates a new empty graph
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]*Task),
		edges: make(map[string][]string),
	}
}

// AddTask adds a task to the graph
func (g *Graph) AddTask(task *Task) error {
	if _, exists := g.index[task.ID()]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID())
	}

	g.tasks = append(g.tasks, task)
	g.index[task.ID()] = task

	var depIDs []string
	for _, dep := range task.Dependencies() {
		depIDs = append(depIDs, dep.ID())
	}
	g.edges[task.ID()] = depIDs

	return nil
}

// GetTask returns a task by its ID
func (g *Graph) GetTask(id string) (*Task, error) {
	task, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("task with ID %s not found", id)
	}
	return task, nil
}

// GetTasks returns all tasks in insertion order
func (g *Graph) GetTasks() []*Task {
	return g.tasks
}

// TopologicalSort returns tasks in topological order (dependencies first).
// Tasks that become ready together keep their insertion order.
func (g *Graph) TopologicalSort() ([]*Task, error) {
	// Kahn's algorithm
	inDegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string)
	for _, task := range g.tasks {
		for _, dep := range g.edges[task.ID()] {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on unknown task %s", task.ID(), dep)
			}
			inDegree[task.ID()]++
			dependents[dep] = append(dependents[dep], task.ID())
		}
	}

	var queue []string
	for _, task := range g.tasks {
		if inDegree[task.ID()] == 0 {
			queue = append(queue, task.ID())
		}
	}

	result := make([]*Task, 0, len(g.tasks))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, g.index[current])

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.tasks) {
		return nil, ErrCycle
	}
	return result, nil
}
