package graph

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeTaskHash computes a hash for a task including its dependencies
func ComputeTaskHash(task *Task) string {
	return computeTaskHash(task, make(map[*Task]string))
}

func computeTaskHash(task *Task, memo map[*Task]string) string {
	if hash, ok := memo[task]; ok {
		return hash
	}

	h := sha256.New()
	h.Write([]byte(task.Hash()))

	// Add dependency hashes (sorted for consistency)
	var depHashes []string
	for _, dep := range task.Dependencies() {
		depHashes = append(depHashes, computeTaskHash(dep, memo))
	}
	sort.Strings(depHashes)

	for _, depHash := range depHashes {
		h.Write([]byte(depHash))
	}

	hash := fmt.Sprintf("%x", h.Sum(nil))
	memo[task] = hash
	return hash
}
