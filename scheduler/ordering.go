package scheduler

import (
	"fmt"
	"sort"
)

// ErrOrderingCycle is returned when a stage's systems cannot be
// topologically ordered; it names the offending systems.
type ErrOrderingCycle struct {
	Stage   Stage
	Systems []string
}

func (e *ErrOrderingCycle) Error() string {
	return fmt.Sprintf("scheduler: cycle in stage %s ordering among systems %v", e.Stage, e.Systems)
}

// batch is a set of systems (by index into the stage's system slice)
// that may execute concurrently: no edge connects any pair of them.
type batch []int

// buildOrder computes, for one stage's systems (already in
// registration order), a sequence of batches such that running the
// batches in order — and within a batch, running its members in any
// order, including concurrently — is observably identical to running
// every system sequentially in topological order.
//
// Edges come from two sources: explicit Before/After declarations, and
// conflicts (write/write intersection, or one system's write against
// another's read on the same type). Conflict edges run from the
// earlier-registered system to the later one, so conflicting systems
// stay ordered by registration order.
func buildOrder(stage Stage, systems []System) ([]batch, error) {
	n := len(systems)
	byName := make(map[string]int, n)
	for i, s := range systems {
		byName[s.Name] = i
	}

	// adjacency[i] = set of j such that i must run before j.
	adjacency := make([]map[int]struct{}, n)
	inDegree := make([]int, n)
	addEdge := func(from, to int) {
		if from == to {
			return
		}
		if adjacency[from] == nil {
			adjacency[from] = make(map[int]struct{})
		}
		if _, exists := adjacency[from][to]; exists {
			return
		}
		adjacency[from][to] = struct{}{}
		inDegree[to]++
	}

	for i, s := range systems {
		for _, name := range s.Before {
			if j, ok := byName[name]; ok {
				addEdge(i, j)
			}
		}
		for _, name := range s.After {
			if j, ok := byName[name]; ok {
				addEdge(j, i)
			}
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if conflicts(systems[i], systems[j]) {
				addEdge(i, j)
			}
		}
	}

	names := make([]string, n)
	for i, s := range systems {
		names[i] = s.Name
	}
	return kahnBatches(stage, names, inDegree, adjacency)
}

func conflicts(a, b System) bool {
	for w := range a.writeSet() {
		if b.readsOrWrites(w) {
			return true
		}
	}
	for w := range b.writeSet() {
		if a.readsOrWrites(w) {
			return true
		}
	}
	return false
}

func kahnBatches(stage Stage, names []string, inDegree []int, adjacency []map[int]struct{}) ([]batch, error) {
	n := len(inDegree)
	remaining := append([]int(nil), inDegree...)
	visited := make([]bool, n)
	var batches []batch
	processed := 0

	for processed < n {
		var current batch
		for i := 0; i < n; i++ {
			if !visited[i] && remaining[i] == 0 {
				current = append(current, i)
			}
		}
		if len(current) == 0 {
			break
		}
		sort.Ints(current)
		for _, i := range current {
			visited[i] = true
		}
		for _, i := range current {
			for j := range adjacency[i] {
				remaining[j]--
			}
		}
		batches = append(batches, current)
		processed += len(current)
	}

	if processed < n {
		var stuck []string
		for i := 0; i < n; i++ {
			if !visited[i] {
				stuck = append(stuck, names[i])
			}
		}
		return nil, &ErrOrderingCycle{Stage: stage, Systems: stuck}
	}

	return batches, nil
}
