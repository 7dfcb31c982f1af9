// Package graph provides the task-dependency graph used by the supervisor
// scheduler. Nodes are one task per worker; edges are "blocked by"
// relationships between workers' tasks.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chrysochos/society/pkg/models"
)

// TaskGraph is a directed graph of task nodes keyed by worker ID.
// A cycle is not rejected at build time; the scheduler surfaces it as a
// scheduling deadlock when the ready set empties with work remaining.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps worker ID to the task node.
	nodes map[string]*models.TaskNode
	// edges maps worker ID to the worker IDs its task depends on.
	edges map[string][]string
	// order preserves insertion order for deterministic iteration.
	order []string
}

// New creates an empty task graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes: make(map[string]*models.TaskNode),
		edges: make(map[string][]string),
	}
}

// Build registers all task nodes and their dependency edges.
// A dependency on an unknown worker is an error: the planner is expected
// to sanitize its output before building.
func (g *TaskGraph) Build(nodes []*models.TaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range nodes {
		if _, dup := g.nodes[node.WorkerID]; dup {
			return fmt.Errorf("duplicate task node for worker %s", node.WorkerID)
		}
		g.nodes[node.WorkerID] = node
		g.edges[node.WorkerID] = nil
		g.order = append(g.order, node.WorkerID)
	}

	for _, node := range nodes {
		for _, dep := range node.Dependencies {
			if _, exists := g.nodes[dep]; !exists {
				return fmt.Errorf("task for worker %s depends on unknown worker %s", node.WorkerID, dep)
			}
			g.edges[node.WorkerID] = append(g.edges[node.WorkerID], dep)
		}
	}
	return nil
}

// Ready returns the nodes that can be dispatched now: still pending, with
// every dependency completed. Order is deterministic (insertion order).
func (g *TaskGraph) Ready() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.TaskNode
	for _, id := range g.order {
		node := g.nodes[id]
		if node.Status != models.TaskStatusPending {
			continue
		}

		satisfied := true
		for _, dep := range g.edges[id] {
			if g.nodes[dep].Status != models.TaskStatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, node)
		}
	}
	return ready
}

// HasCycle returns true if the graph contains a circular dependency.
// DFS with coloring: white (0), gray (1), black (2).
func (g *TaskGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Node returns the task node for a worker, or nil if absent.
func (g *TaskGraph) Node(workerID string) *models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[workerID]
}

// Nodes returns all task nodes in insertion order.
func (g *TaskGraph) Nodes() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.TaskNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Size returns the number of task nodes.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependents returns the worker IDs whose tasks depend on workerID.
func (g *TaskGraph) Dependents(workerID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, dep := range deps {
			if dep == workerID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// AllTerminal returns true once every node is completed or failed.
func (g *TaskGraph) AllTerminal() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, node := range g.nodes {
		if !node.Status.Terminal() {
			return false
		}
	}
	return true
}

// Unfinished returns the worker IDs of nodes not yet terminal, in
// insertion order. Used as the deadlock diagnostic payload.
func (g *TaskGraph) Unfinished() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var stuck []string
	for _, id := range g.order {
		if !g.nodes[id].Status.Terminal() {
			stuck = append(stuck, id)
		}
	}
	return stuck
}

// Counts returns how many nodes are completed and the total node count.
func (g *TaskGraph) Counts() (completed, total int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, node := range g.nodes {
		if node.Status == models.TaskStatusCompleted {
			completed++
		}
	}
	return completed, len(g.nodes)
}
