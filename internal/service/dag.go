package service

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// DAGBuilder constructs the dependency graph of parsed workflow steps.
// Insertion order is kept so traversal results are deterministic.
type DAGBuilder struct {
	order   []string
	nodes   map[string]bool
	edges   map[string][]string // step -> dependencies
	reverse map[string][]string // step -> dependents
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		nodes:   make(map[string]bool),
		edges:   make(map[string][]string),
		reverse: make(map[string][]string),
	}
}

// AddNode adds a step id to the graph.
func (d *DAGBuilder) AddNode(id string) error {
	if d.nodes[id] {
		return core.ErrValidation(core.CodeDuplicateStep, fmt.Sprintf("step %s already exists", id)).
			WithDetail("step_id", id)
	}
	d.nodes[id] = true
	d.order = append(d.order, id)
	return nil
}

// AddDependency records that from depends on to.
func (d *DAGBuilder) AddDependency(from, to string) error {
	if !d.nodes[from] {
		return core.ErrValidation(core.CodeDanglingDependency, fmt.Sprintf("step %s not found", from))
	}
	if !d.nodes[to] {
		return core.ErrValidation(core.CodeDanglingDependency,
			fmt.Sprintf("step %s depends on unknown step %s", from, to)).
			WithDetail("step_id", from).
			WithDetail("dependency", to)
	}
	for _, dep := range d.edges[from] {
		if dep == to {
			return nil
		}
	}
	d.edges[from] = append(d.edges[from], to)
	d.reverse[to] = append(d.reverse[to], from)
	return nil
}

// DAGState represents a validated graph.
type DAGState struct {
	Order  []string   // topological order, dependencies first
	Levels [][]string // steps grouped by dependency depth
}

// Build validates the graph and returns its topological order.
func (d *DAGBuilder) Build() (*DAGState, error) {
	if cycle := d.findCycle(); cycle != nil {
		return nil, core.ErrValidation(core.CodeDAGCycle,
			"step dependencies contain a cycle: "+strings.Join(cycle, " -> ")).
			WithDetail("cycle", cycle)
	}

	order, err := d.topologicalSort()
	if err != nil {
		return nil, err
	}

	return &DAGState{
		Order:  order,
		Levels: d.calculateLevels(),
	}, nil
}

// topologicalSort orders steps with Kahn's algorithm.
func (d *DAGBuilder) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.order))
	queue := make([]string, 0)
	for _, id := range d.order {
		inDegree[id] = len(d.edges[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(d.order))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, dependent := range d.reverse[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(d.order) {
		return nil, core.ErrValidation(core.CodeDAGCycle, "step dependencies contain a cycle")
	}
	return result, nil
}

// findCycle runs a DFS and returns the first cycle found, closed on its
// starting step, or nil.
func (d *DAGBuilder) findCycle() []string {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(d.order))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = inStack
		stack = append(stack, id)

		for _, dep := range d.edges[id] {
			switch state[dep] {
			case unvisited:
				if dfs(dep) {
					return true
				}
			case inStack:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						break
					}
				}
				return true
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range d.order {
		if state[id] == unvisited && dfs(id) {
			return cycle
		}
	}
	return nil
}

func (d *DAGBuilder) calculateLevels() [][]string {
	if len(d.order) == 0 {
		return nil
	}

	levels := make([][]string, 0)
	assigned := make(map[string]bool, len(d.order))
	for len(assigned) < len(d.order) {
		level := make([]string, 0)
		for _, id := range d.order {
			if assigned[id] {
				continue
			}
			ready := true
			for _, dep := range d.edges[id] {
				if !assigned[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, id)
			}
		}
		for _, id := range level {
			assigned[id] = true
		}
		levels = append(levels, level)
	}
	return levels
}

// Dependencies returns the dependencies of a step.
func (d *DAGBuilder) Dependencies(id string) []string {
	return append([]string(nil), d.edges[id]...)
}

// Dependents returns the steps that depend on id.
func (d *DAGBuilder) Dependents(id string) []string {
	return append([]string(nil), d.reverse[id]...)
}

// Len returns the number of steps in the graph.
func (d *DAGBuilder) Len() int {
	return len(d.order)
}
