package schema

import (
	"fmt"
	"strings"
)

// RelationshipGraph is the dependency graph between entities. An entity
// depends on every entity its foreign keys reference.
type RelationshipGraph struct {
	nodes []*EntityDescriptor
	edges map[*EntityDescriptor][]*EntityDescriptor
}

// NewRelationshipGraph builds a graph over the given descriptors. References to
// descriptors outside the set and self references are not edges.
func NewRelationshipGraph(descs []*EntityDescriptor) *RelationshipGraph {
	graph := &RelationshipGraph{
		nodes: descs,
		edges: make(map[*EntityDescriptor][]*EntityDescriptor),
	}

	member := make(map[*EntityDescriptor]bool, len(descs))
	for _, d := range descs {
		member[d] = true
	}

	for _, d := range descs {
		for _, fk := range d.ForeignKeys {
			if fk.Target == d || !member[fk.Target] {
				continue
			}
			graph.edges[d] = append(graph.edges[d], fk.Target)
		}
	}

	return graph
}

// DetectCycles returns the dependency cycles, each as a list of table names
func (g *RelationshipGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[*EntityDescriptor]bool)
	onStack := make(map[*EntityDescriptor]bool)

	var dfs func(node *EntityDescriptor, path []*EntityDescriptor)
	dfs = func(node *EntityDescriptor, path []*EntityDescriptor) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if !visited[next] {
				dfs(next, path)
			} else if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, 0, len(path)-i)
						for _, c := range path[i:] {
							cycle = append(cycle, c.Table)
						}
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns the descriptors with dependencies first. Ties keep
// the input order.
func (g *RelationshipGraph) TopologicalSort() ([]*EntityDescriptor, error) {
	outDegree := make(map[*EntityDescriptor]int, len(g.nodes))
	reverse := make(map[*EntityDescriptor][]*EntityDescriptor)
	for _, node := range g.nodes {
		outDegree[node] = len(g.edges[node])
		for _, target := range g.edges[node] {
			reverse[target] = append(reverse[target], node)
		}
	}

	var queue []*EntityDescriptor
	for _, node := range g.nodes {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]*EntityDescriptor, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range reverse[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected:\n%s", formatCycles(g.DetectCycles()))
	}

	return result, nil
}

// DependencyOrder returns the registered models ordered so that referenced
// tables come before the tables referencing them
func (r *Registry) DependencyOrder() ([]*EntityDescriptor, error) {
	return NewRelationshipGraph(r.Models()).TopologicalSort()
}

func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s", i+1, strings.Join(cycle, " -> "), cycle[0]))
	}
	return b.String()
}
