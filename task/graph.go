package task

import (
	"agentrun/core"
)

// Graph is a directed acyclic dependency graph of nodes (edges read
// "depends on").
type Graph struct {
	name  string
	nodes []*Node
}

// NewGraph constructs a graph over the given nodes.
func NewGraph(name string, nodes ...*Node) *Graph {
	return &Graph{name: name, nodes: nodes}
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// Nodes returns the graph's nodes in insertion order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Add appends a node to the graph.
func (g *Graph) Add(n *Node) { g.nodes = append(g.nodes, n) }

// Validate rejects dangling dependency references and cycles (Kahn's
// algorithm) with a ConfigurationError. Runs before any dispatch.
func (g *Graph) Validate() error {
	members := make(map[*Node]bool, len(g.nodes))
	for _, n := range g.nodes {
		members[n] = true
	}
	for _, n := range g.nodes {
		for _, dep := range n.dependsOn {
			if !members[dep] {
				return core.NewConfigurationError(
					"task %q depends on %q which is not in graph %q", n.name, dep.name, g.name)
			}
		}
	}

	inDegree := make(map[*Node]int, len(g.nodes))
	dependents := make(map[*Node][]*Node, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = len(n.dependsOn)
		for _, dep := range n.dependsOn {
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var queue []*Node
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(g.nodes) {
		return core.NewConfigurationError("task graph %q contains a cycle", g.name)
	}
	return nil
}

// TopologicalOrder returns the nodes in a valid dependency order,
// preserving insertion order among peers. The graph must be valid.
func (g *Graph) TopologicalOrder() []*Node {
	inDegree := make(map[*Node]int, len(g.nodes))
	dependents := make(map[*Node][]*Node, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = len(n.dependsOn)
		for _, dep := range n.dependsOn {
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var queue []*Node
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	order := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}
