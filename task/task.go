// Package task implements the schedulable unit of work (Node), the
// dependency graph, and the Scheduler: a topological admission controller
// plus a concurrency gate. The scheduler holds no business semantics.
package task

import (
	"context"
	"sync"

	"agentrun/core"
)

// State is a node's lifecycle state. SUCCEEDED and FAILED are terminal;
// there is no transition out of them.
type State string

const (
	// StatePending means the node has not been dispatched.
	StatePending State = "PENDING"
	// StateRunning means the node's work is executing.
	StateRunning State = "RUNNING"
	// StateSucceeded means the work completed without error.
	StateSucceeded State = "SUCCEEDED"
	// StateFailed means the work returned an error, or a dependency failed.
	StateFailed State = "FAILED"
)

// Work is the unit a node executes. It must honor ctx cancellation at its
// suspension points.
type Work func(ctx context.Context) (any, error)

// Node is one schedulable unit of work with dependency edges. A Node is
// owned exclusively by the scheduler that dispatched it; result and error
// are write-once, set exactly at the terminal transition.
type Node struct {
	mu        sync.Mutex
	id        string
	name      string
	work      Work
	state     State
	result    any
	err       error
	dependsOn []*Node
}

// NewNode constructs a PENDING node depending on the given nodes.
func NewNode(name string, work Work, dependsOn ...*Node) *Node {
	return &Node{
		id:        core.NewTaskID(),
		name:      name,
		work:      work,
		state:     StatePending,
		dependsOn: dependsOn,
	}
}

// ID returns the node's unique id.
func (n *Node) ID() string { return n.id }

// Name returns the node's human-readable name.
func (n *Node) Name() string { return n.name }

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Result returns the terminal result and error. Both are zero until the
// node reaches a terminal state.
func (n *Node) Result() (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result, n.err
}

// DependsOn returns the node's dependency edges.
func (n *Node) DependsOn() []*Node { return n.dependsOn }

// start transitions PENDING -> RUNNING. Returns false if the node is not
// PENDING (already dispatched or short-circuited).
func (n *Node) start() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StatePending {
		return false
	}
	n.state = StateRunning
	return true
}

// finish records the terminal transition. It is a no-op if the node is
// already terminal, preserving write-once result/error semantics.
func (n *Node) finish(result any, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateSucceeded || n.state == StateFailed {
		return
	}
	if err != nil {
		n.state = StateFailed
		n.err = err
		return
	}
	n.state = StateSucceeded
	n.result = result
}

// ready reports whether the node is PENDING with every dependency SUCCEEDED.
func (n *Node) ready() bool {
	if n.State() != StatePending {
		return false
	}
	for _, dep := range n.dependsOn {
		if dep.State() != StateSucceeded {
			return false
		}
	}
	return true
}

// blocked reports whether any dependency FAILED, which short-circuits this
// node to FAILED without running it.
func (n *Node) blocked() (*Node, bool) {
	for _, dep := range n.dependsOn {
		if dep.State() == StateFailed {
			return dep, true
		}
	}
	return nil, false
}
