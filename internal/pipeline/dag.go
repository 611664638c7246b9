package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Status is a node's lifecycle state within one execution.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Node is one stage in the graph. Run receives the shared RunContext.
type Node struct {
	Name string
	Deps []string
	Run  func(ctx context.Context, rc *RunContext) error
}

// DAG is a set of named nodes with dependencies.
type DAG struct {
	nodes map[string]*Node
	log   zerolog.Logger
}

// NewDAG builds an empty graph.
func NewDAG(log zerolog.Logger) *DAG {
	return &DAG{nodes: make(map[string]*Node), log: log}
}

// Add registers a node. Duplicate names are an error.
func (d *DAG) Add(node *Node) error {
	if node.Name == "" {
		return fmt.Errorf("node name is required")
	}
	if _, exists := d.nodes[node.Name]; exists {
		return fmt.Errorf("duplicate node %q", node.Name)
	}
	d.nodes[node.Name] = node
	return nil
}

// Validate checks that every dependency exists and the graph is acyclic.
func (d *DAG) Validate() error {
	for name, node := range d.nodes {
		for _, dep := range node.Deps {
			if _, ok := d.nodes[dep]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", name, dep)
			}
		}
	}

	// DFS with a recursion stack to detect cycles.
	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(d.nodes))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case gray:
			return fmt.Errorf("cycle detected through node %q", name)
		case black:
			return nil
		}
		color[name] = gray
		for _, dep := range d.nodes[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range d.sortedNames() {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteOptions tunes one execution.
type ExecuteOptions struct {
	// FailFast skips all remaining nodes after the first failure, even
	// ones whose dependencies all succeeded.
	FailFast bool
}

// Execute runs the graph in topological order. Among ready nodes the
// lexicographically first runs next, so execution order is stable. A
// failed node fails the run result; its dependents are skipped. A node
// returning ErrBudgetExceeded is skipped rather than failed.
func (d *DAG) Execute(ctx context.Context, rc *RunContext, opts ExecuteOptions) (map[string]Status, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	statuses := make(map[string]Status, len(d.nodes))
	for name := range d.nodes {
		statuses[name] = StatusPending
	}

	remaining := len(d.nodes)
	var failed bool
	for remaining > 0 {
		name, ok := d.nextReady(statuses)
		if !ok {
			// Everything left is blocked behind a failed or skipped
			// dependency.
			for n, st := range statuses {
				if st == StatusPending {
					statuses[n] = StatusSkipped
					d.log.Warn().Str("node", n).Msg("stage skipped: dependency did not succeed")
					remaining--
				}
			}
			break
		}

		if opts.FailFast && failed {
			statuses[name] = StatusSkipped
			d.log.Warn().Str("node", name).Msg("stage skipped: fail fast")
			remaining--
			continue
		}

		statuses[name] = StatusRunning
		d.log.Info().Str("node", name).Msg("stage started")

		err := d.nodes[name].Run(ctx, rc)
		switch {
		case err == nil:
			statuses[name] = StatusSuccess
			d.log.Info().Str("node", name).Msg("stage succeeded")
		case errors.Is(err, ErrBudgetExceeded):
			statuses[name] = StatusSkipped
			d.log.Warn().Str("node", name).Msg("stage skipped: time budget exceeded")
		default:
			statuses[name] = StatusFailed
			failed = true
			rc.AddError(name, "", err.Error())
			d.log.Error().Str("node", name).Err(err).Msg("stage failed")
		}
		remaining--
	}

	if failed {
		return statuses, fmt.Errorf("one or more stages failed")
	}
	return statuses, nil
}

// nextReady returns the lexicographically first pending node whose
// dependencies all succeeded.
func (d *DAG) nextReady(statuses map[string]Status) (string, bool) {
	for _, name := range d.sortedNames() {
		if statuses[name] != StatusPending {
			continue
		}
		ready := true
		for _, dep := range d.nodes[name].Deps {
			if statuses[dep] != StatusSuccess {
				ready = false
				break
			}
		}
		if ready {
			return name, true
		}
	}
	return "", false
}

func (d *DAG) sortedNames() []string {
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
