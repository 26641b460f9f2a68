package osm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Planning errors. Planning failures are fatal to the whole batch: no action
// executes and state is left untouched.
var (
	ErrConflictCycle   = errors.New("conflict cycle")
	ErrInvalidArgument = errors.New("invalid argument")
)

// -----------------------------------------------------------------------------
// Plan
// -----------------------------------------------------------------------------

// PlanStatus is the per-plan state machine.
type PlanStatus int

// Plan lifecycle states.
const (
	PlanPending PlanStatus = iota
	PlanRunning
	PlanSucceeded
	PlanFailed
)

func (s PlanStatus) String() string {
	switch s {
	case PlanPending:
		return "pending"
	case PlanRunning:
		return "running"
	case PlanSucceeded:
		return "succeeded"
	case PlanFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Layer is an unordered set of actions that are pairwise conflict-free and
// therefore safe to execute concurrently. Layers own their member actions.
type Layer struct {
	Actions []*Action
}

// Plan is a DAG of layers. An edge L -> L' means L must fully complete
// before L' begins. Plans are ephemeral: built for one batch, executed,
// discarded.
type Plan struct {
	Layers []*Layer

	succs  [][]int
	preds  [][]int
	status PlanStatus
}

// Status returns the plan's lifecycle state.
func (p *Plan) Status() PlanStatus { return p.status }

// Successors returns the indexes of layers that depend on layer i.
func (p *Plan) Successors(i int) []int { return p.succs[i] }

// Predecessors returns the indexes of layers layer i depends on.
func (p *Plan) Predecessors(i int) []int { return p.preds[i] }

// ActionCount returns the total number of actions across all layers.
func (p *Plan) ActionCount() int {
	n := 0
	for _, layer := range p.Layers {
		n += len(layer.Actions)
	}
	return n
}

// reachable reports whether a directed edge-path leads from layer `from` to
// layer `to`.
func (p *Plan) reachable(from, to int) bool {
	if from == to {
		return true
	}
	seen := make([]bool, len(p.Layers))
	stack := []int{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, p.succs[cur]...)
	}
	return false
}

// -----------------------------------------------------------------------------
// Layering
// -----------------------------------------------------------------------------

// BuildPlan merges the actions of one batch into a conflict-respecting layer
// DAG by greedy placement: each action lands on the earliest layer strictly
// after every action it must follow. Actions from independent jobs that
// never conflict collapse into shared layers; jobs touching overlapping
// paths serialize only where their effects actually conflict.
//
// Returns ErrConflictCycle when the precedence relation cannot be
// topologically ordered; no partial plan is produced.
func BuildPlan(actions []*Action) (*Plan, error) {
	for i, action := range actions {
		action.seq = i
	}

	// Precedence edges from pairwise conflicts.
	predecessors := make([][]int, len(actions))
	for i := 0; i < len(actions); i++ {
		for j := i + 1; j < len(actions); j++ {
			if !Conflicts(actions[i], actions[j]) {
				continue
			}
			if precedes(actions[i], actions[j]) {
				predecessors[j] = append(predecessors[j], i)
			} else {
				predecessors[i] = append(predecessors[i], j)
			}
		}
	}

	// Greedy topological placement. Every pass places all actions whose
	// predecessors are already placed; a pass with no progress means the
	// precedence relation has a cycle.
	const unplaced = -1
	layerOf := make([]int, len(actions))
	for i := range layerOf {
		layerOf[i] = unplaced
	}

	remaining := len(actions)
	maxLayer := -1
	for remaining > 0 {
		progressed := false
		for i := range actions {
			if layerOf[i] != unplaced {
				continue
			}
			target := 0
			ready := true
			for _, pred := range predecessors[i] {
				if layerOf[pred] == unplaced {
					ready = false
					break
				}
				if layerOf[pred] >= target {
					target = layerOf[pred] + 1
				}
			}
			if !ready {
				continue
			}
			layerOf[i] = target
			if target > maxLayer {
				maxLayer = target
			}
			remaining--
			progressed = true
		}
		if !progressed {
			var stuck []string
			for i, layer := range layerOf {
				if layer == unplaced {
					stuck = append(stuck, actions[i].Key())
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrConflictCycle, strings.Join(stuck, ", "))
		}
	}

	plan := &Plan{
		Layers: make([]*Layer, maxLayer+1),
		succs:  make([][]int, maxLayer+1),
		preds:  make([][]int, maxLayer+1),
		status: PlanPending,
	}
	for i := range plan.Layers {
		plan.Layers[i] = &Layer{}
	}
	for i, action := range actions {
		layer := plan.Layers[layerOf[i]]
		layer.Actions = append(layer.Actions, action)
	}

	// Layer edges from action precedence.
	type edge struct{ from, to int }
	edges := make(map[edge]struct{})
	for i := range actions {
		for _, pred := range predecessors[i] {
			e := edge{from: layerOf[pred], to: layerOf[i]}
			if e.from == e.to {
				continue
			}
			edges[e] = struct{}{}
		}
	}
	for e := range edges {
		plan.succs[e.from] = append(plan.succs[e.from], e.to)
		plan.preds[e.to] = append(plan.preds[e.to], e.from)
	}
	for i := range plan.succs {
		sort.Ints(plan.succs[i])
		sort.Ints(plan.preds[i])
	}

	return plan, nil
}
