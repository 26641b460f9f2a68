package osm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layerIndexOf(t *testing.T, plan *Plan, action *Action) int {
	t.Helper()
	for i, layer := range plan.Layers {
		for _, a := range layer.Actions {
			if a == action {
				return i
			}
		}
	}
	t.Fatalf("action %s not placed in any layer", action.Key())
	return -1
}

func TestBuildPlan_NonConflictingActionsShareLayer(t *testing.T) {
	partition := testPartition()
	actions := []*Action{
		{Kind: Create, Scope: partition.Object("a.jsonl"), Version: 1},
		{Kind: Create, Scope: partition.Object("b.jsonl"), Version: 1},
		{Kind: Create, Scope: partition.Object("c.jsonl"), Version: 1},
	}

	plan, err := BuildPlan(actions)
	require.NoError(t, err)

	require.Len(t, plan.Layers, 1)
	assert.Len(t, plan.Layers[0].Actions, 3)
	assert.Equal(t, PlanPending, plan.Status())
}

func TestBuildPlan_RemoveOrdersAfterCopy(t *testing.T) {
	partition := testPartition()
	source := partition.Object("a.jsonl")
	target := partition.Object("b.jsonl")

	// Emission order puts the remove first; the plan must still execute the
	// copy before its source disappears.
	remove := &Action{Kind: Remove, Scope: source, Version: 1}
	copyAction := &Action{
		Kind: Create, Scope: target, Version: 1,
		Sources: []ObjectVersion{{Path: source, Version: 1}},
	}

	plan, err := BuildPlan([]*Action{remove, copyAction})
	require.NoError(t, err)
	require.Len(t, plan.Layers, 2)

	copyLayer := layerIndexOf(t, plan, copyAction)
	removeLayer := layerIndexOf(t, plan, remove)
	assert.Less(t, copyLayer, removeLayer)
	assert.True(t, plan.reachable(copyLayer, removeLayer))
}

func TestBuildPlan_SoundnessOverConflictingPairs(t *testing.T) {
	partition := testPartition()
	a := partition.Object("a.jsonl")
	b := partition.Object("b.jsonl")
	c := partition.Object("c.jsonl")

	// A chain: copy a->b, copy b->c reading b's fresh version, then remove
	// both source versions.
	actions := []*Action{
		{Kind: Create, Scope: b, Version: 1, Sources: []ObjectVersion{{Path: a, Version: 1}}},
		{Kind: Create, Scope: c, Version: 1, Sources: []ObjectVersion{{Path: b, Version: 1}}},
		{Kind: Remove, Scope: a, Version: 1},
		{Kind: Remove, Scope: b, Version: 1},
	}

	plan, err := BuildPlan(actions)
	require.NoError(t, err)

	// Every conflicting pair must land on distinct, edge-connected layers in
	// precedence order.
	for i := 0; i < len(actions); i++ {
		for j := i + 1; j < len(actions); j++ {
			if !Conflicts(actions[i], actions[j]) {
				continue
			}
			first, second := actions[i], actions[j]
			if !precedes(first, second) {
				first, second = second, first
			}
			fl := layerIndexOf(t, plan, first)
			sl := layerIndexOf(t, plan, second)
			assert.Less(t, fl, sl, "%s must precede %s", first.Key(), second.Key())
			assert.True(t, plan.reachable(fl, sl),
				"no edge-path from layer %d to %d (%s -> %s)", fl, sl, first.Key(), second.Key())
		}
	}
}

func TestBuildPlan_GreedyPlacement(t *testing.T) {
	partition := testPartition()
	a := partition.Object("a.jsonl")
	b := partition.Object("b.jsonl")
	free := partition.Object("free.jsonl")

	actions := []*Action{
		{Kind: Create, Scope: b, Version: 1, Sources: []ObjectVersion{{Path: a, Version: 1}}},
		{Kind: Remove, Scope: a, Version: 1},
		// Unrelated to the chain above: must land in the first layer, not
		// trail behind it.
		{Kind: Create, Scope: free, Version: 1},
	}

	plan, err := BuildPlan(actions)
	require.NoError(t, err)
	require.Len(t, plan.Layers, 2)

	assert.Equal(t, 0, layerIndexOf(t, plan, actions[0]))
	assert.Equal(t, 1, layerIndexOf(t, plan, actions[1]))
	assert.Equal(t, 0, layerIndexOf(t, plan, actions[2]))
}

func TestBuildPlan_IndependentJobsMerge(t *testing.T) {
	state := NewState()
	p1 := DatasetPath{Bucket: "raw", Name: "events"}.Partition("date=2020-01")
	p2 := DatasetPath{Bucket: "raw", Name: "events"}.Partition("date=2020-02")
	seedObject(t, state, p1.Object("a.jsonl"), 1)
	seedObject(t, state, p2.Object("b.jsonl"), 1)

	move1 := NewMovePartition(p1, DatasetPath{Bucket: "raw", Name: "events"}.Partition("date=2021-01"))
	move2 := NewMovePartition(p2, DatasetPath{Bucket: "raw", Name: "events"}.Partition("date=2021-02"))

	actions1, err := move1.Actions(state)
	require.NoError(t, err)
	actions2, err := move2.Actions(state)
	require.NoError(t, err)

	plan, err := BuildPlan(append(actions1, actions2...))
	require.NoError(t, err)

	// Two disjoint moves collapse into the same two layers: both copies
	// together, both source removes together.
	require.Len(t, plan.Layers, 2)
	assert.Len(t, plan.Layers[0].Actions, 2)
	assert.Len(t, plan.Layers[1].Actions, 2)
}

func TestBuildPlan_Empty(t *testing.T) {
	plan, err := BuildPlan(nil)
	require.NoError(t, err)
	assert.Zero(t, plan.ActionCount())
	assert.Empty(t, plan.Layers)
}

func TestBuildPlan_LayerEdgesDeduplicated(t *testing.T) {
	partition := testPartition()
	a := partition.Object("a.jsonl")
	b := partition.Object("b.jsonl")

	actions := []*Action{
		{Kind: Create, Scope: a, Version: 2, Sources: []ObjectVersion{{Path: a, Version: 1}}},
		{Kind: Create, Scope: b, Version: 2, Sources: []ObjectVersion{{Path: b, Version: 1}}},
		{Kind: Remove, Scope: a, Version: 1},
		{Kind: Remove, Scope: b, Version: 1},
	}

	plan, err := BuildPlan(actions)
	require.NoError(t, err)
	require.Len(t, plan.Layers, 2)

	// Two independent precedence pairs between the same pair of layers must
	// produce a single edge.
	assert.Equal(t, []int{1}, plan.Successors(0))
	assert.Equal(t, []int{0}, plan.Predecessors(1))
}
