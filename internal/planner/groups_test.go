package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// groupIDs flattens groups to id lists for compact assertions.
func groupIDs(groups [][]PlanStep) [][]int {
	var out [][]int
	for _, g := range groups {
		ids := make([]int, 0, len(g))
		for _, s := range g {
			ids = append(ids, s.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestDetectParallelGroupsLinearChain(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1),
		pendingStep(2, 1),
		pendingStep(3, 2),
	}}
	got := groupIDs(DetectParallelGroups(plan))
	if diff := cmp.Diff([][]int{{1}, {2}, {3}}, got); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectParallelGroupsDiamond(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1),
		pendingStep(2, 1),
		pendingStep(3, 1),
		pendingStep(4, 2, 3),
	}}
	got := groupIDs(DetectParallelGroups(plan))
	if diff := cmp.Diff([][]int{{1}, {2, 3}, {4}}, got); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectParallelGroupsIndependentStepsBatchTogether(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1),
		pendingStep(2),
		pendingStep(3),
	}}
	got := groupIDs(DetectParallelGroups(plan))
	if diff := cmp.Diff([][]int{{1, 2, 3}}, got); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectParallelGroupsSeedsFromCompletedSteps(t *testing.T) {
	t.Parallel()

	done := pendingStep(1)
	done.Status = StatusCompleted
	done.Tool = "shell"
	search := pendingStep(2, 1)
	search.Tool = "web_search"
	summarize := pendingStep(3, 1, 2)
	summarize.Tool = "none"

	plan := &Plan{Steps: []PlanStep{done, search, summarize}}
	got := groupIDs(DetectParallelGroups(plan))
	if diff := cmp.Diff([][]int{{2}, {3}}, got); diff != "" {
		t.Errorf("completed step 1 should unblock 2 then 3 (-want +got):\n%s", diff)
	}
}

func TestDetectParallelGroupsForcesThroughFailedDependency(t *testing.T) {
	t.Parallel()

	failed := pendingStep(1)
	failed.Status = StatusFailed
	plan := &Plan{Steps: []PlanStep{
		failed,
		pendingStep(2, 1),
		pendingStep(3, 2),
	}}
	// Step 2 waits on a step that will never complete; the tie-break forces
	// it through as a singleton, and step 3 follows normally.
	got := groupIDs(DetectParallelGroups(plan))
	if diff := cmp.Diff([][]int{{2}, {3}}, got); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectParallelGroupsDrainsUnrepairedCycle(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1, 2),
		pendingStep(2, 1),
	}}
	got := groupIDs(DetectParallelGroups(plan))
	if diff := cmp.Diff([][]int{{1}, {2}}, got); diff != "" {
		t.Errorf("cycle should drain via forced singletons (-want +got):\n%s", diff)
	}
}

func TestDetectParallelGroupsEmptyPlan(t *testing.T) {
	t.Parallel()

	if got := DetectParallelGroups(&Plan{}); got != nil {
		t.Errorf("expected no groups, got %v", got)
	}

	allDone := pendingStep(1)
	allDone.Status = StatusCompleted
	if got := DetectParallelGroups(&Plan{Steps: []PlanStep{allDone}}); got != nil {
		t.Errorf("fully completed plan should yield no groups, got %v", got)
	}
}
