package planner

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func pendingStep(id int, deps ...int) PlanStep {
	return PlanStep{ID: id, Description: "step", Tool: ToolNone, DependsOn: deps, Status: StatusPending}
}

func TestRepairDropsDanglingDependencies(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1),
		pendingStep(2, 1, 99),
	}}

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 1 || !strings.Contains(repairs[0], "no such step") {
		t.Errorf("unexpected repairs: %v", repairs)
	}
	if diff := cmp.Diff([]int{1}, plan.Step(2).DependsOn); diff != "" {
		t.Errorf("surviving deps mismatch (-want +got):\n%s", diff)
	}
}

func TestRepairBreaksTwoStepCycle(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1, 2),
		pendingStep(2, 1),
	}}

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 1 || !strings.Contains(repairs[0], "cycle") {
		t.Errorf("expected one cycle repair, got %v", repairs)
	}
	// The first in-plan-order edge on the cycle goes.
	if len(plan.Step(1).DependsOn) != 0 {
		t.Errorf("edge 1 -> 2 should have been dropped, deps now %v", plan.Step(1).DependsOn)
	}
	if diff := cmp.Diff([]int{1}, plan.Step(2).DependsOn); diff != "" {
		t.Errorf("edge 2 -> 1 should survive (-want +got):\n%s", diff)
	}
}

func TestRepairBreaksSelfDependency(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{pendingStep(3, 3)}}

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 1 {
		t.Fatalf("expected one repair, got %v", repairs)
	}
	if len(plan.Step(3).DependsOn) != 0 {
		t.Errorf("self-dependency should be gone, got %v", plan.Step(3).DependsOn)
	}
}

func TestRepairBreaksLongCycleWithOneEdge(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1, 2),
		pendingStep(2, 3),
		pendingStep(3, 1),
	}}

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 1 {
		t.Errorf("a single cycle needs a single repair, got %v", repairs)
	}
	if edgeCount(plan) != 2 {
		t.Errorf("exactly one edge should be removed, %d remain", edgeCount(plan))
	}
}

func TestRepairHandlesDisjointCycles(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1, 2),
		pendingStep(2, 1),
		pendingStep(3, 4),
		pendingStep(4, 3),
	}}

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 2 {
		t.Errorf("two cycles need two repairs, got %v", repairs)
	}
	if edgeCount(plan) != 2 {
		t.Errorf("two edges should remain, got %d", edgeCount(plan))
	}
}

func TestRepairLeavesCleanPlanAlone(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1),
		pendingStep(2, 1),
		pendingStep(3, 1, 2),
	}}
	before := plan.Clone()

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 0 {
		t.Errorf("clean plan should need no repairs, got %v", repairs)
	}
	if diff := cmp.Diff(before, plan); diff != "" {
		t.Errorf("plan changed (-want +got):\n%s", diff)
	}
}

func TestRepairFixesDanglingAndCycleTogether(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1, 2, 50),
		pendingStep(2, 1),
	}}

	repairs, err := repairStructure(plan)
	if err != nil {
		t.Fatalf("repairStructure: %v", err)
	}
	if len(repairs) != 2 {
		t.Errorf("expected a dangling repair and a cycle repair, got %v", repairs)
	}
	if g, err := analyzeGraph(plan); err != nil || len(g.inCycle) != 0 || len(g.dangling) != 0 {
		t.Errorf("plan still dirty after repair: %+v err=%v", g, err)
	}
}
