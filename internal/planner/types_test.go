package planner

import (
	"strings"
	"testing"
)

func TestPlanLookupAndPendingHelpers(t *testing.T) {
	t.Parallel()

	done := pendingStep(1)
	done.Status = StatusCompleted
	plan := &Plan{Steps: []PlanStep{done, pendingStep(2, 1), pendingStep(5, 2)}}

	if plan.Step(2) == nil || plan.Step(2).ID != 2 {
		t.Error("Step(2) lookup failed")
	}
	if plan.Step(42) != nil {
		t.Error("Step(42) should be nil")
	}
	if got := len(plan.PendingSteps()); got != 2 {
		t.Errorf("want 2 pending, got %d", got)
	}
	if !plan.HasPending() {
		t.Error("plan has pending steps")
	}
	if got := plan.MaxID(); got != 5 {
		t.Errorf("MaxID: want 5, got %d", got)
	}
	if ids := plan.CompletedIDs(); len(ids) != 1 || ids[0] != 1 {
		t.Errorf("CompletedIDs: %v", ids)
	}
	if !plan.DependenciesSatisfied(plan.Steps[1]) {
		t.Error("step 2 depends only on completed step 1")
	}
	if plan.DependenciesSatisfied(plan.Steps[2]) {
		t.Error("step 5 depends on pending step 2")
	}
}

func TestStepStatusTerminal(t *testing.T) {
	t.Parallel()

	if StatusPending.IsTerminal() || StatusInProgress.IsTerminal() {
		t.Error("pending and in_progress are not terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed and failed are terminal")
	}
}

func TestPlanProgressRendering(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		{ID: 1, Description: "list files", Tool: "list_dir", Status: StatusCompleted},
		{ID: 2, Description: "reason about them", Status: StatusPending},
	}}
	got := plan.Progress()

	if !strings.Contains(got, "[completed] step 1: list files (tool: list_dir)") {
		t.Errorf("missing completed line:\n%s", got)
	}
	if !strings.Contains(got, "[pending] step 2: reason about them (tool: none)") {
		t.Errorf("empty tool should render as none:\n%s", got)
	}
}

func TestPlanCloneIsDeep(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		{ID: 1, Description: "a", Tool: "shell", Args: map[string]any{"command": "ls"},
			DependsOn: []int{}, PreferredModels: []string{"m1"}, Status: StatusPending},
	}}
	clone := plan.Clone()

	clone.Steps[0].Args["command"] = "rm"
	clone.Steps[0].PreferredModels[0] = "m2"
	clone.Steps[0].Status = StatusFailed

	if plan.Steps[0].Args["command"] != "ls" {
		t.Error("clone shares args map")
	}
	if plan.Steps[0].PreferredModels[0] != "m1" {
		t.Error("clone shares preferred models slice")
	}
	if plan.Steps[0].Status != StatusPending {
		t.Error("clone shares step struct")
	}
}

func TestIsReasoning(t *testing.T) {
	t.Parallel()

	for _, s := range []PlanStep{{Tool: ""}, {Tool: ToolNone}} {
		if !s.IsReasoning() {
			t.Errorf("tool %q should be reasoning", s.Tool)
		}
	}
	if (&PlanStep{Tool: "shell"}).IsReasoning() {
		t.Error("shell step is not reasoning")
	}
}
