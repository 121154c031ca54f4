package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
)

const fastModel = "qwen2.5:0.5b"

func newTestPlanner(client llm.Client) *Planner {
	return New(client, Options{
		Model:                 fastModel,
		ModelSupportsThinking: true,
		ToolNames:             []string{"shell", "read_file", "web_search"},
		Catalogue:             "- shell: run a command\n- read_file: read a file\n- web_search: search the web",
	})
}

func TestDecomposeParsesModelPlan(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient().Queue(fastModel, `Here you go:
[
  {"id": 1, "description": "find the kernel version", "tool": "shell", "args": {"command": "uname -r"}},
  {"description": "summarize", "depends_on": [1]}
]`)
	p := newTestPlanner(mock)

	plan, err := p.Decompose(context.Background(), "what kernel is this", "", "moderate")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	want := &Plan{Steps: []PlanStep{
		{ID: 1, Description: "find the kernel version", Tool: "shell", Args: map[string]any{"command": "uname -r"}, Status: StatusPending},
		{ID: 2, Description: "summarize", Tool: ToolNone, DependsOn: []int{1}, Status: StatusPending},
	}}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	calls := mock.CallsFor(fastModel)
	if len(calls) != 1 {
		t.Fatalf("expected 1 planning call, got %d", len(calls))
	}
	prompt := calls[0].Messages[0].Content
	if !strings.Contains(prompt, "- shell: run a command") {
		t.Error("catalogue missing from decompose prompt")
	}
	if calls[0].Options.Thinking == nil || *calls[0].Options.Thinking {
		t.Error("planning calls should suppress extended reasoning")
	}
}

func TestDecomposeDegradesToSingleStep(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient().Queue(fastModel, "I am sorry, I cannot plan this.")
	p := newTestPlanner(mock)

	plan, err := p.Decompose(context.Background(), "audit this host", "", "simple")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	want := &Plan{Steps: []PlanStep{
		{ID: 1, Description: "audit this host", Tool: ToolNone, Status: StatusPending},
	}}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("degraded plan mismatch (-want +got):\n%s", diff)
	}
}

func TestDecomposeDegradesOnModelError(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient().Fail(fastModel, errors.New("connection refused"))
	p := newTestPlanner(mock)

	plan, err := p.Decompose(context.Background(), "audit this host", "", "simple")
	if err != nil {
		t.Fatalf("a failed planning call must degrade, not error: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Description != "audit this host" {
		t.Errorf("unexpected degraded plan: %+v", plan)
	}
}

func TestDecomposeHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPlanner(llm.NewMockClient())
	if _, err := p.Decompose(ctx, "goal", "", "simple"); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestDecomposeRepairsModelPlan(t *testing.T) {
	t.Parallel()

	// Cycle 1<->2 plus a dangling dependency on 9.
	mock := llm.NewMockClient().Queue(fastModel, `[
  {"id": 1, "description": "a", "depends_on": [2]},
  {"id": 2, "description": "b", "depends_on": [1, 9]}
]`)
	p := newTestPlanner(mock)

	plan, err := p.Decompose(context.Background(), "goal", "", "complex")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	g, err := analyzeGraph(plan)
	if err != nil {
		t.Fatalf("analyzeGraph: %v", err)
	}
	if len(g.inCycle) != 0 || len(g.dangling) != 0 {
		t.Errorf("plan should come back clean, got %+v", g)
	}
}

func TestReplanAllocatesNewIDsAboveMax(t *testing.T) {
	t.Parallel()

	current := &Plan{Steps: []PlanStep{
		{ID: 1, Description: "done", Tool: ToolNone, Status: StatusCompleted},
		{ID: 3, Description: "pending", Tool: ToolNone, Status: StatusPending},
	}}
	mock := llm.NewMockClient().Queue(fastModel, `[
  {"id": 1, "description": "done", "status": "completed"},
  {"description": "new step one"},
  {"description": "new step two"}
]`)
	p := newTestPlanner(mock)

	plan, err := p.Replan(context.Background(), "goal", current, "found something")
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}

	ids := []int{plan.Steps[0].ID, plan.Steps[1].ID, plan.Steps[2].ID}
	if diff := cmp.Diff([]int{1, 4, 5}, ids); diff != "" {
		t.Errorf("replan ids mismatch (-want +got):\n%s", diff)
	}

	prompt := mock.CallsFor(fastModel)[0].Messages[0].Content
	if !strings.Contains(prompt, "ids starting at 4") {
		t.Error("replan prompt missing the id floor")
	}
	if !strings.Contains(prompt, "found something") {
		t.Error("replan prompt missing observations")
	}
	if !strings.Contains(prompt, "[completed] step 1: done") {
		t.Error("replan prompt missing current plan progress")
	}
}

func TestReplanKeepsCurrentPlanOnGarbage(t *testing.T) {
	t.Parallel()

	current := &Plan{Steps: []PlanStep{
		{ID: 1, Description: "keep me", Tool: ToolNone, Status: StatusPending},
	}}
	mock := llm.NewMockClient().Queue(fastModel, "no plan for you")
	p := newTestPlanner(mock)

	plan, err := p.Replan(context.Background(), "goal", current, "obs")
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}
	if plan != current {
		t.Error("garbage output should keep the current plan")
	}
}

func TestShouldReplanFailClosed(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{pendingStep(1)}}
	facts := []string{"new fact"}

	cases := []struct {
		name   string
		answer string
		err    error
		want   bool
	}{
		{"plain yes", "yes", nil, true},
		{"yes with reason", "Yes, the plan is stale.", nil, true},
		{"plain no", "no", nil, false},
		{"hedged", "I think yes", nil, false},
		{"empty", "", nil, false},
		{"call failure", "", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mock := llm.NewMockClient()
			if tc.err != nil {
				mock.Fail(fastModel, tc.err)
			} else {
				mock.Queue(fastModel, tc.answer)
			}
			p := newTestPlanner(mock)
			if got := p.ShouldReplan(context.Background(), "goal", plan, facts); got != tc.want {
				t.Errorf("answer %q err %v: want %v, got %v", tc.answer, tc.err, tc.want, got)
			}
		})
	}
}

func TestShouldReplanSkipsCallWithoutInputs(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient()
	p := newTestPlanner(mock)

	if p.ShouldReplan(context.Background(), "goal", &Plan{Steps: []PlanStep{pendingStep(1)}}, nil) {
		t.Error("no new facts should mean no replan")
	}
	done := pendingStep(1)
	done.Status = StatusCompleted
	if p.ShouldReplan(context.Background(), "goal", &Plan{Steps: []PlanStep{done}}, []string{"f"}) {
		t.Error("no pending steps should mean no replan")
	}
	if mock.CallCount() != 0 {
		t.Errorf("no model call expected, got %d", mock.CallCount())
	}
}

func TestShouldReplanTrimsExcerpt(t *testing.T) {
	t.Parallel()

	plan := &Plan{Steps: []PlanStep{
		pendingStep(1), pendingStep(2), pendingStep(3),
		pendingStep(4), pendingStep(5), pendingStep(6), pendingStep(7),
	}}
	for i := range plan.Steps {
		plan.Steps[i].Description = "pending " + string(rune('a'+i))
	}
	facts := []string{"fact 1", "fact 2", "fact 3", "fact 4", "fact 5", "fact 6", "fact 7"}

	mock := llm.NewMockClient().Queue(fastModel, "no")
	p := newTestPlanner(mock)
	p.ShouldReplan(context.Background(), "goal", plan, facts)

	prompt := mock.CallsFor(fastModel)[0].Messages[0].Content
	if strings.Contains(prompt, "fact 1") || strings.Contains(prompt, "fact 2") {
		t.Error("only the last five facts belong in the excerpt")
	}
	if !strings.Contains(prompt, "fact 7") {
		t.Error("latest fact missing from excerpt")
	}
	if !strings.Contains(prompt, "pending a") || strings.Contains(prompt, "pending f") {
		t.Error("only the first five pending steps belong in the excerpt")
	}
}
