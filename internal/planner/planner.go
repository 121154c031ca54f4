package planner

import (
	"context"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/prompts"
)

// planningTemperature keeps plan JSON boring and parseable.
const planningTemperature = 0.2

// Options configures a Planner.
type Options struct {
	// Model is the fast model all planning calls go to.
	Model string

	// ModelSupportsThinking gates the explicit thinking suppression on
	// planning calls; models without the toggle reject it.
	ModelSupportsThinking bool

	// ToolNames are the registered tool names; steps naming anything else
	// are coerced to reasoning steps during normalization.
	ToolNames []string

	// Catalogue is the LLM-facing tool listing included in plan requests.
	Catalogue string
}

// Planner produces and revises plans through a fast model. All methods
// degrade rather than fail: garbage model output yields a usable plan and a
// warning, never an error, so a planning hiccup cannot take the session
// down.
type Planner struct {
	client     llm.Client
	model      string
	thinking   bool
	catalogue  string
	knownTools map[string]bool
}

// New creates a Planner talking to the given client.
func New(client llm.Client, opts Options) *Planner {
	known := make(map[string]bool, len(opts.ToolNames))
	for _, n := range opts.ToolNames {
		known[n] = true
	}
	return &Planner{
		client:     client,
		model:      opts.Model,
		thinking:   opts.ModelSupportsThinking,
		catalogue:  opts.Catalogue,
		knownTools: known,
	}
}

// Decompose turns a goal into a plan. The complexity hint only shapes the
// granularity guidance in the request. When the model returns nothing
// parseable the goal becomes a single reasoning step, so decomposition
// never fails outright; only context cancellation surfaces as an error.
func (p *Planner) Decompose(ctx context.Context, goal, contextBlock, complexityHint string) (*Plan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "decompose")
	defer timer.Stop()

	raw := p.complete(ctx, prompts.Decompose(goal, contextBlock, p.catalogue, complexityHint))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	steps, ok := extractJSONArray(raw)
	if !ok {
		logging.Planner("decompose returned no parseable plan, degrading to a single step")
		return &Plan{Steps: []PlanStep{{
			ID:          1,
			Description: goal,
			Tool:        ToolNone,
			Status:      StatusPending,
		}}}, nil
	}

	plan := normalizeSteps(steps, 1, p.knownTools)
	p.repair(plan)
	logging.Planner("decomposed goal into %d steps (%s complexity)", len(plan.Steps), complexityHint)
	return plan, nil
}

// Replan revises a running plan in light of observations. New step ids are
// allocated above the current maximum. The model is expected, not forced,
// to preserve completed steps. When the model returns nothing parseable the
// current plan is kept unchanged.
func (p *Planner) Replan(ctx context.Context, goal string, current *Plan, observations string) (*Plan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "replan")
	defer timer.Stop()

	nextID := current.MaxID() + 1
	raw := p.complete(ctx, prompts.Replan(goal, current.Progress(), observations, nextID))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	steps, ok := extractJSONArray(raw)
	if !ok {
		logging.Planner("replan returned no parseable plan, keeping the current one")
		return current, nil
	}

	plan := normalizeSteps(steps, nextID, p.knownTools)
	p.repair(plan)
	logging.Planner("replanned: %d steps (was %d)", len(plan.Steps), len(current.Steps))
	return plan, nil
}

// ShouldReplan asks the fast model whether newly discovered facts invalidate
// the remaining plan. Deliberately fail-closed: any call failure or any
// answer not starting with "yes" means no.
func (p *Planner) ShouldReplan(ctx context.Context, goal string, plan *Plan, newFacts []string) bool {
	if len(newFacts) == 0 || plan == nil {
		return false
	}

	facts := newFacts
	if len(facts) > 5 {
		facts = facts[len(facts)-5:]
	}
	var pending []string
	for _, s := range plan.PendingSteps() {
		pending = append(pending, s.Description)
		if len(pending) == 5 {
			break
		}
	}
	if len(pending) == 0 {
		return false
	}

	out, err := p.client.Complete(ctx, p.model,
		[]llm.Message{{Role: "user", Content: prompts.ShouldReplan(goal, facts, pending)}},
		p.callOptions())
	if err != nil {
		logging.PlannerDebug("should-replan call failed, staying the course: %v", err)
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(out))
	decision := strings.HasPrefix(answer, "yes")
	logging.PlannerDebug("should-replan answer %q -> %v", firstLine(answer), decision)
	return decision
}

// complete runs one planning call; failures are logged and read as empty
// output so the caller's degrade path takes over.
func (p *Planner) complete(ctx context.Context, prompt string) string {
	out, err := p.client.Complete(ctx, p.model,
		[]llm.Message{{Role: "user", Content: prompt}},
		p.callOptions())
	if err != nil {
		logging.Planner("planning call to %s failed: %v", p.model, err)
		return ""
	}
	return out
}

// callOptions keeps planning calls cold: low temperature, and thinking
// suppressed when the model can toggle it.
func (p *Planner) callOptions() llm.Options {
	opts := llm.Options{Temperature: planningTemperature}
	if p.thinking {
		opts.Thinking = llm.Thinking(false)
	}
	return opts
}

func (p *Planner) repair(plan *Plan) {
	if _, err := repairStructure(plan); err != nil {
		// Grouping survives a dirty graph via its deadlock tie-break, so a
		// validator failure downgrades to a warning.
		logging.Get(logging.CategoryPlanner).Warn("plan structure validation failed: %v", err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
