package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
	"github.com/midu16/ollama-chain-sub000/internal/prompts"
	"github.com/midu16/ollama-chain-sub000/internal/router"
)

const (
	// historyWindow is how many session entries ride along as conversation.
	historyWindow = 10

	// historyEntryMax bounds one history entry's length in a prompt.
	historyEntryMax = 2000

	// longTermFactWindow is how many persistent facts a step prompt carries.
	longTermFactWindow = 10
)

// executeStep runs one step to an outcome. It runs on a worker goroutine:
// session state is only read (through the session's own locking) and every
// mutation is returned in the outcome for the coordinator to apply.
func (r *run) executeStep(ctx context.Context, step planner.PlanStep, plan *planner.Plan) StepOutcome {
	out := StepOutcome{StepID: step.ID, Discovery: isDiscoveryStep(step)}

	if !step.IsReasoning() && !r.agent.registry.Has(step.Tool) {
		logging.Agent("step %d names unregistered tool %q, downgrading to reasoning", step.ID, step.Tool)
		step.Tool = planner.ToolNone
	}
	if r.decision.SkipSearch && isSearchTool(step.Tool) {
		logging.Agent("step %d: web search suppressed for this query, downgrading to reasoning", step.ID)
		step.Tool = planner.ToolNone
	}
	if !plan.DependenciesSatisfied(step) {
		// Groups only contain dependency-satisfied steps; reaching this
		// means the plan changed underneath us and is worth surfacing.
		out.Status = planner.StatusFailed
		out.ErrorFact = fmt.Sprintf("Step %d could not run: dependencies %v are not completed", step.ID, step.DependsOn)
		out.ErrorText = out.ErrorFact
		return out
	}

	reply, model, ok := r.dispatch(ctx, step)
	if !ok {
		return r.autoExecute(ctx, step, out)
	}
	out.Model = model

	parsed := parseResponse(reply)
	out.Facts = append(out.Facts, parsed.facts...)
	logging.AgentDebug("step %d: %s replied with %s (%d facts)", step.ID, model, parsed.kind, len(parsed.facts))

	switch parsed.kind {
	case responseToolCall:
		name := parsed.tool.Name
		if r.decision.SkipSearch && isSearchTool(name) {
			logging.Agent("step %d: model called %s but web search is suppressed; keeping the reply as reasoning", step.ID, name)
			r.completeAsReasoning(step, reply, &out)
			return out
		}
		r.runTool(ctx, step, name, mergeArgs(step.Args, parsed.tool.Args), &out)

	case responseFinalAnswer:
		out.HasFinalAnswer = true
		out.FinalAnswer = parsed.answer
		out.Status = planner.StatusCompleted
		out.History = append(out.History, memory.HistoryEntry{
			Role: "assistant", Type: memory.EntryText, Content: clip(parsed.answer, historyEntryMax),
		})

	case responseMalformed:
		logging.Get(logging.CategoryAgent).Warn("step %d: %s; treating the reply as reasoning", step.ID, parsed.malformed)
		r.completeAsReasoning(step, reply, &out)

	default:
		r.completeAsReasoning(step, parsed.reasoning, &out)
	}
	return out
}

// completeAsReasoning settles a step whose reply carried no actionable
// block: the text becomes assistant history and the step completes.
func (r *run) completeAsReasoning(step planner.PlanStep, text string, out *StepOutcome) {
	out.Status = planner.StatusCompleted
	if text = strings.TrimSpace(text); text != "" {
		out.History = append(out.History, memory.HistoryEntry{
			Role: "assistant", Type: memory.EntryText, Content: clip(text, historyEntryMax),
		})
	}
}

// runTool executes the call and folds the result into the outcome: facts
// are mined from successful output, and a failure becomes a failed step
// plus an explanatory fact for the replanner.
func (r *run) runTool(ctx context.Context, step planner.PlanStep, name string, args map[string]any, out *StepOutcome) {
	result := r.agent.executor.Run(ctx, name, args)
	out.ToolResult = &result

	if result.Success {
		out.Status = planner.StatusCompleted
		out.Facts = append(out.Facts, extractFacts(result)...)
		out.History = append(out.History, memory.HistoryEntry{
			Role: "assistant", Type: memory.EntryToolOutput,
			Content: fmt.Sprintf("[%s] %s", result.ToolName, clip(result.Output, historyEntryMax)),
		})
		return
	}

	out.Status = planner.StatusFailed
	out.ErrorFact = fmt.Sprintf("Step %d failed: %s (%s): %s", step.ID, result.ToolName, result.ErrorKind, clip(result.Output, 200))
	out.ErrorText = out.ErrorFact
	out.History = append(out.History, memory.HistoryEntry{
		Role: "assistant", Type: memory.EntryError, Content: out.ErrorFact,
	})
}

// dispatch tries the step's preferred models, then whatever remains of the
// pool strongest-first, then the routing fallback. Returns the first reply
// and the model that produced it; ok is false when every candidate failed.
func (r *run) dispatch(ctx context.Context, step planner.PlanStep) (reply, model string, ok bool) {
	messages := r.stepMessages(step)

	for _, candidate := range r.candidatesFor(step) {
		text, err := r.agent.client.Complete(ctx, candidate, messages, r.optsFor(step, candidate))
		if err != nil {
			if ctx.Err() != nil {
				return "", "", false
			}
			r.agent.router.MarkFailed(candidate)
			logging.Agent("step %d: model %s unavailable: %v", step.ID, candidate, err)
			continue
		}
		return text, candidate, true
	}
	logging.Get(logging.CategoryAgent).Warn("step %d: every candidate model failed", step.ID)
	return "", "", false
}

// candidatesFor orders the models to try for a step: the router's
// preference list first, then the rest of the pool strongest-first, then
// the routing fallback model.
func (r *run) candidatesFor(step planner.PlanStep) []string {
	seen := make(map[string]bool, len(r.decision.Models)+1)
	var out []string
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range step.PreferredModels {
		add(m)
	}
	for i := len(r.decision.Models) - 1; i >= 0; i-- {
		add(r.decision.Models[i])
	}
	add(r.decision.FallbackModel)
	return out
}

// optsFor builds the call options for one candidate. Thinking is explicitly
// suppressed for tool steps and for simple-complexity reasoning steps, and
// only on models that support the toggle; everything else keeps the model
// default.
func (r *run) optsFor(step planner.PlanStep, model string) llm.Options {
	var opts llm.Options
	suppress := !step.IsReasoning() || r.decision.Complexity == router.Simple
	if suppress {
		opts.Thinking = r.agent.thinkingOpt(model, false)
	}
	return opts
}

// stepMessages frames the step prompt as the system turn, the recent
// history window, and one closing user instruction.
func (r *run) stepMessages(step planner.PlanStep) []llm.Message {
	var longTerm []string
	if r.agent.persist != nil {
		longTerm = memory.RankFacts(r.agent.persist.Facts(), step.Description, longTermFactWindow)
	}
	prompt := prompts.Step(prompts.StepInput{
		Goal:          r.session.Goal(),
		Description:   step.Description,
		Tool:          step.Tool,
		Catalogue:     r.catalogue,
		SessionState:  r.session.StructuredContext(step.Description),
		LongTermFacts: longTerm,
	})

	msgs := []llm.Message{{Role: "system", Content: prompt}}
	for _, h := range r.session.History(historyWindow) {
		role := h.Role
		if role != "user" {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: clip(h.Content, historyEntryMax)})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: "Execute the current step now."})
	return msgs
}

// mergeArgs overlays the model's call arguments on the plan's. The model
// wins on conflicts; plan-supplied args fill whatever the call left out.
func mergeArgs(planArgs, callArgs map[string]any) map[string]any {
	if len(planArgs) == 0 {
		return callArgs
	}
	merged := make(map[string]any, len(planArgs)+len(callArgs))
	for k, v := range planArgs {
		merged[k] = v
	}
	for k, v := range callArgs {
		merged[k] = v
	}
	return merged
}

// isSearchTool matches the web-search family that SkipSearch suppresses.
func isSearchTool(name string) bool {
	return strings.HasPrefix(name, "web_search")
}

// clip bounds s to max bytes with an ellipsis marker.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
