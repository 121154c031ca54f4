package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/prompts"
)

const (
	synthesisReviewTemp   = 0.3
	synthesisFinalizeTemp = 0.2
	evidenceSnippet       = 1200
)

// synthesize turns the session's evidence into the final answer through
// progressive refinement: the fastest reachable model drafts, intermediate
// models review the draft against the evidence, and the strongest model
// finalizes. A failed review or finalize stage is skipped and the previous
// text stands. When no model can draft at all, the answer degrades to the
// raw facts ledger and the error carries llm.ErrNoModelAvailable.
func (r *run) synthesize(ctx context.Context) (answer string, degraded bool, err error) {
	goal := r.session.Goal()
	evidence := r.evidence()
	pool := r.decision.Models

	draft := ""
	draftIdx := -1
	for i, model := range pool {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		reply, cerr := r.complete(ctx, model, prompts.SynthesisDraft(goal, evidence), llm.Options{
			Thinking: r.agent.thinkingOpt(model, false),
		})
		if cerr != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			r.agent.router.MarkFailed(model)
			logging.Get(logging.CategoryAgent).Warn("synthesis draft failed on %s: %v", model, cerr)
			continue
		}
		draft, draftIdx = strings.TrimSpace(reply), i
		break
	}
	if draftIdx < 0 {
		logging.Get(logging.CategoryAgent).Error("synthesis could not reach any of %d models; answering from facts alone", len(pool))
		answer = prompts.FactsOnlyAnswer(goal, r.session.Facts())
		return answer, true, fmt.Errorf("synthesis draft failed on all %d models: %w", len(pool), llm.ErrNoModelAvailable)
	}

	last := len(pool) - 1
	for _, model := range pool[min(draftIdx+1, last):last] {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		reply, cerr := r.complete(ctx, model, prompts.SynthesisReview(goal, evidence, draft), llm.Options{
			Temperature: synthesisReviewTemp,
			Thinking:    r.agent.thinkingOpt(model, true),
		})
		if cerr != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			r.agent.router.MarkFailed(model)
			logging.Get(logging.CategoryAgent).Warn("synthesis review on %s failed, keeping prior draft: %v", model, cerr)
			continue
		}
		if reply = strings.TrimSpace(reply); reply != "" {
			draft = reply
		}
	}

	// The strongest model finalizes unless it already wrote the draft.
	if draftIdx < last {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		model := pool[last]
		reply, cerr := r.complete(ctx, model, prompts.SynthesisFinalize(goal, evidence, draft), llm.Options{
			Temperature: synthesisFinalizeTemp,
			Thinking:    r.agent.thinkingOpt(model, true),
		})
		switch {
		case cerr != nil && ctx.Err() != nil:
			return "", false, ctx.Err()
		case cerr != nil:
			r.agent.router.MarkFailed(model)
			logging.Get(logging.CategoryAgent).Warn("synthesis finalize on %s failed, keeping reviewed draft: %v", model, cerr)
		default:
			if reply = strings.TrimSpace(reply); reply != "" {
				draft = reply
			}
		}
	}

	return draft, false, nil
}

// evidence renders everything the run collected into one block: successful
// tool outputs first, then the fact ledger.
func (r *run) evidence() string {
	var sb strings.Builder
	for _, rec := range r.session.ToolResults() {
		if !rec.Success {
			continue
		}
		fmt.Fprintf(&sb, "- step %d, %s: %s\n", rec.StepID, rec.ToolName, clip(rec.Output, evidenceSnippet))
	}
	if facts := r.session.Facts(); len(facts) > 0 {
		sb.WriteString("Established facts:\n")
		for _, f := range facts {
			sb.WriteString("- " + f + "\n")
		}
	}
	if sb.Len() == 0 {
		return "(no evidence was collected)"
	}
	return strings.TrimRight(sb.String(), "\n")
}

// complete issues a single-prompt completion.
func (r *run) complete(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
	return r.agent.client.Complete(ctx, model, []llm.Message{{Role: "user", Content: prompt}}, opts)
}
