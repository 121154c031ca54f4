package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/prompts"
	"github.com/midu16/ollama-chain-sub000/internal/router"
)

// Ask answers a one-shot question without planning or tools: the query is
// routed onto the ladder, the first reachable model answers it directly,
// and every later model in the pool refines the previous answer. A failed
// rung is marked and skipped; a blank reply keeps the prior answer. The
// returned decision lets callers show which models contributed.
func (a *Agent) Ask(ctx context.Context, query string) (string, router.Decision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", router.Decision{}, fmt.Errorf("query is empty")
	}

	decision := a.router.Route(ctx, query, a.modelNames(), false)
	if len(decision.Models) == 0 {
		return "", decision, fmt.Errorf("no models configured: %w", llm.ErrNoModelAvailable)
	}
	logging.Agent("ask routed %s complexity onto %d models", decision.Complexity, len(decision.Models))

	answer := ""
	answered := false
	for _, model := range decision.Models {
		if ctx.Err() != nil {
			return "", decision, ctx.Err()
		}

		prompt := query
		opts := llm.Options{Thinking: a.thinkingOpt(model, false)}
		if answered {
			prompt = prompts.ChainRefine(query, answer)
			opts = llm.Options{
				Temperature: synthesisReviewTemp,
				Thinking:    a.thinkingOpt(model, true),
			}
		}

		reply, err := a.client.Complete(ctx, model, []llm.Message{{Role: "user", Content: prompt}}, opts)
		if err != nil {
			if ctx.Err() != nil {
				return "", decision, ctx.Err()
			}
			a.router.MarkFailed(model)
			logging.Get(logging.CategoryAgent).Warn("ask rung %s failed: %v", model, err)
			continue
		}
		if reply = strings.TrimSpace(reply); reply != "" {
			answer = reply
			answered = true
		}
	}

	if !answered {
		return "", decision, fmt.Errorf("ask failed on all %d models: %w", len(decision.Models), llm.ErrNoModelAvailable)
	}
	return answer, decision, nil
}
