package router

import (
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
)

// SelectModelsForStep returns the ordered model candidates for one step.
// Pure reasoning always prefers the strongest rung; data gathering runs on
// the fastest rung under simple complexity and is offered the whole ladder
// otherwise (first success wins downstream).
func SelectModelsForStep(step planner.PlanStep, models []string, complexity Complexity) []string {
	if len(models) == 0 {
		return nil
	}
	if step.IsReasoning() {
		return []string{models[len(models)-1]}
	}
	if complexity == Simple {
		return []string{models[0]}
	}
	return append([]string(nil), models...)
}

// OptimizeRouting annotates every non-completed step's PreferredModels in
// place, excluding models that already failed this session. If the
// exclusion empties a step's list the whole ladder minus failed is used;
// if even that is empty the original preference survives, so a session with
// every model failing still records what it wanted to run.
func (r *Router) OptimizeRouting(plan *planner.Plan, models []string, complexity Complexity) {
	r.mu.Lock()
	failed := make(map[string]bool, len(r.failed))
	for m := range r.failed {
		failed[m] = true
	}
	r.mu.Unlock()

	annotated := 0
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Status == planner.StatusCompleted {
			continue
		}

		prefs := SelectModelsForStep(*step, models, complexity)
		picked := withoutFailed(prefs, failed)
		if len(picked) == 0 {
			picked = withoutFailed(models, failed)
		}
		if len(picked) == 0 {
			picked = prefs
		}
		step.PreferredModels = picked
		annotated++
	}

	if len(failed) > 0 {
		logging.Router("optimized routing for %d steps, excluding failed models %v", annotated, r.FailedModels())
	} else {
		logging.RouterDebug("optimized routing for %d steps", annotated)
	}
}

func withoutFailed(models []string, failed map[string]bool) []string {
	var out []string
	for _, m := range models {
		if !failed[m] {
			out = append(out, m)
		}
	}
	return out
}
