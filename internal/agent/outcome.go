package agent

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// StepOutcome is the immutable record one worker hands back for one step.
// Workers never write to session memory; the coordinator folds outcomes in
// sequentially, so concurrent steps cannot interleave partial state.
type StepOutcome struct {
	StepID int
	Status planner.StepStatus

	// Model that served the step; empty when every candidate failed and
	// auto-execution took over.
	Model string

	// HasFinalAnswer marks a final-answer reply. Honoring it is the
	// coordinator's deferral decision, not the worker's.
	HasFinalAnswer bool
	FinalAnswer    string

	// ToolResult is set when a tool ran for this step.
	ToolResult *tools.ToolResult

	// Facts are durable discoveries: store_fact blocks plus extraction from
	// tool output. They reach both session and persistent memory.
	Facts []string

	// ErrorFact explains a failure to the replanner; session only.
	ErrorFact string

	// ErrorText lands in the session error log.
	ErrorText string

	// History entries to append, in order.
	History []memory.HistoryEntry

	// Discovery marks listing/search steps for the replan trigger.
	Discovery bool
}

// discoveryWords flag step descriptions that enumerate or search; their
// results tend to invalidate whatever was planned after them.
var discoveryWords = []string{"list", "find", "search", "enumerate", "scan", "discover", "locate"}

// isDiscoveryStep reports whether the step is discovery-typed: a directory
// listing, or a shell step whose description reads like listing/searching.
func isDiscoveryStep(step planner.PlanStep) bool {
	switch step.Tool {
	case "list_dir":
		return true
	case "shell":
		desc := strings.ToLower(step.Description)
		for _, w := range discoveryWords {
			if strings.Contains(desc, w) {
				return true
			}
		}
	}
	return false
}

// executeGroup runs one dependency-satisfied group and returns outcomes in
// group order. A single step runs inline; larger groups run on an errgroup
// pool capped at the configured worker count. A worker panic becomes a
// failed outcome for that step and leaves its siblings running.
func (r *run) executeGroup(ctx context.Context, group []planner.PlanStep) []StepOutcome {
	for _, step := range group {
		r.session.UpdateStepStatus(step.ID, planner.StatusInProgress)
		r.agent.observer.OnStep(StepUpdate{
			StepID:      step.ID,
			Description: step.Description,
			Status:      planner.StatusInProgress,
			Detail:      step.Tool,
		})
	}

	// One snapshot serves every worker; they only read it.
	snapshot := r.session.Plan()
	outcomes := make([]StepOutcome, len(group))

	if len(group) == 1 {
		outcomes[0] = r.runStepSafely(ctx, group[0], snapshot)
		return outcomes
	}

	workers := r.agent.groupWorkers
	if len(group) < workers {
		workers = len(group)
	}
	logging.Agent("executing group of %d steps on %d workers", len(group), workers)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, step := range group {
		eg.Go(func() error {
			outcomes[i] = r.runStepSafely(egCtx, step, snapshot)
			return nil
		})
	}
	// Workers always return nil; failures ride inside the outcomes.
	_ = eg.Wait()
	return outcomes
}

// runStepSafely converts a worker panic into a failed outcome so one bad
// step cannot take down its group.
func (r *run) runStepSafely(ctx context.Context, step planner.PlanStep, plan *planner.Plan) (out StepOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryAgent).Error("step %d panicked: %v", step.ID, rec)
			out = StepOutcome{
				StepID:    step.ID,
				Status:    planner.StatusFailed,
				ErrorFact: fmt.Sprintf("Step %d failed: %v", step.ID, rec),
				ErrorText: fmt.Sprintf("step %d panicked: %v", step.ID, rec),
			}
		}
	}()
	return r.executeStep(ctx, step, plan)
}

// applyOutcomes folds worker outcomes into session memory in group order.
// This is the only place step results touch shared state.
func (r *run) applyOutcomes(outcomes []StepOutcome) {
	for _, out := range outcomes {
		r.applyOutcome(out)
	}
}

func (r *run) applyOutcome(out StepOutcome) {
	for _, h := range out.History {
		r.session.AddHistory(h.Role, h.Type, h.Content)
	}
	if out.ToolResult != nil {
		r.session.AddToolResult(out.StepID, *out.ToolResult)
	}

	var fresh []string
	for _, f := range out.Facts {
		if r.session.AddFact(f) {
			fresh = append(fresh, f)
		}
	}
	if len(fresh) > 0 && r.agent.persist != nil {
		if _, err := r.agent.persist.StoreFacts(fresh); err != nil {
			logging.Get(logging.CategoryMemory).Warn("persisting %d facts failed: %v", len(fresh), err)
		}
	}
	if out.ErrorFact != "" {
		r.session.AddFact(out.ErrorFact)
	}
	if out.ErrorText != "" {
		r.session.AddError(out.ErrorText)
	}

	r.session.UpdateStepStatus(out.StepID, out.Status)

	detail := out.Model
	if out.Status == planner.StatusFailed {
		detail = out.ErrorText
	}
	r.agent.observer.OnStep(StepUpdate{StepID: out.StepID, Status: out.Status, Detail: detail})

	if out.HasFinalAnswer && !r.answered {
		if r.deferAnswer(out.StepID) {
			logging.Agent("final answer from step %d deferred: pending tool steps remain", out.StepID)
		} else {
			r.answered = true
			r.answer = out.FinalAnswer
			logging.Agent("final answer accepted from step %d", out.StepID)
		}
	}
}

// deferAnswer reports whether a final answer must wait: true while any other
// pending step still has a concrete tool assigned.
func (r *run) deferAnswer(stepID int) bool {
	for _, s := range r.plan.Steps {
		if s.ID == stepID || s.Status != planner.StatusPending {
			continue
		}
		if !s.IsReasoning() {
			return true
		}
	}
	return false
}
