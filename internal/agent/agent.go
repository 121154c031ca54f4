// Package agent runs the autonomous loop: route the goal, decompose it into
// a plan, execute ready step groups (in parallel where the plan allows),
// replan when evidence demands it, and synthesize the final answer through
// progressive refinement across the model ladder. One Agent serves one goal
// at a time per Run call; the coordinator goroutine owns all mutable state
// and workers communicate only through returned StepOutcome values.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/config"
	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
	"github.com/midu16/ollama-chain-sub000/internal/router"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

const (
	defaultMaxIterations = 15
	defaultMaxReplans    = 2
	defaultGroupWorkers  = 3

	recallSessions = 3
	recallFacts    = 8

	observationResults = 5
	observationSnippet = 400
)

// Options configures an Agent.
type Options struct {
	// Models is the ladder in fastest-to-strongest order. Required.
	Models []config.ModelConfig

	// MaxIterations caps execute/replan cycles per run. Defaults to 15.
	MaxIterations int

	// MaxReplans caps speculative plan revisions per run; revisions
	// forced by failed steps bypass the cap and run until the iteration
	// limit. 0 means the default of 2; negative disables replanning
	// entirely.
	MaxReplans int

	// GroupWorkers caps concurrent steps within a parallel group.
	// Defaults to 3; a group smaller than the cap uses one worker per
	// step.
	GroupWorkers int

	// ExecuteAllReadyGroups executes every ready group in an iteration
	// instead of only the first. Replanning then only sees the combined
	// outcome, so plans drift further before correction.
	ExecuteAllReadyGroups bool

	// WebSearch is the session default for search tools. The router
	// still suppresses search per query under simple complexity.
	WebSearch bool

	// Persistent carries facts and session summaries across runs.
	// Optional.
	Persistent *memory.Persistent

	// Observer receives phase and step updates. Optional.
	Observer Observer

	// Archiver receives the completed session record. Optional.
	Archiver Archiver
}

// Agent drives goals to answers.
type Agent struct {
	client   llm.Client
	registry *tools.Registry
	executor *tools.Executor
	router   *router.Router
	planner  *planner.Planner
	persist  *memory.Persistent

	models   []config.ModelConfig
	thinking map[string]bool

	maxIterations int
	maxReplans    int
	groupWorkers  int
	allGroups     bool
	webSearch     bool

	observer Observer
	archiver Archiver
}

// New assembles an Agent from its collaborators.
func New(client llm.Client, registry *tools.Registry, executor *tools.Executor, rt *router.Router, pl *planner.Planner, opts Options) *Agent {
	a := &Agent{
		client:        client,
		registry:      registry,
		executor:      executor,
		router:        rt,
		planner:       pl,
		persist:       opts.Persistent,
		models:        opts.Models,
		thinking:      make(map[string]bool, len(opts.Models)),
		maxIterations: opts.MaxIterations,
		maxReplans:    opts.MaxReplans,
		groupWorkers:  opts.GroupWorkers,
		allGroups:     opts.ExecuteAllReadyGroups,
		webSearch:     opts.WebSearch,
		observer:      opts.Observer,
		archiver:      opts.Archiver,
	}
	if a.maxIterations <= 0 {
		a.maxIterations = defaultMaxIterations
	}
	switch {
	case a.maxReplans == 0:
		a.maxReplans = defaultMaxReplans
	case a.maxReplans < 0:
		a.maxReplans = 0
	}
	if a.groupWorkers <= 0 {
		a.groupWorkers = defaultGroupWorkers
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	for _, m := range opts.Models {
		a.thinking[m.Name] = m.SupportsThinking
	}
	return a
}

// Result is the outcome of one Run.
type Result struct {
	SessionID  string
	Goal       string
	Answer     string
	Complexity router.Complexity
	Strategy   router.Strategy
	Iterations int
	Replans    int

	StepsCompleted int
	StepsFailed    int

	// Facts the run established, session and persisted alike.
	Facts []string

	// Plan is the final plan with step statuses.
	Plan *planner.Plan

	// Degraded marks an answer assembled without model synthesis.
	Degraded bool

	Duration time.Duration
}

// run is the mutable state of one goal. The coordinator goroutine owns it;
// workers receive a plan snapshot and read the session through its own
// locking, returning every mutation inside a StepOutcome.
type run struct {
	agent     *Agent
	session   *memory.Session
	plan      *planner.Plan
	decision  router.Decision
	catalogue string

	iterations        int
	replans           int
	factsAtLastReplan int

	answer   string
	answered bool
}

// Run executes one goal end to end and returns the result. When synthesis
// cannot reach any model the result is still returned, degraded to the raw
// facts ledger, alongside an error wrapping llm.ErrNoModelAvailable.
func (a *Agent) Run(ctx context.Context, goal string) (*Result, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, fmt.Errorf("goal is empty")
	}

	r := &run{
		agent:     a,
		session:   memory.NewSession(goal),
		catalogue: a.registry.Catalogue(),
	}
	logging.Session("session %s started: %s", r.session.ID(), clip(goal, 120))

	a.observer.OnPhase(PhasePlanning, "routing and decomposing the goal")
	r.decision = a.router.Route(ctx, goal, a.modelNames(), a.webSearch)
	logging.Agent("routed %s complexity onto %d models (%s)",
		r.decision.Complexity, len(r.decision.Models), r.decision.Strategy)

	plan, err := a.planner.Decompose(ctx, goal, a.recallContext(goal), string(r.decision.Complexity))
	if err != nil {
		return nil, fmt.Errorf("decomposing goal: %w", err)
	}
	a.router.OptimizeRouting(plan, r.decision.Models, r.decision.Complexity)
	r.session.SetPlan(plan)
	r.plan = plan

	a.observer.OnPhase(PhaseExecuting, fmt.Sprintf("%d steps planned", len(plan.Steps)))

	for !r.answered && r.plan.HasPending() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.iterations >= a.maxIterations {
			logging.Agent("iteration cap %d reached with steps still pending", a.maxIterations)
			break
		}
		r.iterations++

		groups := planner.DetectParallelGroups(r.plan)
		if len(groups) == 0 {
			logging.Agent("no executable steps remain; pending steps are blocked")
			break
		}
		if !a.allGroups {
			groups = groups[:1]
		}

		var executed []StepOutcome
		for _, group := range groups {
			outcomes := r.executeGroup(ctx, group)
			r.applyOutcomes(outcomes)
			executed = append(executed, outcomes...)
			if r.answered {
				break
			}
		}
		if !r.answered {
			r.maybeReplan(ctx, executed)
		}
	}

	answer := r.answer
	degraded := false
	var synthErr error
	if !r.answered {
		a.observer.OnPhase(PhaseSynthesizing, string(r.decision.Strategy))
		answer, degraded, synthErr = r.synthesize(ctx)
		if synthErr != nil && !degraded {
			return nil, synthErr
		}
	}
	return a.finalize(ctx, r, answer, degraded), synthErr
}

// maybeReplan revises the plan when the evidence demands it. Triggers in
// priority order: a completed discovery step that surfaced new facts, the
// planner's own judgement over the new facts, any failed step. At most one
// revision per iteration. The budget only limits the speculative triggers;
// a failed step always forces a revision (the iteration cap bounds it), so
// exhausting the budget never strands a broken plan.
func (r *run) maybeReplan(ctx context.Context, executed []StepOutcome) {
	if r.agent.maxReplans == 0 {
		return
	}
	budgetLeft := r.replans < r.agent.maxReplans
	fresh := r.session.Facts()[r.factsAtLastReplan:]
	var reason string
	switch {
	case budgetLeft && len(fresh) > 0 && anyDiscovery(executed):
		reason = "discovery step surfaced new facts"
	case budgetLeft && len(fresh) > 0 && r.agent.planner.ShouldReplan(ctx, r.session.Goal(), r.plan, fresh):
		reason = "new facts invalidate the remaining plan"
	case hasFailedSteps(r.plan):
		reason = "failed steps need a revised plan"
	}
	if reason == "" {
		if !budgetLeft {
			logging.AgentDebug("replan budget %d exhausted", r.agent.maxReplans)
		}
		return
	}

	r.agent.observer.OnPhase(PhaseReplanning, reason)
	logging.Agent("replanning (%d/%d): %s", r.replans+1, r.agent.maxReplans, reason)

	revised, err := r.agent.planner.Replan(ctx, r.session.Goal(), r.plan, r.observations(fresh))
	if err != nil {
		logging.Get(logging.CategoryAgent).Warn("replan failed, keeping the current plan: %v", err)
		return
	}
	r.agent.router.OptimizeRouting(revised, r.decision.Models, r.decision.Complexity)
	r.session.SetPlan(revised)
	r.plan = revised
	r.replans++
	r.factsAtLastReplan = r.session.FactCount()
	r.agent.observer.OnPhase(PhaseExecuting, "resuming with the revised plan")
}

// observations renders what changed since the last plan for the replanner:
// fresh facts, recent tool results, accumulated errors.
func (r *run) observations(fresh []string) string {
	var sb strings.Builder
	if len(fresh) > 0 {
		sb.WriteString("New facts:\n")
		for _, f := range fresh {
			sb.WriteString("- " + f + "\n")
		}
	}
	records := r.session.ToolResults()
	if len(records) > observationResults {
		records = records[len(records)-observationResults:]
	}
	if len(records) > 0 {
		sb.WriteString("Recent tool results:\n")
		for _, rec := range records {
			status := "ok"
			if !rec.Success {
				status = rec.ErrorKind
			}
			fmt.Fprintf(&sb, "- step %d, %s (%s): %s\n",
				rec.StepID, rec.ToolName, status, clip(rec.Output, observationSnippet))
		}
	}
	if errs := r.session.Errors(); len(errs) > 0 {
		sb.WriteString("Errors so far:\n")
		for _, e := range errs {
			sb.WriteString("- " + e + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// finalize assembles the Result, records the session in persistent memory
// and the archive, and clears the session.
func (a *Agent) finalize(ctx context.Context, r *run, answer string, degraded bool) *Result {
	plan := r.session.Plan()
	completed, failed := 0, 0
	if plan != nil {
		for _, s := range plan.Steps {
			switch s.Status {
			case planner.StatusCompleted:
				completed++
			case planner.StatusFailed:
				failed++
			}
		}
	}

	res := &Result{
		SessionID:      r.session.ID(),
		Goal:           r.session.Goal(),
		Answer:         answer,
		Complexity:     r.decision.Complexity,
		Strategy:       r.decision.Strategy,
		Iterations:     r.iterations,
		Replans:        r.replans,
		StepsCompleted: completed,
		StepsFailed:    failed,
		Facts:          r.session.Facts(),
		Plan:           plan,
		Degraded:       degraded,
		Duration:       time.Since(r.session.StartedAt()),
	}

	summary := r.session.Summary()
	if a.persist != nil {
		if err := a.persist.RecordSession(res.SessionID, res.Goal, summary); err != nil {
			logging.Get(logging.CategoryMemory).Warn("recording session summary failed: %v", err)
		}
	}
	if a.archiver != nil {
		rec := SessionRecord{
			SessionID:      res.SessionID,
			Goal:           res.Goal,
			Answer:         answer,
			Summary:        summary,
			Complexity:     string(res.Complexity),
			Iterations:     res.Iterations,
			Replans:        res.Replans,
			StepsCompleted: completed,
			StepsFailed:    failed,
			Degraded:       degraded,
			StartedAt:      r.session.StartedAt(),
			FinishedAt:     time.Now(),
			Facts:          res.Facts,
			ToolCalls:      r.session.ToolResults(),
		}
		if err := a.archiver.ArchiveSession(ctx, rec); err != nil {
			logging.Get(logging.CategoryMemory).Warn("archiving session failed: %v", err)
		}
	}

	logging.Session("session %s done: %d iterations, %d replans, %d completed, %d failed, %s",
		res.SessionID, res.Iterations, res.Replans, completed, failed,
		res.Duration.Round(time.Millisecond))
	a.observer.OnPhase(PhaseDone, fmt.Sprintf("%d steps completed, %d failed", completed, failed))
	r.session.Clear()
	return res
}

// recallContext assembles the cross-session block fed to the planner:
// recent session summaries plus the persistent facts closest to the goal.
func (a *Agent) recallContext(goal string) string {
	if a.persist == nil {
		return ""
	}
	var sb strings.Builder
	if sessions := a.persist.RecentSessions(recallSessions); len(sessions) > 0 {
		sb.WriteString("Recent sessions:\n")
		for _, s := range sessions {
			fmt.Fprintf(&sb, "- %s -> %s\n", s.Goal, s.Summary)
		}
	}
	if facts := memory.RankFacts(a.persist.Facts(), goal, recallFacts); len(facts) > 0 {
		sb.WriteString("Known facts:\n")
		for _, f := range facts {
			sb.WriteString("- " + f + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// thinkingOpt builds the Thinking option for a model: nil when the model
// cannot toggle extended reasoning, the requested state otherwise.
func (a *Agent) thinkingOpt(model string, on bool) *bool {
	if !a.thinking[model] {
		return nil
	}
	return llm.Thinking(on)
}

func (a *Agent) modelNames() []string {
	names := make([]string, len(a.models))
	for i, m := range a.models {
		names[i] = m.Name
	}
	return names
}

func anyDiscovery(outcomes []StepOutcome) bool {
	for _, o := range outcomes {
		if o.Discovery && o.Status == planner.StatusCompleted {
			return true
		}
	}
	return false
}

func hasFailedSteps(p *planner.Plan) bool {
	for _, s := range p.Steps {
		if s.Status == planner.StatusFailed {
			return true
		}
	}
	return false
}
