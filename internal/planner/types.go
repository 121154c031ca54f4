// Package planner turns a natural-language goal into an executable plan:
// decomposition and replanning via a fast model, normalization of the
// model's JSON into typed steps, structural validation, and dependency-based
// parallel grouping.
package planner

import (
	"fmt"
	"sort"
	"strings"
)

// StepStatus is the lifecycle state of one plan step. Transitions run
// pending → in_progress → {completed, failed}; terminal states never
// transition back. A failed step is superseded by a new step from
// replanning, never re-executed.
type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusFailed     StepStatus = "failed"
)

// ValidStatuses lists every accepted step status.
var ValidStatuses = []StepStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}

// IsTerminal reports whether the status allows no further transitions.
func (s StepStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ToolNone marks a pure-reasoning step with no tool invocation.
const ToolNone = "none"

// PlanStep is one unit of work. Steps enter the system as untrusted model
// JSON and are normalized exactly once, at the parse boundary; after that
// every field can be trusted.
type PlanStep struct {
	// ID is a positive integer, unique within the plan. Replanning assigns
	// fresh ids above the current maximum, never reuses one.
	ID int `json:"id"`

	// Description is the free-text instruction for the step.
	Description string `json:"description"`

	// Tool names the tool to invoke, or ToolNone for reasoning steps.
	Tool string `json:"tool"`

	// Args are the tool arguments, when the model supplied them.
	Args map[string]any `json:"args,omitempty"`

	// DependsOn lists step ids that must be completed first.
	DependsOn []int `json:"depends_on"`

	// Status tracks the step lifecycle.
	Status StepStatus `json:"status"`

	// PreferredModels is the router's ordered model assignment. Advisory
	// only; not part of the plan's persisted identity.
	PreferredModels []string `json:"preferred_models,omitempty"`
}

// IsReasoning reports whether the step runs without a tool.
func (s *PlanStep) IsReasoning() bool {
	return s.Tool == "" || s.Tool == ToolNone
}

// Plan is an ordered list of steps.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// Step returns the step with the given id, or nil.
func (p *Plan) Step(id int) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// PendingSteps returns all steps still waiting to run.
func (p *Plan) PendingSteps() []PlanStep {
	var out []PlanStep
	for _, s := range p.Steps {
		if s.Status == StatusPending {
			out = append(out, s)
		}
	}
	return out
}

// HasPending reports whether any step is still pending.
func (p *Plan) HasPending() bool {
	for _, s := range p.Steps {
		if s.Status == StatusPending {
			return true
		}
	}
	return false
}

// MaxID returns the highest step id in the plan, 0 for an empty plan.
func (p *Plan) MaxID() int {
	max := 0
	for _, s := range p.Steps {
		if s.ID > max {
			max = s.ID
		}
	}
	return max
}

// CompletedIDs returns the ids of completed steps, sorted.
func (p *Plan) CompletedIDs() []int {
	var out []int
	for _, s := range p.Steps {
		if s.Status == StatusCompleted {
			out = append(out, s.ID)
		}
	}
	sort.Ints(out)
	return out
}

// DependenciesSatisfied reports whether every dependency of the step is
// completed in this plan.
func (p *Plan) DependenciesSatisfied(step PlanStep) bool {
	for _, dep := range step.DependsOn {
		ds := p.Step(dep)
		if ds == nil || ds.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Progress renders a compact status line per step, used in prompts and logs.
func (p *Plan) Progress() string {
	var sb strings.Builder
	for _, s := range p.Steps {
		tool := s.Tool
		if tool == "" {
			tool = ToolNone
		}
		sb.WriteString(fmt.Sprintf("[%s] step %d: %s (tool: %s)\n", s.Status, s.ID, s.Description, tool))
	}
	return strings.TrimSpace(sb.String())
}

// Clone returns a deep copy of the plan. Workers receive copies so the
// coordinator's plan is only ever mutated sequentially.
func (p *Plan) Clone() *Plan {
	out := &Plan{Steps: make([]PlanStep, len(p.Steps))}
	copy(out.Steps, p.Steps)
	for i := range out.Steps {
		if p.Steps[i].DependsOn != nil {
			out.Steps[i].DependsOn = append([]int(nil), p.Steps[i].DependsOn...)
		}
		if p.Steps[i].PreferredModels != nil {
			out.Steps[i].PreferredModels = append([]string(nil), p.Steps[i].PreferredModels...)
		}
		if p.Steps[i].Args != nil {
			args := make(map[string]any, len(p.Steps[i].Args))
			for k, v := range p.Steps[i].Args {
				args[k] = v
			}
			out.Steps[i].Args = args
		}
	}
	return out
}
