// Package prompts assembles every prompt the orchestrator sends to a model.
// Builders here own the structural contract (which sections exist and in
// what order); callers own the dynamic content. Keeping all templates in one
// package means the response grammar the agent parses and the grammar the
// prompts promise can never drift apart.
package prompts

import (
	"fmt"
	"strings"
)

// Structured response grammar tags. The step prompt promises these to the
// model and the agent's parser scans for them; both sides use these
// constants.
const (
	ToolCallOpen     = "<tool_call>"
	ToolCallClose    = "</tool_call>"
	FinalAnswerOpen  = "<final_answer>"
	FinalAnswerClose = "</final_answer>"
	StoreFactOpen    = "<store_fact>"
	StoreFactClose   = "</store_fact>"
)

// plannerRole is the shared identity preamble for decompose and replan.
const plannerRole = `You are the planning module of ollama-chain, a local-model orchestrator.
You break a user goal into a minimal ordered list of concrete steps. Steps
that gather data name a tool; steps that only reason use tool "none". You
never execute anything yourself and you never invent tool names.`

// planSchema is the JSON contract for decompose and replan responses.
const planSchema = `Return ONLY a JSON array, no markdown fences, no prose. Each element:
{
  "id": <positive integer, unique>,
  "description": "<what this step does, one sentence>",
  "tool": "<a tool name from the catalogue, or \"none\">",
  "args": {<tool arguments, omit if tool is \"none\">},
  "depends_on": [<ids of steps that must complete first, [] if independent>]
}`

// granularityGuidance maps a complexity hint to plan-size guidance. The hint
// changes only this text, never parsing behavior.
func granularityGuidance(hint string) string {
	switch hint {
	case "simple":
		return "The goal is simple. Use 1-3 steps; prefer a single step when one tool call or one reasoning pass suffices."
	case "complex":
		return "The goal is complex. Use 5-10 steps; separate data gathering from analysis and declare depends_on edges so independent steps can run in parallel."
	default:
		return "The goal is of moderate complexity. Use 3-6 focused steps; declare depends_on edges only where a step truly needs another step's output."
	}
}

// Decompose builds the initial planning request. contextBlock carries prior
// session context (may be empty), catalogue the registry's tool listing.
func Decompose(goal, contextBlock, catalogue, complexityHint string) string {
	var sb strings.Builder
	sb.WriteString(plannerRole)
	sb.WriteString("\n\n")
	sb.WriteString(granularityGuidance(complexityHint))
	sb.WriteString("\n\nAvailable tools:\n")
	sb.WriteString(catalogue)
	if contextBlock != "" {
		sb.WriteString("\n\nContext from earlier work:\n")
		sb.WriteString(contextBlock)
	}
	sb.WriteString("\n\nGoal: ")
	sb.WriteString(goal)
	sb.WriteString("\n\n")
	sb.WriteString(planSchema)
	return sb.String()
}

// Replan builds the revision request sent after new information arrives.
// progress is the current plan rendered with statuses, observations the
// recent tool outcomes and facts, nextID the lowest id a new step may use.
func Replan(goal, progress, observations string, nextID int) string {
	var sb strings.Builder
	sb.WriteString(plannerRole)
	sb.WriteString("\n\nThe plan below is already running. Revise it in light of the observations.\n")
	sb.WriteString("Keep completed steps unchanged. Drop pending steps that are no longer useful.\n")
	sb.WriteString(fmt.Sprintf("New steps must use ids starting at %d.\n", nextID))
	sb.WriteString("\nGoal: ")
	sb.WriteString(goal)
	sb.WriteString("\n\nCurrent plan:\n")
	sb.WriteString(progress)
	sb.WriteString("\n\nObservations:\n")
	sb.WriteString(observations)
	sb.WriteString("\n\n")
	sb.WriteString(planSchema)
	return sb.String()
}

// ShouldReplan builds the strict yes/no replanning question. The caller
// treats anything that does not start with "yes" as no.
func ShouldReplan(goal string, facts, pendingSteps []string) string {
	var sb strings.Builder
	sb.WriteString("You judge whether an agent's plan is stale.\n\nGoal: ")
	sb.WriteString(goal)
	sb.WriteString("\n\nNewly discovered facts:\n")
	for _, f := range facts {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRemaining planned steps:\n")
	for _, s := range pendingSteps {
		sb.WriteString("- ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	sb.WriteString("\nDo these facts make any remaining step redundant, wrong, or insufficient?\n")
	sb.WriteString(`Answer with exactly one word: "yes" or "no".`)
	return sb.String()
}

// ClassifyComplexity builds the one-label routing question.
func ClassifyComplexity(query string) string {
	return fmt.Sprintf(`Classify the complexity of the following query for model routing.

Query: %s

Rules:
- "simple": a single factual lookup or one-liner a small model answers directly.
- "moderate": needs a couple of reasoning steps or one round of data gathering.
- "complex": multi-part, open-ended, or needs several tools and synthesis.

Answer with exactly one word: simple, moderate, or complex.`, query)
}

// StepInput carries everything the step-execution prompt needs. All fields
// are pre-rendered text so this package stays import-free of the rest of the
// system.
type StepInput struct {
	Goal          string
	Description   string   // the current step
	Tool          string   // assigned tool name, or "none"
	Catalogue     string   // registry tool listing
	SessionState  string   // structured session context block
	LongTermFacts []string // persistent memory, already ranked
}

// Step builds the sectioned execution prompt: role, tool catalogue, response
// contract, session state, long-term memory. Section order is fixed; parsers
// and tests rely on it.
func Step(in StepInput) string {
	var sb strings.Builder

	sb.WriteString("# ROLE\n")
	sb.WriteString("You are ollama-chain, an autonomous agent executing one step of a plan.\n")
	sb.WriteString("Overall goal: ")
	sb.WriteString(in.Goal)
	sb.WriteString("\nCurrent step: ")
	sb.WriteString(in.Description)
	if in.Tool != "" && in.Tool != "none" {
		sb.WriteString("\nAssigned tool: ")
		sb.WriteString(in.Tool)
	}
	sb.WriteString("\n\n# TOOLS\n")
	sb.WriteString(in.Catalogue)

	sb.WriteString("\n\n# RESPONSE CONTRACT\n")
	sb.WriteString("Respond using exactly this grammar:\n")
	sb.WriteString(fmt.Sprintf("- To run a tool: %s{\"name\": \"tool_name\", \"args\": {...}}%s — at most one per response.\n", ToolCallOpen, ToolCallClose))
	sb.WriteString(fmt.Sprintf("- To answer the overall goal definitively: %syour complete answer%s — at most one, and never together with a tool call.\n", FinalAnswerOpen, FinalAnswerClose))
	sb.WriteString(fmt.Sprintf("- To record a durable fact: %sone concise factual sentence%s — repeatable.\n", StoreFactOpen, StoreFactClose))
	sb.WriteString("- Anything outside these tags is treated as reasoning and has no effect.\n")
	sb.WriteString("Only emit a final answer when the overall goal is fully answered, not just this step.")

	if in.SessionState != "" {
		sb.WriteString("\n\n# SESSION STATE\n")
		sb.WriteString(in.SessionState)
	}
	if len(in.LongTermFacts) > 0 {
		sb.WriteString("\n\n# LONG-TERM MEMORY\n")
		for _, f := range in.LongTermFacts {
			sb.WriteString("- ")
			sb.WriteString(f)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SynthesisDraft asks the first available model for an initial answer from
// the collected evidence. Used without extended reasoning.
func SynthesisDraft(goal, evidence string) string {
	return fmt.Sprintf(`Answer the goal below using only the collected evidence. Be direct and
complete; do not mention the evidence-gathering process.

Goal: %s

Evidence:
%s

Answer:`, goal, evidence)
}

// SynthesisReview asks an intermediate model to correct a draft against the
// evidence. Used with extended reasoning at a lower temperature.
func SynthesisReview(goal, evidence, draft string) string {
	return fmt.Sprintf(`Review the draft answer below against the evidence. Fix factual errors,
fill gaps the evidence supports, and remove claims the evidence does not
support. Return the full corrected answer, nothing else.

Goal: %s

Evidence:
%s

Draft answer:
%s

Corrected answer:`, goal, evidence, draft)
}

// SynthesisFinalize asks the strongest model for the definitive answer.
func SynthesisFinalize(goal, evidence, draft string) string {
	return fmt.Sprintf(`Produce the definitive answer to the goal. Start from the reviewed draft,
verify every claim against the evidence, and polish wording. Return only the
final answer.

Goal: %s

Evidence:
%s

Reviewed draft:
%s

Final answer:`, goal, evidence, draft)
}

// ChainRefine asks the next model up the ladder to improve a previous
// model's answer to a direct question. Unlike the synthesis prompts it is
// not evidence-bound; the question itself is the only ground truth.
func ChainRefine(query, answer string) string {
	return fmt.Sprintf(`A smaller model answered the question below. Improve the answer: correct
mistakes, add what is missing, cut padding. Return only the improved answer.

Question: %s

Previous answer:
%s

Improved answer:`, query, answer)
}

// FactsOnlyAnswer renders the degraded answer used when no model is
// reachable for synthesis: the facts ledger, unembellished.
func FactsOnlyAnswer(goal string, facts []string) string {
	if len(facts) == 0 {
		return fmt.Sprintf("No model was reachable and no facts were collected for: %s", goal)
	}
	var sb strings.Builder
	sb.WriteString("No model was reachable for synthesis. Facts collected while working on the goal:\n")
	for _, f := range facts {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
