package planner

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// rawStep is the untyped shape a model emits for one step. Every field is
// optional and every field may carry the wrong JSON type; normalizeSteps
// repairs all of that in one place.
type rawStep map[string]any

// extractJSONArray finds the first parseable JSON array in model output.
// Models wrap arrays in fences, prose, or reasoning; we strip fences and
// then try a decode at every '[' until one succeeds.
func extractJSONArray(raw string) ([]rawStep, bool) {
	text := stripFences(raw)
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var arr []any
		if err := dec.Decode(&arr); err != nil {
			continue
		}
		var steps []rawStep
		for _, el := range arr {
			obj, ok := el.(map[string]any)
			if !ok {
				logging.PlannerDebug("plan array element is not an object, skipping: %v", el)
				continue
			}
			steps = append(steps, obj)
		}
		if len(steps) > 0 {
			return steps, true
		}
	}
	return nil, false
}

// stripFences removes markdown code fences from model output.
func stripFences(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// normalizeSteps converts untrusted raw steps into a Plan. Missing ids are
// assigned sequentially starting at nextID (decompose passes 1, replan the
// current max plus one); duplicate or non-positive ids are treated as
// missing. Missing tool becomes ToolNone, missing depends_on an empty list,
// missing or invalid status pending. knownTools drives the auto-fix pass:
// a tool name the registry does not know is coerced to ToolNone with a
// warning rather than rejecting the step.
func normalizeSteps(raws []rawStep, nextID int, knownTools map[string]bool) *Plan {
	plan := &Plan{Steps: make([]PlanStep, 0, len(raws))}
	seen := make(map[int]bool)

	// First pass: accept explicit valid ids so sequential assignment never
	// collides with them.
	ids := make([]int, len(raws))
	for i, r := range raws {
		id := intField(r, "id")
		if id > 0 && !seen[id] {
			ids[i] = id
			seen[id] = true
		}
	}
	assign := func() int {
		for seen[nextID] {
			nextID++
		}
		seen[nextID] = true
		return nextID
	}

	for i, r := range raws {
		id := ids[i]
		if id == 0 {
			id = assign()
		}

		step := PlanStep{
			ID:          id,
			Description: strings.TrimSpace(stringField(r, "description")),
			Tool:        strings.TrimSpace(stringField(r, "tool")),
			DependsOn:   intListField(r, "depends_on"),
			Status:      StepStatus(stringField(r, "status")),
		}
		if step.Description == "" {
			logging.Planner("step %d has an empty description", step.ID)
			step.Description = "(unspecified step)"
		}
		if step.Tool == "" {
			step.Tool = ToolNone
		}
		if args, ok := r["args"].(map[string]any); ok && len(args) > 0 {
			step.Args = args
		}
		if !validStatus(step.Status) {
			step.Status = StatusPending
		}

		// Auto-fix: unknown tool names degrade to reasoning steps.
		if step.Tool != ToolNone && knownTools != nil && !knownTools[step.Tool] {
			logging.Planner("step %d names unknown tool %q, coercing to %q", step.ID, step.Tool, ToolNone)
			step.Tool = ToolNone
			step.Args = nil
		}

		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

func validStatus(s StepStatus) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// stringField reads a string-typed field, tolerating absence and non-string
// values (anything else reads as empty and falls to the default).
func stringField(r rawStep, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// intField reads an integer field. JSON numbers decode as float64; models
// also emit ids as strings ("3"), which we accept.
func intField(r rawStep, key string) int {
	return intValue(r[key])
}

// intListField reads depends_on, repairing the shapes models actually emit:
// a list of numbers, a list of numeric strings, or a bare number. Anything
// else (objects, prose) is dropped with a warning.
func intListField(r rawStep, key string) []int {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	var out []int
	switch list := v.(type) {
	case []any:
		for _, el := range list {
			if n := intValue(el); n > 0 {
				out = append(out, n)
			}
		}
	case float64:
		if n := int(list); n > 0 {
			logging.Planner("depends_on was a bare number, wrapping: %d", n)
			out = append(out, n)
		}
	default:
		logging.Planner("depends_on has unusable type %T, dropping", v)
		return nil
	}
	sort.Ints(out)
	return dedupInts(out)
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		out := 0
		for _, c := range strings.TrimSpace(n) {
			if c < '0' || c > '9' {
				return 0
			}
			out = out*10 + int(c-'0')
		}
		return out
	}
	return 0
}

func dedupInts(sorted []int) []int {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, n := range sorted[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
