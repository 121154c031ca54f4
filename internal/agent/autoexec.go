package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
)

// autoExecute handles total model unavailability for one step: a tool step
// gets a deterministic invocation synthesized from the plan text, a
// reasoning step completes as a no-op since nothing can reason anyway.
func (r *run) autoExecute(ctx context.Context, step planner.PlanStep, out StepOutcome) StepOutcome {
	if step.IsReasoning() {
		logging.Agent("step %d: no model for reasoning step, completing as a no-op", step.ID)
		out.Status = planner.StatusCompleted
		return out
	}

	name, args, ok := synthesizeCall(step)
	if !ok {
		out.Status = planner.StatusFailed
		out.ErrorFact = fmt.Sprintf("Step %d failed: no model available and no %s arguments could be derived from %q",
			step.ID, step.Tool, step.Description)
		out.ErrorText = out.ErrorFact
		return out
	}

	logging.Agent("step %d: auto-executing %s without model mediation", step.ID, name)
	r.runTool(ctx, step, name, args, &out)
	return out
}

// synthesizeCall derives a tool invocation from the step alone: plan-supplied
// args are used as-is, otherwise the description is mined for quoted
// commands, path tokens, URLs, or canned introspection triggers.
func synthesizeCall(step planner.PlanStep) (string, map[string]any, bool) {
	if len(step.Args) > 0 {
		return step.Tool, step.Args, true
	}

	desc := step.Description
	switch step.Tool {
	case "shell":
		if cmd, ok := shellCommandFor(desc); ok {
			return "shell", map[string]any{"command": cmd}, true
		}
	case "read_file":
		if path, ok := firstPathToken(desc); ok {
			return "read_file", map[string]any{"path": path}, true
		}
	case "list_dir":
		path, ok := firstPathToken(desc)
		if !ok {
			path = "."
		}
		return "list_dir", map[string]any{"path": path}, true
	case "web_search", "web_search_news":
		query := strings.TrimSpace(desc)
		if q, ok := quotedText(desc); ok {
			query = q
		}
		if query != "" {
			return step.Tool, map[string]any{"query": query}, true
		}
	case "web_fetch", "browser_fetch":
		if url, ok := firstURL(desc); ok {
			return step.Tool, map[string]any{"url": url}, true
		}
	}
	return "", nil, false
}

// cannedCommands maps description keywords to host-introspection commands.
// First match wins; keywords are matched against the lowercased description.
var cannedCommands = []struct {
	keywords []string
	command  string
}{
	{[]string{"operating system", "os version", "os release", "os-release", "distro", "distribution", "which os"}, "cat /etc/os-release"},
	{[]string{"kernel"}, "uname -a"},
	{[]string{"package"}, "dpkg -l 2>/dev/null | head -30 || rpm -qa 2>/dev/null | head -30"},
	{[]string{"process"}, "ps aux | head -20"},
	{[]string{"disk", "filesystem", "storage"}, "df -h"},
	{[]string{"network", "interface", "ip address"}, "ip addr"},
	{[]string{"memory", "ram"}, "free -h"},
}

// listingWords trigger the ls synthesis when the description carries a path.
var listingWords = []string{"list", "contents", "enumerate", "find", "files in"}

// shellCommandFor synthesizes a shell command from a step description, in
// fixed precedence: a quoted command verbatim, then a listing over a path
// token, then the canned introspection table.
func shellCommandFor(desc string) (string, bool) {
	if q, ok := quotedText(desc); ok && looksLikeCommand(q) {
		return q, true
	}

	lower := strings.ToLower(desc)
	for _, w := range listingWords {
		if strings.Contains(lower, w) {
			if path, ok := firstPathToken(desc); ok {
				return "ls -la " + path, true
			}
			break
		}
	}

	for _, c := range cannedCommands {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.command, true
			}
		}
	}
	return "", false
}

// looksLikeCommand separates quoted commands from quoted arguments: a bare
// path token is an argument, anything multi-word or binary-shaped is a
// command.
func looksLikeCommand(q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return false
	}
	if strings.ContainsAny(q, " |") {
		return true
	}
	return !strings.HasPrefix(q, "/") && !strings.HasPrefix(q, "~") && !strings.HasPrefix(q, ".")
}

var (
	// quotedRe matches `...`, "..." and '...' spans, shortest first.
	quotedRe = regexp.MustCompile("`([^`]+)`|\"([^\"]+)\"|'([^']+)'")

	// pathRe matches path tokens at a token boundary: /abs, ~/home, ./rel.
	pathRe = regexp.MustCompile(`(?:^|[\s"'\x60(])((?:~|\.{1,2})?/[\w.@%+\-][\w.@%+\-/]*)`)

	urlRe = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
)

// quotedText returns the first quoted span in s.
func quotedText(s string) (string, bool) {
	m := quotedRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if group != "" {
			return strings.TrimSpace(group), true
		}
	}
	return "", false
}

// firstPathToken returns the first path-like token in s, trailing
// punctuation stripped.
func firstPathToken(s string) (string, bool) {
	m := pathRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	path := strings.TrimRight(m[1], ".,;:!?")
	if path == "" || path == "/" {
		return "", false
	}
	return path, true
}

// firstURL returns the first http(s) URL in s.
func firstURL(s string) (string, bool) {
	m := urlRe.FindString(s)
	if m == "" {
		return "", false
	}
	return strings.TrimRight(m, ".,;:!?"), true
}
