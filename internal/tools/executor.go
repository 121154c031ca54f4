package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// fallbackRule describes one substitution: the replacement tool and how to
// translate the original arguments for it.
type fallbackRule struct {
	target  string
	mapArgs func(map[string]any) map[string]any
}

func passthroughArgs(args map[string]any) map[string]any { return args }

// defaultFallbacks is the static substitution table. Each entry is tried
// once, in order, after the primary's retry budget is exhausted.
var defaultFallbacks = map[string][]fallbackRule{
	"web_search": {
		{target: "web_search_news", mapArgs: passthroughArgs},
	},
	"web_fetch": {
		{target: "browser_fetch", mapArgs: passthroughArgs},
	},
	"read_file": {
		{target: "shell", mapArgs: func(args map[string]any) map[string]any {
			path, _ := args["path"].(string)
			return map[string]any{"command": "cat " + shellQuote(path)}
		}},
	},
	"list_dir": {
		{target: "shell", mapArgs: func(args map[string]any) map[string]any {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			return map[string]any{"command": "ls -la " + shellQuote(path)}
		}},
	},
}

// shellQuote single-quotes a path for sh -c interpolation.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Executor runs tools with retry budgets and fallback substitution.
// Failures come back inside the ToolResult, not as a separate error, so
// every outcome travels the same path into memory and the archive.
type Executor struct {
	registry   *Registry
	fallbacks  map[string][]fallbackRule
	retryDelay time.Duration
	maxOutput  int
}

// ExecutorOptions tunes an Executor.
type ExecutorOptions struct {
	// RetryDelay is the fixed inter-attempt pause for tools that don't
	// declare their own. Defaults to 2s.
	RetryDelay time.Duration

	// MaxOutputBytes truncates tool output. Defaults to 50000.
	MaxOutputBytes int
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, opts ExecutorOptions) *Executor {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.MaxOutputBytes == 0 {
		opts.MaxOutputBytes = 50000
	}
	return &Executor{
		registry:   registry,
		fallbacks:  defaultFallbacks,
		retryDelay: opts.RetryDelay,
		maxOutput:  opts.MaxOutputBytes,
	}
}

// Registry returns the underlying registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Run executes a tool with retries, then fallbacks. The primary gets its
// full MaxRetries budget; each fallback is tried exactly once. A fallback
// success rewrites ToolName to "original>fallback".
func (e *Executor) Run(ctx context.Context, name string, args map[string]any) ToolResult {
	start := time.Now()
	attempts := 0

	tool := e.registry.Get(name)
	if tool == nil {
		logging.Get(logging.CategoryTools).Warn("unknown tool requested: %s", name)
		return ToolResult{
			ToolName:   name,
			Args:       args,
			Success:    false,
			Output:     fmt.Sprintf("tool not found: %s", name),
			ErrorKind:  "tool_not_found",
			Attempts:   0,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	last := e.runWithRetry(ctx, tool, args, &attempts)
	if last.Success {
		return e.finish(last, start, attempts)
	}
	if last.ErrorKind == "blocked_command" || last.ErrorKind == "missing_required_arg" {
		// Hard gates: no fallback can make a rejected invocation safe.
		return e.finish(last, start, attempts)
	}

	for _, rule := range e.fallbacks[name] {
		fb := e.registry.Get(rule.target)
		if fb == nil {
			continue
		}
		fbArgs := rule.mapArgs(args)
		logging.Tools("falling back %s -> %s", name, rule.target)

		attempts++
		result := e.attempt(ctx, fb, fbArgs)
		if result.Success {
			result.ToolName = name + ">" + rule.target
			return e.finish(result, start, attempts)
		}
		// A failed fallback keeps its own name: the rewrite marks a
		// substitution that satisfied the call, not one that was tried.
		last = result
	}

	if last.ErrorKind == "" {
		// Defensive: exhausting everything without a concrete failure
		// should not happen; tag it so the gap is visible downstream.
		last.ErrorKind = "all_retries_exhausted"
	}
	return e.finish(last, start, attempts)
}

// runWithRetry drives the primary tool through its attempt budget.
func (e *Executor) runWithRetry(ctx context.Context, tool *Tool, args map[string]any, attempts *int) ToolResult {
	if err := e.registry.ValidateArgs(tool, args); err != nil {
		return ToolResult{
			ToolName:  tool.Name,
			Args:      args,
			Success:   false,
			Output:    err.Error(),
			ErrorKind: "missing_required_arg",
		}
	}

	maxAttempts := tool.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := tool.RetryDelay
	if delay == 0 {
		delay = e.retryDelay
	}

	var last ToolResult
	for i := 1; i <= maxAttempts; i++ {
		if i > 1 {
			logging.ToolsDebug("%s: attempt %d/%d after %v", tool.Name, i, maxAttempts, delay)
			select {
			case <-ctx.Done():
				last.Output = ctx.Err().Error()
				last.ErrorKind = "timeout"
				return last
			case <-time.After(delay):
			}
		}

		*attempts++
		last = e.attempt(ctx, tool, args)
		if last.Success {
			return last
		}
		if last.ErrorKind == "blocked_command" {
			return last
		}
	}
	return last
}

// attempt performs a single execution and classifies the failure.
func (e *Executor) attempt(ctx context.Context, tool *Tool, args map[string]any) ToolResult {
	timer := logging.StartTimer(logging.CategoryTools, tool.Name)
	output, err := tool.Execute(ctx, args)
	elapsed := timer.StopWithThreshold(30 * time.Second)

	result := ToolResult{
		ToolName:   tool.Name,
		Args:       args,
		DurationMs: elapsed.Milliseconds(),
	}

	if err != nil {
		result.Success = false
		result.Output = err.Error()
		result.ErrorKind = classifyToolError(err)
		logging.Tools("%s failed (%s): %v", tool.Name, result.ErrorKind, err)
		return result
	}

	result.Success = true
	result.Output = output
	return result
}

// finish stamps totals and enforces the output bound.
func (e *Executor) finish(result ToolResult, start time.Time, attempts int) ToolResult {
	result.Attempts = attempts
	result.DurationMs = time.Since(start).Milliseconds()
	if len(result.Output) > e.maxOutput {
		result.Output = result.Output[:e.maxOutput] + "\n...[truncated]"
	}
	return result
}

// classifyToolError maps an execution error to a machine tag.
func classifyToolError(err error) string {
	switch {
	case errors.Is(err, ErrBlockedCommand):
		return "blocked_command"
	case errors.Is(err, ErrMissingRequiredArg):
		return "missing_required_arg"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "execution_failed"
	}
}
