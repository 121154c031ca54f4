// Package tools provides the tool registry and the resilience layer that
// executes tools with per-tool retry budgets and static fallback chains.
//
// Tools are plain values: a name, an argument schema for the model-facing
// catalogue, and an execute function. Registries are built explicitly and
// passed to whoever needs them; there is no package-level registry.
package tools

import (
	"context"
	"time"
)

// Category classifies tools for catalogue grouping and CLI listing.
type Category string

const (
	// CategorySystem covers shell execution and host introspection.
	CategorySystem Category = "system"

	// CategoryFiles covers filesystem read/write/list operations.
	CategoryFiles Category = "files"

	// CategoryNetwork covers web search and page fetching.
	CategoryNetwork Category = "network"

	// CategoryAnalysis covers evaluators and traffic/cluster analyzers.
	CategoryAnalysis Category = "analysis"
)

// Property describes a single parameter for the model-facing catalogue.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Schema defines a tool's expected arguments.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one invocable tool.
type Tool struct {
	// Name is the unique identifier the model calls the tool by.
	Name string

	// Description is one line, written for the model-facing catalogue.
	Description string

	// Category groups the tool for listings.
	Category Category

	// Execute runs the tool.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema Schema

	// MaxRetries is the total attempt budget: 1 means no retry.
	// Network-bound tools default to 2 via the registry.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts. Tool retries never
	// back off exponentially; that policy belongs to the model-call layer.
	RetryDelay time.Duration
}

// Validate checks the tool definition.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// ToolResult records one tool execution as the loop saw it. It is
// serialized into session memory and the session archive, so failures
// carry text plus a machine tag rather than an error value.
type ToolResult struct {
	// ToolName is the as-executed name; after a fallback substitution it
	// reads "original>fallback".
	ToolName string `json:"tool_name"`

	// Args the tool ran with (post fallback translation).
	Args map[string]any `json:"args,omitempty"`

	Success bool `json:"success"`

	// Output holds tool output on success, error text on failure.
	Output string `json:"output,omitempty"`

	// ErrorKind is a short snake_case token for machine checks:
	// tool_not_found, missing_required_arg, blocked_command, timeout,
	// execution_failed.
	ErrorKind string `json:"error_kind,omitempty"`

	// Attempts counts every execution attempt, primary and fallback.
	Attempts int `json:"attempts"`

	DurationMs int64 `json:"duration_ms"`
}

// IsSuccess reports whether the execution succeeded.
func (r *ToolResult) IsSuccess() bool {
	return r.Success
}
