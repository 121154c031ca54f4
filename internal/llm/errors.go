package llm

import "errors"

var (
	// ErrModelUnavailable marks a model that failed past the retry budget.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNoModelAvailable means every candidate in the pool failed.
	// Synthesis wraps its degraded facts-only answer with this.
	ErrNoModelAvailable = errors.New("no model available")

	// ErrEmptyCompletion marks a well-formed reply with no content.
	ErrEmptyCompletion = errors.New("empty completion")
)
