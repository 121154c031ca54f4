// Package router decides which models see which work. It classifies query
// complexity (lexical scoring, or one cheap model call with the lexical
// scorer as fallback), maps complexity to a routing strategy over the model
// ladder, and annotates plan steps with ordered model preferences. The
// ladder convention everywhere: first model is the fastest, last is the
// strongest.
package router

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/prompts"
)

// Complexity buckets a query by how much model capacity it needs.
type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// Strategy names how a query flows through the ladder.
type Strategy string

const (
	// StrategyDirect: single-model pool, no chaining possible.
	StrategyDirect Strategy = "direct"
	// StrategyFastestOnly: simple queries stay on the first rung.
	StrategyFastestOnly Strategy = "fastest_only"
	// StrategyFastStrong: moderate queries pair the first and last rungs.
	StrategyFastStrong Strategy = "fast_strong"
	// StrategyFullPool: complex queries may touch every rung.
	StrategyFullPool Strategy = "full_pool"
)

// Decision is the routing verdict for one query.
type Decision struct {
	// Models are the ordered candidates for this query.
	Models []string

	Complexity Complexity
	Strategy   Strategy

	// FallbackModel answers when every candidate fails: the strongest rung.
	FallbackModel string

	// SkipSearch suppresses web-search tools for this query. Always true
	// under simple complexity, regardless of the session default.
	SkipSearch bool

	// Confidence is the classifier's self-estimate in [0,1].
	Confidence float64

	// Reasoning is a one-line audit trail for logs and the UI.
	Reasoning string
}

// Options configures a Router.
type Options struct {
	// Mode selects the classifier: "heuristic" or "llm".
	Mode string

	// ClassifierModel is the model used in llm mode, normally the fastest
	// rung.
	ClassifierModel string
}

// Router classifies queries and tracks models that failed this session so
// routing stops offering them. Safe for concurrent use.
type Router struct {
	client          llm.Client
	mode            string
	classifierModel string

	mu     sync.Mutex
	failed map[string]bool
}

// New creates a Router.
func New(client llm.Client, opts Options) *Router {
	mode := opts.Mode
	if mode == "" {
		mode = "heuristic"
	}
	return &Router{
		client:          client,
		mode:            mode,
		classifierModel: opts.ClassifierModel,
		failed:          make(map[string]bool),
	}
}

// Route classifies the query and maps it onto the ladder. models is the
// ladder in fastest-to-strongest order; webSearchEnabled is the session
// default, which simple complexity overrides.
func (r *Router) Route(ctx context.Context, query string, models []string, webSearchEnabled bool) Decision {
	complexity, confidence, reasoning := r.classify(ctx, query, models)

	if complexity == Simple && TimeSensitive(query) {
		complexity = Moderate
		reasoning += "; promoted to moderate: time-sensitive query needs fresh grounding"
	}

	d := Decision{
		Complexity: complexity,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
	if len(models) == 0 {
		d.Strategy = StrategyDirect
		d.SkipSearch = true
		d.Reasoning += "; no models configured"
		return d
	}

	fastest := models[0]
	strongest := models[len(models)-1]
	d.FallbackModel = strongest

	switch {
	case len(models) == 1:
		d.Strategy = StrategyDirect
		d.Models = []string{fastest}
		d.SkipSearch = complexity == Simple || !webSearchEnabled
	case complexity == Simple:
		d.Strategy = StrategyFastestOnly
		d.Models = []string{fastest}
		d.SkipSearch = true
	case complexity == Moderate:
		d.Strategy = StrategyFastStrong
		if len(models) <= 2 {
			d.Models = append([]string(nil), models...)
		} else {
			d.Models = []string{fastest, strongest}
		}
		d.SkipSearch = !webSearchEnabled
	default:
		d.Strategy = StrategyFullPool
		d.Models = append([]string(nil), models...)
		d.SkipSearch = !webSearchEnabled
	}

	logging.Router("routed %q: complexity=%s strategy=%s models=%v skip_search=%v confidence=%.2f",
		firstWords(query, 8), d.Complexity, d.Strategy, d.Models, d.SkipSearch, d.Confidence)
	return d
}

// classify picks the classifier. llm mode needs a pool worth routing over
// (more than one model) and falls back to the heuristic on any failure.
func (r *Router) classify(ctx context.Context, query string, models []string) (Complexity, float64, string) {
	if r.mode == "llm" && len(models) > 1 && r.client != nil {
		if c, ok := r.classifyWithModel(ctx, query); ok {
			return c, 0.8, "model classification by " + r.classifierModel
		}
	}
	return classifyHeuristic(query)
}

func (r *Router) classifyWithModel(ctx context.Context, query string) (Complexity, bool) {
	// Thinking stays at the model default: the router has no capability
	// map, and the prompt demands a one-word answer anyway.
	out, err := r.client.Complete(ctx, r.classifierModel,
		[]llm.Message{{Role: "user", Content: prompts.ClassifyComplexity(query)}},
		llm.Options{})
	if err != nil {
		logging.RouterDebug("model classification failed, using heuristic: %v", err)
		return "", false
	}

	answer := strings.ToLower(strings.TrimSpace(out))
	for _, c := range []Complexity{Simple, Moderate, Complex} {
		if strings.HasPrefix(answer, string(c)) {
			return c, true
		}
	}
	logging.RouterDebug("model classification returned %q, using heuristic", firstWords(answer, 5))
	return "", false
}

// MarkFailed records a model as unavailable for the rest of the session.
func (r *Router) MarkFailed(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.failed[model] {
		logging.Router("model %s marked failed for this session", model)
	}
	r.failed[model] = true
}

// FailedModels returns the session's failed set, sorted.
func (r *Router) FailedModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.failed))
	for m := range r.failed {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
