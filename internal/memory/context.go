package memory

import (
	"fmt"
	"sort"
	"strings"
)

// Truncation limits for the structured context block. The section order and
// caps are a token-budget control for the downstream model call, not
// cosmetics: facts are ranked against the current step so the most relevant
// knowledge survives the cut.
const (
	contextMaxFacts       = 15
	contextMaxToolOutputs = 5
	contextMaxErrors      = 5
	contextOutputSnippet  = 300
)

// StructuredContext assembles the model-facing session context in a stable
// section order: plan progress, then facts ranked by lexical overlap with
// currentStep, then the most recent tool outputs, then the last errors.
func (s *Session) StructuredContext(currentStep string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder

	if s.plan != nil && len(s.plan.Steps) > 0 {
		sb.WriteString("## Plan Progress\n")
		sb.WriteString(s.plan.Progress())
		sb.WriteString("\n\n")
	}

	if len(s.facts) > 0 {
		sb.WriteString("## Known Facts\n")
		for _, fact := range rankFacts(s.facts, currentStep, contextMaxFacts) {
			sb.WriteString("- " + fact + "\n")
		}
		sb.WriteString("\n")
	}

	if len(s.toolRecords) > 0 {
		sb.WriteString("## Recent Tool Outputs\n")
		start := len(s.toolRecords) - contextMaxToolOutputs
		if start < 0 {
			start = 0
		}
		for _, rec := range s.toolRecords[start:] {
			status := "ok"
			if !rec.Success {
				status = "failed"
			}
			sb.WriteString(fmt.Sprintf("- [%s, %s] %s\n", rec.ToolName, status, snippet(rec.Output, contextOutputSnippet)))
		}
		sb.WriteString("\n")
	}

	if len(s.errors) > 0 {
		sb.WriteString("## Recent Errors\n")
		start := len(s.errors) - contextMaxErrors
		if start < 0 {
			start = 0
		}
		for _, e := range s.errors[start:] {
			sb.WriteString("- " + snippet(e, contextOutputSnippet) + "\n")
		}
	}

	return strings.TrimSpace(sb.String())
}

// RankFacts orders facts by word-set intersection with the query, ties
// broken by discovery order, and returns the top n. The agent uses it to
// pick which persistent facts ride along in a step prompt; the session's
// structured context uses it internally.
func RankFacts(facts []string, query string, n int) []string {
	return rankFacts(facts, query, n)
}

// rankFacts orders facts by word-set intersection with the step description,
// ties broken by discovery order, and returns the top n. With no step text
// the first n facts come back unranked.
func rankFacts(facts []string, currentStep string, n int) []string {
	if len(facts) <= n && currentStep == "" {
		out := make([]string, len(facts))
		copy(out, facts)
		return out
	}

	stepWords := wordSet(currentStep)

	type scored struct {
		fact  string
		score int
		index int
	}
	ranked := make([]scored, len(facts))
	for i, fact := range facts {
		score := 0
		for word := range wordSet(fact) {
			if stepWords[word] {
				score++
			}
		}
		ranked[i] = scored{fact: fact, score: score, index: i}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.fact
	}
	return out
}

// wordSet lowercases and splits text into its distinct words, dropping
// single-character tokens that add noise to overlap scores.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?()[]{}\"'`")
		if len(word) > 1 {
			set[word] = true
		}
	}
	return set
}

func snippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
