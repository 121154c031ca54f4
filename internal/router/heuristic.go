package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// domainTerms are markers of technical depth. Density, not presence, drives
// the score: one term is everyday usage, several means the query lives in a
// specialist domain.
var domainTerms = []string{
	"algorithm", "architecture", "benchmark", "compile", "concurrency",
	"container", "cve", "database", "deadlock", "dns", "distributed",
	"encryption", "filesystem", "firewall", "kernel", "kubernetes", "k8s",
	"latency", "memory leak", "microservice", "migration", "orchestration",
	"packet", "pcap", "protocol", "race condition", "regression",
	"replication", "scheduler", "stack trace", "syscall", "tcp", "tls",
	"throughput", "vulnerability",
}

// conjunctions join multiple demands into one query.
var conjunctions = []string{
	" and then ", "; then ", " as well as ", " along with ", " compare ",
	" versus ", " vs ", " in addition to ", " afterwards ",
}

// timePhrases mark a query as needing fresh grounding.
var timePhrases = []string{
	"latest", "newest", "current", "currently", "today", "tonight",
	"right now", "this week", "this month", "this year", "recent",
	"recently", "breaking", "up to date", "up-to-date", "just released",
}

var asOfYear = regexp.MustCompile(`\bas of (19|20)\d\d\b`)

// classifyHeuristic scores a query lexically and buckets the score into a
// complexity. Returns the bucket, a confidence estimate, and a reasoning
// line for the decision log.
func classifyHeuristic(query string) (Complexity, float64, string) {
	lower := strings.ToLower(query)
	words := strings.Fields(lower)

	score := 0
	switch {
	case len(words) >= 50:
		score += 3
	case len(words) >= 25:
		score += 2
	case len(words) >= 12:
		score++
	}

	terms := 0
	for _, t := range domainTerms {
		terms += strings.Count(lower, t)
	}
	switch {
	case terms >= 3:
		score += 2
	case terms >= 1:
		score++
	}

	questions := strings.Count(query, "?")
	if questions >= 2 {
		score += 2
	}

	joins := 0
	for _, c := range conjunctions {
		if strings.Contains(lower, c) {
			joins++
		}
	}
	if joins > 2 {
		joins = 2
	}
	score += joins

	var bucket Complexity
	var confidence float64
	switch {
	case score <= 1:
		bucket = Simple
		confidence = 0.9 - 0.2*float64(score)
	case score <= 4:
		bucket = Moderate
		confidence = 0.6 + 0.05*float64(score)
	default:
		bucket = Complex
		confidence = 0.8
		if score > 6 {
			confidence = 0.9
		}
	}

	reasoning := fmt.Sprintf("heuristic: words=%d domain_terms=%d questions=%d conjunctions=%d score=%d",
		len(words), terms, questions, joins, score)
	return bucket, confidence, reasoning
}

// TimeSensitive reports whether a query needs fresh grounding: it matches
// the recency lexicon, names "as of" a year, or mentions the current or a
// future year. Time-sensitive queries are never routed as simple, because
// simple routing skips web search.
func TimeSensitive(query string) bool {
	return timeSensitiveAt(query, time.Now().Year())
}

func timeSensitiveAt(query string, nowYear int) bool {
	lower := strings.ToLower(query)
	for _, p := range timePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	if asOfYear.MatchString(lower) {
		return true
	}
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,:;!?()")
		if len(w) != 4 {
			continue
		}
		if y, err := strconv.Atoi(w); err == nil && y >= nowYear && y < nowYear+30 {
			return true
		}
	}
	return false
}
