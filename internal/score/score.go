// Package score grades a prompt before it is spent on a model ladder. The
// grade is lexical: no model call, so the check is free and instant.
package score

import (
	"fmt"
	"regexp"
	"strings"
)

// Report is the outcome of grading one prompt.
type Report struct {
	// Score is 0 to 100; higher prompts route better.
	Score int

	// Verdict is a one-line reading of the score band.
	Verdict string

	// Suggestions are concrete rewrites, empty when nothing stands out.
	Suggestions []string
}

// specificityRes match concrete anchors: numbers, paths, quoted fragments,
// version strings, flags. Anchors are what separate an answerable prompt
// from a vague one.
var specificityRes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+(\.\d+)*\b`),
	regexp.MustCompile(`(^|\s)(~|\.{1,2})?/[\w.@%+\-][\w.@%+\-/]*`),
	regexp.MustCompile(`"[^"]+"|'[^']+'|` + "`[^`]+`"),
	regexp.MustCompile(`\bv\d+(\.\d+)+\b`),
	regexp.MustCompile(`(^|\s)--?[a-z][\w-]+`),
}

// contextPhrases signal that the prompt carries its own background instead
// of assuming the reader shares it.
var contextPhrases = []string{
	"because", "currently", "i have", "i am", "i'm", "we use", "we run",
	"we have", "running on", "on my", "the error", "error says", "it fails",
	"the output", "output is", "so that", "in order to", "my setup",
	"after upgrading", "since upgrading",
}

// actionVerbs open a prompt with a task rather than a musing.
var actionVerbs = []string{
	"analyze", "check", "compare", "count", "describe", "diagnose",
	"explain", "find", "fix", "list", "measure", "read", "report",
	"show", "summarize", "tell", "verify", "what", "when", "where",
	"which", "who", "why", "how", "is", "are", "does", "do", "can",
}

const (
	bandReady     = "ready to run"
	bandUsable    = "usable, could be sharper"
	bandThin      = "underspecified"
	bandTooVague  = "too vague to route"
	maxSuggestion = 5
)

// Score grades a prompt on five axes: length band, specificity anchors,
// context presence, question clarity, and actionability. The axes sum to
// 100; each shortfall contributes a suggestion.
func Score(prompt string) Report {
	prompt = strings.TrimSpace(prompt)
	lower := strings.ToLower(prompt)
	words := strings.Fields(lower)

	var rep Report
	suggest := func(s string) {
		if len(rep.Suggestions) < maxSuggestion {
			rep.Suggestions = append(rep.Suggestions, s)
		}
	}

	// Length band, 25 points. The sweet spot is a sentence or three: enough
	// to carry constraints, short enough to stay one task.
	switch n := len(words); {
	case n == 0:
		return Report{Score: 0, Verdict: bandTooVague, Suggestions: []string{"write a prompt; there is nothing to grade"}}
	case n < 3:
		suggest("a couple of words rarely carry a task; say what you want done and to what")
	case n <= 7:
		rep.Score += 10
	case n <= 60:
		rep.Score += 25
	case n <= 120:
		rep.Score += 15
	default:
		rep.Score += 5
		suggest(fmt.Sprintf("%d words reads like several tasks; split it and run them separately", n))
	}

	// Specificity anchors, 25 points.
	anchors := 0
	for _, re := range specificityRes {
		anchors += len(re.FindAllString(prompt, -1))
	}
	switch {
	case anchors >= 3:
		rep.Score += 25
	case anchors == 2:
		rep.Score += 18
	case anchors == 1:
		rep.Score += 10
	default:
		suggest("no concrete anchors (paths, numbers, names); add the thing the answer should be about")
	}

	// Context presence, 20 points.
	hasContext := false
	for _, p := range contextPhrases {
		if strings.Contains(lower, p) {
			hasContext = true
			break
		}
	}
	if hasContext {
		rep.Score += 20
	} else if len(words) >= 8 {
		suggest("state the situation (what you run, what happened) so the answer can fit it")
	}

	// Question clarity, 15 points. One question is clear; several compete.
	switch questions := strings.Count(prompt, "?"); {
	case questions == 1:
		rep.Score += 15
	case questions == 0:
		rep.Score += 10
	default:
		rep.Score += 8
		suggest(fmt.Sprintf("%d question marks; lead with the one question that matters", questions))
	}

	// Actionability, 15 points: the prompt opens with a verb or
	// interrogative that names the task.
	if len(words) > 0 && isActionWord(words[0]) {
		rep.Score += 15
	} else {
		rep.Score += 5
		suggest("open with the task (check, list, explain, fix) instead of easing into it")
	}

	rep.Verdict = verdictFor(rep.Score)
	return rep
}

func isActionWord(w string) bool {
	w = strings.Trim(w, ",.!?:;")
	for _, v := range actionVerbs {
		if w == v {
			return true
		}
	}
	return false
}

func verdictFor(score int) string {
	switch {
	case score >= 80:
		return bandReady
	case score >= 55:
		return bandUsable
	case score >= 30:
		return bandThin
	default:
		return bandTooVague
	}
}
