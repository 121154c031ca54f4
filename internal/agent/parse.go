package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/prompts"
)

// toolCall is the decoded payload of a tool_call block.
type toolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// responseKind labels the actionable block found in a model reply.
type responseKind int

const (
	responseReasoning responseKind = iota
	responseToolCall
	responseFinalAnswer
	responseMalformed
)

func (k responseKind) String() string {
	switch k {
	case responseToolCall:
		return "tool_call"
	case responseFinalAnswer:
		return "final_answer"
	case responseMalformed:
		return "malformed"
	default:
		return "reasoning"
	}
}

// modelResponse is one model reply after grammar scanning. Facts co-occur
// with every kind; reasoning holds whatever text sat outside recognized tags.
type modelResponse struct {
	kind      responseKind
	tool      toolCall
	answer    string
	facts     []string
	reasoning string

	// malformed describes the parse failure when kind == responseMalformed.
	malformed string
}

// parseResponse scans a reply for the structured grammar: at most one tool
// call or final answer plus any number of store_fact blocks. A tool_call tag
// whose payload does not decode is a distinct malformed outcome, never
// silently read as reasoning. When a reply carries both a tool call and a
// final answer the tool call wins and the answer text stays in the
// reasoning remainder.
func parseResponse(text string) modelResponse {
	var resp modelResponse

	rest, facts := extractAll(text, prompts.StoreFactOpen, prompts.StoreFactClose)
	for _, f := range facts {
		if f = strings.TrimSpace(f); f != "" {
			resp.facts = append(resp.facts, f)
		}
	}

	payload, toolFound, rest := extractFirst(rest, prompts.ToolCallOpen, prompts.ToolCallClose)

	switch {
	case toolFound:
		call, err := decodeToolCall(payload)
		if err != nil {
			resp.kind = responseMalformed
			resp.malformed = err.Error()
			break
		}
		if strings.Contains(rest, prompts.FinalAnswerOpen) {
			logging.AgentDebug("reply carried both a tool call and a final answer; honoring the tool call")
		}
		resp.kind = responseToolCall
		resp.tool = call
	default:
		answer, answerFound, remainder := extractFirst(rest, prompts.FinalAnswerOpen, prompts.FinalAnswerClose)
		if answerFound {
			resp.kind = responseFinalAnswer
			resp.answer = strings.TrimSpace(answer)
			rest = remainder
		}
	}

	resp.reasoning = strings.TrimSpace(rest)
	return resp
}

// decodeToolCall parses the JSON between tool_call tags. The grammar is
// bit-exact: an object with a string name and an optional args object.
func decodeToolCall(payload string) (toolCall, error) {
	var call toolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &call); err != nil {
		return toolCall{}, fmt.Errorf("tool_call payload does not decode: %v", err)
	}
	call.Name = strings.TrimSpace(call.Name)
	if call.Name == "" {
		return toolCall{}, fmt.Errorf("tool_call payload names no tool")
	}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	return call, nil
}

// extractFirst pulls the first open…close block out of s, returning the
// inner text, whether the open tag was present, and s with the block
// removed. An unterminated final_answer keeps everything after the tag (a
// truncated generation is still an answer); an unterminated tool_call comes
// back as found with empty inner text so the caller can flag it.
func extractFirst(s, open, close string) (inner string, found bool, remainder string) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false, s
	}
	afterOpen := start + len(open)
	end := strings.Index(s[afterOpen:], close)
	if end < 0 {
		if open == prompts.FinalAnswerOpen {
			return s[afterOpen:], true, s[:start]
		}
		return "", true, s[:start]
	}
	inner = s[afterOpen : afterOpen+end]
	remainder = s[:start] + s[afterOpen+end+len(close):]
	return inner, true, remainder
}

// extractAll pulls every open…close block out of s.
func extractAll(s, open, close string) (remainder string, inners []string) {
	for {
		inner, found, rest := extractFirst(s, open, close)
		if !found {
			return s, inners
		}
		if inner != "" {
			inners = append(inners, inner)
		}
		s = rest
	}
}
