// Package memory holds what an agent run knows: the session's mutable
// working state (plan, history, facts, tool results, errors) and the
// disk-backed persistent store consulted at the start of new sessions.
//
// Session mutators are guarded by one coarse mutex. Group workers run
// concurrently, but contention is bounded by the tiny pool size, so a
// single lock is deliberate; the coordinator applies outcomes sequentially
// anyway and workers only read.
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// EntryType classifies a history entry.
type EntryType string

const (
	EntryText       EntryType = "text"
	EntryToolOutput EntryType = "tool_output"
	EntryFact       EntryType = "fact"
	EntryError      EntryType = "error"
)

// HistoryEntry is one item of the append-only session log.
type HistoryEntry struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Type    EntryType `json:"type"`
	Content string    `json:"content"`
}

// ToolRecord is a tool invocation as the session remembers it: the uniform
// ToolResult plus which plan step asked for it.
type ToolRecord struct {
	StepID int `json:"step_id"`
	tools.ToolResult
}

// Session is the mutable working state of one agent run. Not shared across
// runs; cleared after the final answer is archived.
type Session struct {
	mu sync.Mutex

	id          string
	goal        string
	plan        *planner.Plan
	history     []HistoryEntry
	facts       []string
	factSet     map[string]bool
	toolRecords []ToolRecord
	errors      []string
	startedAt   time.Time
}

// NewSession creates a session for one goal with a fresh id.
func NewSession(goal string) *Session {
	s := &Session{
		id:        uuid.NewString()[:8],
		goal:      goal,
		factSet:   make(map[string]bool),
		startedAt: time.Now(),
	}
	logging.MemoryDebug("session %s created: %s", s.id, goal)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Goal returns the session's objective.
func (s *Session) Goal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goal
}

// StartedAt returns when the session began.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// SetPlan replaces the session's plan wholesale, as replanning does.
func (s *Session) SetPlan(p *planner.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = p
}

// Plan returns a deep copy of the current plan, or nil if none is set.
// Workers read copies; only the coordinator mutates the session's plan.
func (s *Session) Plan() *planner.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return nil
	}
	return s.plan.Clone()
}

// UpdateStepStatus transitions one step. Terminal states are never left.
func (s *Session) UpdateStepStatus(stepID int, status planner.StepStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return
	}
	step := s.plan.Step(stepID)
	if step == nil {
		return
	}
	if step.Status.IsTerminal() {
		logging.Memory("session %s: ignoring %s -> %s for terminal step %d", s.id, step.Status, status, stepID)
		return
	}
	step.Status = status
}

// AddHistory appends one typed entry to the session log.
func (s *Session) AddHistory(role string, entryType EntryType, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, HistoryEntry{Role: role, Type: entryType, Content: content})
}

// History returns the last n entries (all when n <= 0).
func (s *Session) History(n int) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	out := make([]HistoryEntry, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// AddFact records a discovered fact. Duplicates (exact string match) are
// dropped; a new fact also lands in the history log exactly once. The
// return value reports whether the fact was new.
func (s *Session) AddFact(fact string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fact == "" || s.factSet[fact] {
		return false
	}
	s.factSet[fact] = true
	s.facts = append(s.facts, fact)
	s.history = append(s.history, HistoryEntry{Role: "assistant", Type: EntryFact, Content: fact})
	logging.MemoryDebug("session %s: fact added (%d total): %s", s.id, len(s.facts), fact)
	return true
}

// Facts returns the facts in discovery order.
func (s *Session) Facts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.facts))
	copy(out, s.facts)
	return out
}

// FactCount returns how many distinct facts the session holds.
func (s *Session) FactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}

// AddToolResult records one tool invocation for a step.
func (s *Session) AddToolResult(stepID int, result tools.ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolRecords = append(s.toolRecords, ToolRecord{StepID: stepID, ToolResult: result})
}

// ToolResults returns all tool invocations in execution-record order.
func (s *Session) ToolResults() []ToolRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolRecord, len(s.toolRecords))
	copy(out, s.toolRecords)
	return out
}

// AddError records a step-level error.
func (s *Session) AddError(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		return
	}
	s.errors = append(s.errors, text)
}

// Errors returns all recorded errors in order.
func (s *Session) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}

// Summary renders a short session digest for the persistent session ring.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := 0
	completed := 0
	if s.plan != nil {
		steps = len(s.plan.Steps)
		for _, st := range s.plan.Steps {
			if st.Status == planner.StatusCompleted {
				completed++
			}
		}
	}
	return fmt.Sprintf("%d/%d steps completed, %d facts, %d tool calls, %d errors",
		completed, steps, len(s.facts), len(s.toolRecords), len(s.errors))
}

// Clear empties every collection and resets the goal. Called once the final
// answer is produced and the summary pushed to persistent memory.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goal = ""
	s.plan = nil
	s.history = nil
	s.facts = nil
	s.factSet = make(map[string]bool)
	s.toolRecords = nil
	s.errors = nil
	logging.MemoryDebug("session %s cleared", s.id)
}
