package agent

import (
	"context"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
)

// Phase is the session-level state of a run.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseReplanning   Phase = "replanning"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseDone         Phase = "done"
)

// StepUpdate notifies one step transition.
type StepUpdate struct {
	StepID      int
	Description string
	Status      planner.StepStatus

	// Detail is the tool name on dispatch, the serving model or failure
	// text on completion.
	Detail string
}

// Observer receives progress from a running session. All calls arrive from
// the coordinator goroutine, in order, so implementations need no locking of
// their own. There is no package-level observer; pass one in Options.
type Observer interface {
	OnPhase(phase Phase, detail string)
	OnStep(update StepUpdate)
}

// nopObserver drops every notification.
type nopObserver struct{}

func (nopObserver) OnPhase(Phase, string) {}
func (nopObserver) OnStep(StepUpdate) {}

// SessionRecord is everything the archive keeps about one finished run.
type SessionRecord struct {
	SessionID  string
	Goal       string
	Answer     string
	Summary    string
	Complexity string
	Iterations int
	Replans    int

	StepsCompleted int
	StepsFailed    int

	Degraded   bool
	StartedAt  time.Time
	FinishedAt time.Time
	Facts      []string
	ToolCalls  []memory.ToolRecord
}

// Archiver persists finished sessions durably. Archive failures are logged
// and never fail the run.
type Archiver interface {
	ArchiveSession(ctx context.Context, rec SessionRecord) error
}
