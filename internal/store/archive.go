// Package store archives finished sessions in SQLite so past runs can be
// inspected after the in-memory session is cleared. The driver is pure Go;
// no cgo toolchain is needed to build or cross-compile.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// Archive is a SQLite-backed session log. It implements agent.Archiver.
type Archive struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the archive database at the given path, creating the
// parent directory and tables as needed.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	a := &Archive{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Memory("session archive opened at %s", path)
	return a, nil
}

// initialize creates the required tables.
func (a *Archive) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		goal TEXT NOT NULL,
		answer TEXT,
		summary TEXT,
		complexity TEXT,
		iterations INTEGER DEFAULT 0,
		replans INTEGER DEFAULT 0,
		steps_completed INTEGER DEFAULT 0,
		steps_failed INTEGER DEFAULT 0,
		degraded INTEGER DEFAULT 0,
		facts_json TEXT,
		started_at TEXT,
		finished_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`

	invocationsTable := `
	CREATE TABLE IF NOT EXISTS tool_invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		step_id INTEGER DEFAULT 0,
		tool TEXT NOT NULL,
		args_json TEXT,
		success INTEGER DEFAULT 0,
		attempts INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		error_detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_session ON tool_invocations(session_id);
	`

	for _, stmt := range []string{sessionsTable, invocationsTable} {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create archive tables: %w", err)
		}
	}
	return nil
}

// ArchiveSession writes one finished session and its tool invocations.
// Re-archiving the same session id replaces the previous record, so a retry
// after a partial failure cannot duplicate rows.
func (a *Archive) ArchiveSession(ctx context.Context, rec agent.SessionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	logging.MemoryDebug("archiving session %s: %d tool calls", rec.SessionID, len(rec.ToolCalls))

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	factsJSON, err := json.Marshal(rec.Facts)
	if err != nil {
		return fmt.Errorf("failed to encode facts: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (id, goal, answer, summary, complexity, iterations, replans, steps_completed, steps_failed, degraded, facts_json, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Goal, rec.Answer, rec.Summary, rec.Complexity,
		rec.Iterations, rec.Replans, rec.StepsCompleted, rec.StepsFailed,
		boolToInt(rec.Degraded), string(factsJSON),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", rec.SessionID, err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tool_invocations WHERE session_id = ?", rec.SessionID); err != nil {
		return fmt.Errorf("failed to clear prior invocations: %w", err)
	}

	for _, call := range rec.ToolCalls {
		argsJSON, err := json.Marshal(call.Args)
		if err != nil {
			argsJSON = []byte("{}")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tool_invocations
			 (session_id, step_id, tool, args_json, success, attempts, duration_ms, error_detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SessionID, call.StepID, call.ToolName, string(argsJSON),
			boolToInt(call.Success), call.Attempts, call.DurationMs, call.ErrorKind,
		)
		if err != nil {
			return fmt.Errorf("failed to archive invocation of %s: %w", call.ToolName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	logging.MemoryDebug("session %s archived", rec.SessionID)
	return nil
}

// Entry is one archived session as listed by Recent.
type Entry struct {
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
	Facts      []string
	ToolCalls  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recent returns the latest n sessions, newest first.
func (a *Archive) Recent(ctx context.Context, n int) ([]Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n <= 0 {
		n = 20
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT s.id, s.goal, s.answer, s.summary, s.complexity, s.iterations,
		        s.replans, s.steps_completed, s.steps_failed, s.degraded,
		        s.facts_json, s.started_at, s.finished_at,
		        (SELECT COUNT(*) FROM tool_invocations t WHERE t.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.started_at DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var degraded int
		var factsJSON, started, finished string
		if err := rows.Scan(&e.SessionID, &e.Goal, &e.Answer, &e.Summary, &e.Complexity,
			&e.Iterations, &e.Replans, &e.StepsCompleted, &e.StepsFailed, &degraded,
			&factsJSON, &started, &finished, &e.ToolCalls); err != nil {
			logging.Get(logging.CategoryMemory).Warn("skipping unreadable session row: %v", err)
			continue
		}
		e.Degraded = degraded != 0
		if err := json.Unmarshal([]byte(factsJSON), &e.Facts); err != nil {
			e.Facts = nil
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ErrSessionNotFound is returned by Get for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Get returns one archived session by id.
func (a *Archive) Get(ctx context.Context, sessionID string) (*Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	row := a.db.QueryRowContext(ctx,
		`SELECT s.id, s.goal, s.answer, s.summary, s.complexity, s.iterations,
		        s.replans, s.steps_completed, s.steps_failed, s.degraded,
		        s.facts_json, s.started_at, s.finished_at,
		        (SELECT COUNT(*) FROM tool_invocations t WHERE t.session_id = s.id)
		 FROM sessions s
		 WHERE s.id = ?`, sessionID)

	var e Entry
	var degraded int
	var factsJSON, started, finished string
	err := row.Scan(&e.SessionID, &e.Goal, &e.Answer, &e.Summary, &e.Complexity,
		&e.Iterations, &e.Replans, &e.StepsCompleted, &e.StepsFailed, &degraded,
		&factsJSON, &started, &finished, &e.ToolCalls)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	e.Degraded = degraded != 0
	if err := json.Unmarshal([]byte(factsJSON), &e.Facts); err != nil {
		e.Facts = nil
	}
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &e, nil
}

// Invocation is one archived tool call.
type Invocation struct {
	StepID      int
	Tool        string
	ArgsJSON    string
	Success     bool
	Attempts    int
	DurationMs  int64
	ErrorDetail string
}

// Invocations returns the tool calls of one session in execution order.
func (a *Archive) Invocations(ctx context.Context, sessionID string) ([]Invocation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT step_id, tool, args_json, success, attempts, duration_ms, error_detail
		 FROM tool_invocations
		 WHERE session_id = ?
		 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var calls []Invocation
	for rows.Next() {
		var inv Invocation
		var success int
		if err := rows.Scan(&inv.StepID, &inv.Tool, &inv.ArgsJSON, &success,
			&inv.Attempts, &inv.DurationMs, &inv.ErrorDetail); err != nil {
			logging.Get(logging.CategoryMemory).Warn("skipping unreadable invocation row: %v", err)
			continue
		}
		inv.Success = success != 0
		calls = append(calls, inv)
	}
	return calls, rows.Err()
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
