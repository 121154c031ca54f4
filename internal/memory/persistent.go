package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

const (
	factsFile    = "facts.json"
	sessionsFile = "sessions.json"
)

// SessionSummary is one entry of the persistent session ring.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Goal      string    `json:"goal"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// PersistentOptions tunes the persistent store.
type PersistentOptions struct {
	// MaxFacts caps the fact list; oldest facts are evicted first.
	// 0 means unbounded.
	MaxFacts int

	// SessionRing is how many session summaries are kept. Defaults to 50.
	SessionRing int
}

// Persistent is the durable cross-session store: two flat JSON documents,
// loaded fully on open and rewritten fully on every mutation. One instance
// per process; a single mutex serializes access so a job queue configured
// to run sessions concurrently cannot interleave rewrites. There is still
// no cross-process protocol: two processes over one directory clobber each
// other.
type Persistent struct {
	mu      sync.Mutex
	dir     string
	facts   []string
	factSet map[string]bool

	sessions []SessionSummary

	maxFacts    int
	sessionRing int
}

// OpenPersistent loads (or initializes) the store under dir.
func OpenPersistent(dir string, opts PersistentOptions) (*Persistent, error) {
	if opts.SessionRing <= 0 {
		opts.SessionRing = 50
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory dir: %w", err)
	}

	p := &Persistent{
		dir:         dir,
		factSet:     make(map[string]bool),
		maxFacts:    opts.MaxFacts,
		sessionRing: opts.SessionRing,
	}

	if err := p.loadFacts(); err != nil {
		return nil, err
	}
	if err := p.loadSessions(); err != nil {
		return nil, err
	}

	logging.Memory("persistent memory opened: %d facts, %d sessions", len(p.facts), len(p.sessions))
	return p, nil
}

func (p *Persistent) loadFacts() error {
	data, err := os.ReadFile(filepath.Join(p.dir, factsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read facts: %w", err)
	}
	if err := json.Unmarshal(data, &p.facts); err != nil {
		return fmt.Errorf("failed to parse facts: %w", err)
	}
	for _, f := range p.facts {
		p.factSet[f] = true
	}
	return nil
}

func (p *Persistent) loadSessions() error {
	data, err := os.ReadFile(filepath.Join(p.dir, sessionsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read sessions: %w", err)
	}
	if err := json.Unmarshal(data, &p.sessions); err != nil {
		return fmt.Errorf("failed to parse sessions: %w", err)
	}
	return nil
}

func (p *Persistent) saveFacts() error {
	data, err := json.MarshalIndent(p.facts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.dir, factsFile), data, 0644)
}

func (p *Persistent) saveSessions() error {
	data, err := json.MarshalIndent(p.sessions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.dir, sessionsFile), data, 0644)
}

// StoreFact adds one fact and rewrites the fact file. Duplicates are
// dropped without touching disk. Returns whether the fact was new.
func (p *Persistent) StoreFact(fact string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fact == "" || p.factSet[fact] {
		return false, nil
	}
	p.factSet[fact] = true
	p.facts = append(p.facts, fact)
	p.evictFacts()
	return true, p.saveFacts()
}

// StoreFacts adds a batch of facts with a single rewrite. Returns how many
// were new.
func (p *Persistent) StoreFacts(facts []string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	added := 0
	for _, fact := range facts {
		if fact == "" || p.factSet[fact] {
			continue
		}
		p.factSet[fact] = true
		p.facts = append(p.facts, fact)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	p.evictFacts()
	return added, p.saveFacts()
}

// evictFacts drops the oldest facts past the cap.
func (p *Persistent) evictFacts() {
	if p.maxFacts <= 0 || len(p.facts) <= p.maxFacts {
		return
	}
	evicted := p.facts[:len(p.facts)-p.maxFacts]
	for _, f := range evicted {
		delete(p.factSet, f)
	}
	p.facts = append([]string(nil), p.facts[len(p.facts)-p.maxFacts:]...)
	logging.MemoryDebug("evicted %d facts over cap %d", len(evicted), p.maxFacts)
}

// Facts returns all stored facts in insertion order.
func (p *Persistent) Facts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.facts))
	copy(out, p.facts)
	return out
}

// RecordSession appends one summary to the ring and rewrites the file.
func (p *Persistent) RecordSession(sessionID, goal, summary string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, SessionSummary{
		SessionID: sessionID,
		Goal:      goal,
		Summary:   summary,
		Timestamp: time.Now(),
	})
	if len(p.sessions) > p.sessionRing {
		p.sessions = append([]SessionSummary(nil), p.sessions[len(p.sessions)-p.sessionRing:]...)
	}
	return p.saveSessions()
}

// Sessions returns all recorded summaries, oldest first.
func (p *Persistent) Sessions() []SessionSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SessionSummary, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// RecentSessions returns up to n summaries, newest last.
func (p *Persistent) RecentSessions(n int) []SessionSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 || n > len(p.sessions) {
		n = len(p.sessions)
	}
	out := make([]SessionSummary, n)
	copy(out, p.sessions[len(p.sessions)-n:])
	return out
}

// ClearFacts empties the fact list, for the CLI's memory clear command.
func (p *Persistent) ClearFacts() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.facts = []string{}
	p.factSet = make(map[string]bool)
	return p.saveFacts()
}
