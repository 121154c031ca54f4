// Package server exposes the agent loop over HTTP as a small job queue.
// Goals are accepted, queued FIFO, and run one session at a time by
// default; callers poll for the result. Everything is plain net/http.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

const (
	defaultAddr       = ":8420"
	defaultWorkers    = 1
	defaultQueueDepth = 32
	defaultJobTimeout = 10 * time.Minute
	maxBodyBytes      = 1 << 20
)

// Runner runs one goal to completion. *agent.Agent satisfies it.
type Runner interface {
	Run(ctx context.Context, goal string) (*agent.Result, error)
}

// Options configures the queue front-end.
type Options struct {
	// Addr is the listen address. Defaults to ":8420".
	Addr string

	// Workers bounds concurrent sessions. Defaults to 1: local models
	// contend for the same GPU, so parallel sessions slow each other down.
	Workers int64

	// QueueDepth bounds jobs waiting to run. Defaults to 32.
	QueueDepth int

	// JobTimeout cancels a session that runs too long. Defaults to 10m.
	JobTimeout time.Duration

	// MinFreeMemMB rejects new jobs when available memory drops below the
	// threshold. Zero disables the gate.
	MinFreeMemMB int

	// MeminfoPath overrides /proc/meminfo, for tests.
	MeminfoPath string
}

// Job is the queue's view of one goal.
type Job struct {
	ID         string     `json:"id"`
	Goal       string     `json:"goal"`
	Status     Status     `json:"status"`
	Answer     string     `json:"answer,omitempty"`
	Error      string     `json:"error,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	Degraded   bool       `json:"degraded,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Server is the HTTP job queue. Construct with New; the dispatch loop runs
// from construction until Shutdown.
type Server struct {
	runner Runner
	opts   Options
	sem    *semaphore.Weighted

	mu   sync.RWMutex
	jobs map[string]*Job

	queue chan string
	life  context.Context
	stop  context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	http     *http.Server
}

// New builds the queue and starts its dispatch loop. Call Start to serve
// HTTP, and Shutdown to stop both.
func New(runner Runner, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = defaultQueueDepth
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.MeminfoPath == "" {
		opts.MeminfoPath = "/proc/meminfo"
	}

	life, stop := context.WithCancel(context.Background())
	s := &Server{
		runner: runner,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.Workers),
		jobs:   make(map[string]*Job),
		queue:  make(chan string, opts.QueueDepth),
		life:   life,
		stop:   stop,
	}
	s.http = &http.Server{Addr: opts.Addr, Handler: s.Handler()}

	s.wg.Add(1)
	go s.dispatch()
	return s
}

// Handler returns the route table, usable directly in tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("GET /jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start serves HTTP until Shutdown. It blocks.
func (s *Server) Start() error {
	logging.Server("job queue listening on %s (workers=%d, queue=%d)",
		s.opts.Addr, s.opts.Workers, s.opts.QueueDepth)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting jobs, cancels running sessions, and waits for
// the dispatch loop to drain within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(s.stop)

	err := s.http.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// dispatch pulls job ids in FIFO order, admitting each through the worker
// semaphore before the next is considered.
func (s *Server) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.life.Done():
			return
		case id := <-s.queue:
			if err := s.sem.Acquire(s.life, 1); err != nil {
				return
			}
			s.wg.Add(1)
			go func(id string) {
				defer s.wg.Done()
				defer s.sem.Release(1)
				s.runJob(id)
			}(id)
		}
	}
}

func (s *Server) runJob(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	started := time.Now()
	job.StartedAt = &started
	goal := job.Goal
	s.mu.Unlock()

	logging.Server("job %s started", id)
	ctx, cancel := context.WithTimeout(s.life, s.opts.JobTimeout)
	defer cancel()

	res, err := s.runner.Run(ctx, goal)

	s.mu.Lock()
	defer s.mu.Unlock()
	finished := time.Now()
	job.FinishedAt = &finished
	switch {
	case res != nil:
		// A degraded result still carries the facts-only answer; report it
		// as done with the error alongside.
		job.Status = StatusDone
		job.Answer = res.Answer
		job.SessionID = res.SessionID
		job.Degraded = res.Degraded
		if err != nil {
			job.Error = err.Error()
		}
	default:
		job.Status = StatusFailed
		if err != nil {
			job.Error = err.Error()
		}
	}
	logging.Server("job %s finished: %s after %s", id, job.Status, finished.Sub(started).Round(time.Millisecond))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a goal field")
		return
	}
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		writeError(w, http.StatusBadRequest, "goal is empty")
		return
	}

	if s.opts.MinFreeMemMB > 0 {
		free, err := availableMemMB(s.opts.MeminfoPath)
		switch {
		case err != nil:
			// An unreadable meminfo must not wedge the queue shut.
			logging.Get(logging.CategoryServer).Warn("meminfo unreadable, admitting job: %v", err)
		case free < s.opts.MinFreeMemMB:
			logging.Get(logging.CategoryServer).Warn("rejecting job: %d MB available, %d MB required", free, s.opts.MinFreeMemMB)
			writeError(w, http.StatusServiceUnavailable,
				fmt.Sprintf("not enough free memory to admit a session (%d MB available)", free))
			return
		}
	}

	job := &Job{
		ID:         uuid.NewString()[:8],
		Goal:       goal,
		Status:     StatusQueued,
		EnqueuedAt: time.Now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	select {
	case s.queue <- job.ID:
	default:
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}

	logging.Server("job %s queued: %s", job.ID, clip(goal, 120))
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	job, ok := s.jobs[r.PathValue("id")]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	queued, running := 0, 0
	for _, j := range s.jobs {
		switch j.Status {
		case StatusQueued:
			queued++
		case StatusRunning:
			running++
		}
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"queued":  queued,
		"running": running,
		"workers": s.opts.Workers,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryServer).Warn("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
