package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
	"github.com/midu16/ollama-chain-sub000/internal/config"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent loop as an HTTP job queue",
	Long: `Accepts goals over HTTP (POST /jobs), queues them FIFO, and runs them
through the agent loop; clients poll GET /jobs/{id} for the answer.

The config file is watched while serving: model-ladder, router, and agent
changes apply to jobs started after the reload. Tool and server settings
need a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// swappableRunner lets a config reload replace the agent between jobs
// without restarting the listener. Jobs already running keep the agent
// they started with.
type swappableRunner struct {
	mu sync.RWMutex
	a  *agent.Agent
}

func (s *swappableRunner) Run(ctx context.Context, goal string) (*agent.Result, error) {
	s.mu.RLock()
	a := s.a
	s.mu.RUnlock()
	return a.Run(ctx, goal)
}

func (s *swappableRunner) swap(a *agent.Agent) {
	s.mu.Lock()
	s.a = a
	s.mu.Unlock()
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := buildStack(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := &swappableRunner{a: st.agent}
	srv := server.New(runner, server.Options{
		Addr:         cfg.Server.Addr,
		Workers:      int64(cfg.Server.MaxConcurrentJobs),
		QueueDepth:   cfg.Server.QueueSize,
		JobTimeout:   cfg.GetJobTimeout(),
		MinFreeMemMB: cfg.Server.MinFreeMemMB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := config.NewWatcher(cfgPath, func(next *config.Config) {
		ag, _ := buildAgent(next, st.tools, st.persist, st.archive, nil)
		runner.swap(ag)
		logging.Server("config reloaded: models=%v router=%s", next.ModelNames(), next.Router.Mode)
	})
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		logging.Get(logging.CategoryServer).Warn("config watcher not started: %v", err)
	} else {
		defer watcher.Stop()
	}

	styles := newCLIStyles()
	fmt.Printf("%s listening on %s (workers=%d queue=%d)\n",
		styles.Phase.Render("ollama-chain server"),
		cfg.Server.Addr, cfg.Server.MaxConcurrentJobs, cfg.Server.QueueSize)
	fmt.Println(styles.Muted.Render(`POST /jobs {"goal": "..."} · GET /jobs/{id} · GET /healthz`))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Println(styles.Muted.Render("shutting down: " + sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
