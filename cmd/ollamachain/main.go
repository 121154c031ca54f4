// Package main is the ollama-chain command line. It wires the config,
// logging, tool registry, memory, and archive into the agent loop and
// exposes run/ask/serve plus inspection commands over the state directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
	"github.com/midu16/ollama-chain-sub000/internal/config"
	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
	"github.com/midu16/ollama-chain-sub000/internal/router"
	"github.com/midu16/ollama-chain-sub000/internal/store"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
	"github.com/midu16/ollama-chain-sub000/internal/tools/toolset"
)

// version is stamped by the release build.
var version = "dev"

var (
	// Global flags
	cfgPath string
	verbose bool

	// Active configuration, loaded by the root PersistentPreRunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ollamachain",
	Short: "ollama-chain - a multi-model agent loop for local Ollama models",
	Long: `ollama-chain runs goals through a ladder of local models: a fast model
plans and executes tool steps, stronger models review and finalize the
answer. Simple questions stay on the small model; complex goals climb
the ladder.

Configuration lives in <state-dir>/config.yaml (default ~/.ollama-chain).
A missing config file is fine: defaults assume a local Ollama on
localhost:11434.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			cfgPath = config.DefaultConfigPath()
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := logging.Initialize(cfg.StateDir, logging.Options{
			Debug:      cfg.Logging.Debug || verbose,
			Level:      cfg.Logging.Level,
			Console:    cfg.Logging.Console || verbose,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logging.Boot("ollamachain %s starting: config=%s models=%v", version, cfgPath, cfg.ModelNames())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default <state-dir>/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, mirrored to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stack is the wired backend shared by run, ask, and serve.
type stack struct {
	client  *llm.OllamaClient
	tools   *toolset.Toolset
	persist *memory.Persistent
	archive *store.Archive
	agent   *agent.Agent
}

// buildStack opens the stateful layers (tools, memory, archive) and builds
// the agent on top of them.
func buildStack(observer agent.Observer) (*stack, error) {
	ts, err := toolset.Default(cfg)
	if err != nil {
		return nil, fmt.Errorf("building toolset: %w", err)
	}

	persist, err := memory.OpenPersistent(filepath.Join(cfg.StateDir, "memory"), memory.PersistentOptions{
		MaxFacts:    cfg.Memory.MaxFacts,
		SessionRing: cfg.Memory.SessionRing,
	})
	if err != nil {
		ts.Close()
		return nil, fmt.Errorf("opening persistent memory: %w", err)
	}

	archive, err := store.Open(filepath.Join(cfg.StateDir, "archive.db"))
	if err != nil {
		ts.Close()
		return nil, fmt.Errorf("opening session archive: %w", err)
	}

	s := &stack{tools: ts, persist: persist, archive: archive}
	s.agent, s.client = buildAgent(cfg, ts, persist, archive, observer)
	return s, nil
}

// buildAgent assembles the model-facing half of the stack. serve calls it
// again on config reload: the tool registry and the stores hold open
// resources and stay fixed, everything above them is cheap to rebuild.
func buildAgent(c *config.Config, ts *toolset.Toolset, persist *memory.Persistent, archive *store.Archive, observer agent.Observer) (*agent.Agent, *llm.OllamaClient) {
	client := llm.NewOllamaClient(llm.ClientConfig{
		Host:       c.Ollama.Host,
		Timeout:    c.GetOllamaTimeout(),
		MaxRetries: c.Ollama.MaxRetries,
		Backoff:    c.GetRetryBackoff(),
	})

	executor := tools.NewExecutor(ts.Registry, tools.ExecutorOptions{
		RetryDelay:     c.GetToolRetryDelay(),
		MaxOutputBytes: c.Tools.MaxOutputBytes,
	})
	rt := router.New(client, router.Options{
		Mode:            c.Router.Mode,
		ClassifierModel: c.Fastest().Name,
	})
	pl := planner.New(client, planner.Options{
		Model:                 c.Fastest().Name,
		ModelSupportsThinking: c.Fastest().SupportsThinking,
		ToolNames:             ts.Registry.Names(),
		Catalogue:             ts.Registry.Catalogue(),
	})

	ag := agent.New(client, ts.Registry, executor, rt, pl, agent.Options{
		Models:                c.Models,
		MaxIterations:         c.Agent.MaxIterations,
		MaxReplans:            c.Agent.MaxReplans,
		GroupWorkers:          c.Agent.GroupWorkers,
		ExecuteAllReadyGroups: c.Agent.ExecuteAllReadyGroups,
		WebSearch:             c.Router.WebSearch,
		Persistent:            persist,
		Observer:              observer,
		Archiver:              archive,
	})
	return ag, client
}

// Close releases the toolset browser and the archive handle.
func (s *stack) Close() {
	s.tools.Close()
	if err := s.archive.Close(); err != nil {
		logging.Get(logging.CategoryMemory).Warn("closing archive: %v", err)
	}
}

// withSignals cancels the returned context on SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
