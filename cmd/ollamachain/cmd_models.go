package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the model ladder and which rungs Ollama can serve",
	Args:  cobra.NoArgs,
	RunE:  listModels,
}

func listModels(cmd *cobra.Command, args []string) error {
	client := llm.NewOllamaClient(llm.ClientConfig{
		Host:    cfg.Ollama.Host,
		Timeout: cfg.GetOllamaTimeout(),
	})

	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	styles := newCLIStyles()
	available := map[string]bool{}
	served, err := client.ListModels(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.Warn.Render(
			fmt.Sprintf("cannot reach ollama at %s: %v", client.Host(), err)))
	}
	for _, name := range served {
		available[name] = true
	}

	fmt.Println(styles.Title.Render(fmt.Sprintf("ladder (%d rungs, fastest first)", len(cfg.Models))))
	for i, m := range cfg.Models {
		mark := styles.Fail.Render("✗")
		if available[m.Name] {
			mark = styles.OK.Render("✓")
		}
		thinking := ""
		if m.SupportsThinking {
			thinking = styles.Muted.Render(" thinking")
		}
		fmt.Printf("%s %d. %s %s%s\n", mark, i+1, styles.Step.Render(m.Name),
			styles.Muted.Render(fmt.Sprintf("%dk context", m.ContextWindow/1024)), thinking)
	}

	extra := 0
	for _, name := range served {
		if !ladderHas(name) {
			extra++
		}
	}
	if extra > 0 {
		fmt.Println(styles.Muted.Render(fmt.Sprintf("%d more models served but not on the ladder", extra)))
	}
	return nil
}

func ladderHas(name string) bool {
	for _, m := range cfg.Models {
		if m.Name == name {
			return true
		}
	}
	return false
}
