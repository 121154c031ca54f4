package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/tools"
	"github.com/midu16/ollama-chain-sub000/internal/tools/toolset"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the agent can call",
	Args:  cobra.NoArgs,
	RunE:  listTools,
}

func listTools(cmd *cobra.Command, args []string) error {
	ts, err := toolset.Default(cfg)
	if err != nil {
		return err
	}
	defer ts.Close()

	styles := newCLIStyles()
	categories := []tools.Category{
		tools.CategorySystem,
		tools.CategoryFiles,
		tools.CategoryNetwork,
		tools.CategoryAnalysis,
	}

	for _, cat := range categories {
		group := ts.Registry.GetByCategory(cat)
		if len(group) == 0 {
			continue
		}
		fmt.Println(styles.Title.Render(string(cat)))
		for _, t := range group {
			retries := ""
			if t.MaxRetries > 1 {
				retries = fmt.Sprintf(" (%d attempts)", t.MaxRetries)
			}
			fmt.Printf("  %s %s%s\n",
				styles.Step.Render(fmt.Sprintf("%-16s", t.Name)),
				t.Description,
				styles.Muted.Render(retries))
		}
		fmt.Println()
	}
	fmt.Println(styles.Muted.Render(fmt.Sprintf("%d tools registered", ts.Registry.Count())))
	return nil
}
