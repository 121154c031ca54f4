package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show one archived session with its tool calls",
	Args:  cobra.ExactArgs(1),
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "sessions to list")
	historyCmd.AddCommand(historyShowCmd)
}

func openArchive() (*store.Archive, error) {
	return store.Open(filepath.Join(cfg.StateDir, "archive.db"))
}

func listHistory(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	entries, err := archive.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}

	styles := newCLIStyles()
	if len(entries) == 0 {
		fmt.Println(styles.Muted.Render("no archived sessions"))
		return nil
	}
	for _, e := range entries {
		mark := styles.OK.Render("✓")
		if e.Degraded {
			mark = styles.Warn.Render("◐")
		}
		fmt.Printf("%s %s %s %s %s\n",
			mark,
			styles.Muted.Render(e.StartedAt.Local().Format("2006-01-02 15:04")),
			styles.Step.Render(e.SessionID),
			e.Goal,
			styles.Muted.Render(fmt.Sprintf("(%s, %d iterations, %d tool calls)",
				e.Complexity, e.Iterations, e.ToolCalls)))
	}
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx := context.Background()
	e, err := archive.Get(ctx, args[0])
	if err != nil {
		return err
	}

	styles := newCLIStyles()
	fmt.Println(styles.Title.Render(e.SessionID))
	fmt.Printf("%s %s\n", styles.Muted.Render("goal:   "), e.Goal)
	fmt.Printf("%s %s complexity, %d iterations, %d replans, %d steps ok, %d failed, %s\n",
		styles.Muted.Render("run:    "), e.Complexity, e.Iterations, e.Replans,
		e.StepsCompleted, e.StepsFailed,
		e.FinishedAt.Sub(e.StartedAt).Round(time.Second))
	if e.Degraded {
		fmt.Println(styles.Warn.Render("         answer degraded to the facts ledger"))
	}
	if len(e.Facts) > 0 {
		fmt.Println(styles.Muted.Render("facts:  "))
		for _, f := range e.Facts {
			fmt.Printf("  - %s\n", f)
		}
	}

	calls, err := archive.Invocations(ctx, e.SessionID)
	if err != nil {
		return err
	}
	if len(calls) > 0 {
		fmt.Println(styles.Muted.Render("tools:  "))
		for _, c := range calls {
			mark := styles.OK.Render("✓")
			detail := fmt.Sprintf("%dms", c.DurationMs)
			if !c.Success {
				mark = styles.Fail.Render("✗")
				detail = c.ErrorDetail
			}
			fmt.Printf("  %s step %d %s %s %s\n",
				mark, c.StepID, styles.Step.Render(c.Tool),
				styles.Muted.Render(c.ArgsJSON), styles.Muted.Render(detail))
		}
	}

	fmt.Println(styles.divider(60))
	fmt.Println(styles.Answer.Render(renderMarkdown(e.Answer, 100)))
	return nil
}
