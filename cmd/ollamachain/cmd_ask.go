package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question straight up the model chain, no tools",
	Long: `Sends the question to the fastest model and has each stronger model in
the routed pool refine the previous answer. No planning, no tools, no
session state: the quick path for questions that need judgement but no
evidence gathering.`,
	Args: cobra.MinimumNArgs(1),
	RunE: askQuestion,
}

func askQuestion(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	styles := newCLIStyles()

	st, err := buildStack(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := withSignals(context.Background())
	defer cancel()

	start := time.Now()
	answer, decision, err := st.agent.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(styles.Answer.Render(renderMarkdown(answer, 100)))
	fmt.Println(styles.divider(60))
	fmt.Println(styles.Muted.Render(fmt.Sprintf("%s complexity · chained %s · %s",
		decision.Complexity, strings.Join(decision.Models, " → "),
		time.Since(start).Round(time.Millisecond))))
	return nil
}
