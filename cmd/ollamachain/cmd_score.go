package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/score"
)

var scoreCmd = &cobra.Command{
	Use:   "score [prompt]",
	Short: "Grade a prompt before spending models on it",
	Long: `Score grades a prompt on length, specificity, context, question clarity,
and actionability without calling a model. Use it to sharpen a prompt
before an expensive run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: scorePrompt,
}

func scorePrompt(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	rep := score.Score(prompt)

	styles := newCLIStyles()
	verdict := styles.Fail
	switch {
	case rep.Score >= 80:
		verdict = styles.OK
	case rep.Score >= 55:
		verdict = styles.Step
	case rep.Score >= 30:
		verdict = styles.Warn
	}

	fmt.Printf("%s %s\n", styles.Title.Render(fmt.Sprintf("%d/100", rep.Score)),
		verdict.Render(rep.Verdict))
	for _, s := range rep.Suggestions {
		fmt.Printf("  %s %s\n", styles.Muted.Render("•"), s)
	}
	return nil
}
