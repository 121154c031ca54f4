package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
)

var runInteractive bool

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run a goal through the planning and execution loop",
	Long: `Routes the goal onto the model ladder, decomposes it into a plan,
executes tool steps (in parallel where the plan allows), replans when
evidence demands it, and synthesizes the answer through progressive
refinement up the ladder.

Progress streams to stderr; the answer goes to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "full-screen progress view")
}

// progressPrinter streams phase and step transitions to stderr so stdout
// stays clean for the answer.
type progressPrinter struct {
	styles cliStyles
}

func (p *progressPrinter) OnPhase(phase agent.Phase, detail string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", p.styles.phaseLabel(phase), p.styles.Muted.Render(detail))
}

func (p *progressPrinter) OnStep(u agent.StepUpdate) {
	fmt.Fprintln(os.Stderr, p.styles.stepLabel(u))
}

func runGoal(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")
	if runInteractive {
		return runGoalInteractive(goal)
	}

	styles := newCLIStyles()
	st, err := buildStack(&progressPrinter{styles: styles})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := withSignals(context.Background())
	defer cancel()

	res, err := st.agent.Run(ctx, goal)
	if res == nil {
		return err
	}
	printResult(res, err, styles, 100)
	return nil
}

// printResult renders the answer and a one-line run summary. A non-nil err
// alongside a result means synthesis degraded to the facts ledger.
func printResult(res *agent.Result, err error, styles cliStyles, width int) {
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.Warn.Render("synthesis degraded: "+err.Error()))
	}

	fmt.Println(styles.Answer.Render(renderMarkdown(res.Answer, width)))
	fmt.Println(styles.divider(60))
	fmt.Println(styles.Muted.Render(fmt.Sprintf(
		"%s · %s complexity · %d iterations · %d replans · %d steps ok, %d failed · %s",
		res.SessionID, res.Complexity, res.Iterations, res.Replans,
		res.StepsCompleted, res.StepsFailed,
		res.Duration.Round(time.Millisecond))))
}
