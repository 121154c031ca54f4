package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/midu16/ollama-chain-sub000/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage persistent memory",
}

var memoryFactsCmd = &cobra.Command{
	Use:   "facts",
	Short: "List stored facts, oldest first",
	Args:  cobra.NoArgs,
	RunE:  listFacts,
}

var memorySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the session summary ring",
	Args:  cobra.NoArgs,
	RunE:  listSessions,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored facts",
	Args:  cobra.NoArgs,
	RunE:  clearFacts,
}

func init() {
	memoryCmd.AddCommand(memoryFactsCmd)
	memoryCmd.AddCommand(memorySessionsCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}

func openMemory() (*memory.Persistent, error) {
	return memory.OpenPersistent(filepath.Join(cfg.StateDir, "memory"), memory.PersistentOptions{
		MaxFacts:    cfg.Memory.MaxFacts,
		SessionRing: cfg.Memory.SessionRing,
	})
}

func listFacts(cmd *cobra.Command, args []string) error {
	persist, err := openMemory()
	if err != nil {
		return err
	}

	styles := newCLIStyles()
	facts := persist.Facts()
	if len(facts) == 0 {
		fmt.Println(styles.Muted.Render("no facts stored"))
		return nil
	}
	fmt.Println(styles.Title.Render(fmt.Sprintf("%d facts", len(facts))))
	for i, f := range facts {
		fmt.Printf("%s %s\n", styles.Muted.Render(fmt.Sprintf("%3d.", i+1)), f)
	}
	return nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	persist, err := openMemory()
	if err != nil {
		return err
	}

	styles := newCLIStyles()
	sessions := persist.Sessions()
	if len(sessions) == 0 {
		fmt.Println(styles.Muted.Render("no sessions recorded"))
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s %s %s\n     %s\n",
			styles.Muted.Render(s.Timestamp.Format("2006-01-02 15:04")),
			styles.Step.Render(s.SessionID),
			s.Goal,
			styles.Muted.Render(s.Summary))
	}
	return nil
}

func clearFacts(cmd *cobra.Command, args []string) error {
	persist, err := openMemory()
	if err != nil {
		return err
	}

	n := len(persist.Facts())
	if err := persist.ClearFacts(); err != nil {
		return err
	}
	fmt.Printf("cleared %d facts\n", n)
	return nil
}
