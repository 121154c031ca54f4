package core

import (
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// RegisterAll registers the file and evaluation tools with the given registry.
func RegisterAll(registry *tools.Registry) error {
	allTools := []*tools.Tool{
		// File operations
		ReadFileTool(),
		WriteFileTool(),
		AppendFileTool(),
		ListDirTool(),

		// Expression evaluation
		EvaluateTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
