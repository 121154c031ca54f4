// Package toolset assembles the default tool registry from configuration.
// It is the single place that decides which tools an agent run starts with;
// callers receive an explicit registry rather than reaching into a global.
package toolset

import (
	"net/http"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/config"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
	"github.com/midu16/ollama-chain-sub000/internal/tools/analyze"
	"github.com/midu16/ollama-chain-sub000/internal/tools/core"
	"github.com/midu16/ollama-chain-sub000/internal/tools/research"
	"github.com/midu16/ollama-chain-sub000/internal/tools/shell"
)

// Toolset bundles a populated registry with the resources behind it.
type Toolset struct {
	Registry *tools.Registry

	browser *research.Browser
}

// Default builds the standard registry: shell, file, evaluation, research,
// and analyzer tools, configured from cfg.
func Default(cfg *config.Config) (*Toolset, error) {
	registry := tools.NewRegistry()

	if err := shell.RegisterAll(registry, shell.Options{
		Timeout:      cfg.GetShellTimeout(),
		DenyPatterns: cfg.Tools.DenyPatterns,
	}); err != nil {
		return nil, err
	}

	if err := core.RegisterAll(registry); err != nil {
		return nil, err
	}

	browser, err := research.RegisterAll(registry, research.Options{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		MaxResults: cfg.Tools.SearchResults,
	})
	if err != nil {
		return nil, err
	}

	if err := analyze.RegisterAll(registry, analyze.Options{}); err != nil {
		browser.Close()
		return nil, err
	}

	return &Toolset{Registry: registry, browser: browser}, nil
}

// Close releases resources held by the toolset, such as the shared headless
// browser.
func (t *Toolset) Close() {
	if t.browser != nil {
		t.browser.Close()
	}
}
