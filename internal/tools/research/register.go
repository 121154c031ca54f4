package research

import (
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// RegisterAll registers the network research tools with the given registry.
// The returned Browser is shared by browser-backed tools and should be
// closed when the registry's owner shuts down.
func RegisterAll(registry *tools.Registry, opts Options) (*Browser, error) {
	browser := NewBrowser()

	allTools := []*tools.Tool{
		WebSearchTool(opts),
		WebSearchNewsTool(opts),
		WebFetchTool(opts),
		BrowserFetchTool(browser),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			browser.Close()
			return nil, err
		}
	}

	return browser, nil
}
