package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// Browser owns a lazily launched headless Chromium instance shared by
// browser-backed tools. The first fetch launches the browser; later fetches
// reuse it. Callers hold one Browser per registry, so there is no
// package-level instance to race on.
type Browser struct {
	mu          sync.Mutex
	browser     *rod.Browser
	control     *launcher.Launcher
	pageTimeout time.Duration
}

// NewBrowser returns an unstarted Browser. Chromium launches on first use.
func NewBrowser() *Browser {
	return &Browser{pageTimeout: 60 * time.Second}
}

// connect launches Chromium if needed and returns the connected browser.
func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	logging.Tools("launching headless browser")

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-first-run")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.control = l
	b.browser = browser
	return browser, nil
}

// FetchText renders url in the headless browser and returns the page's
// visible body text.
func (b *Browser) FetchText(ctx context.Context, url string) (string, error) {
	browser, err := b.connect()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(b.pageTimeout)

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page did not finish loading: %w", err)
	}

	el, err := page.Element("body")
	if err != nil {
		return "", fmt.Errorf("page has no body: %w", err)
	}

	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	return text, nil
}

// Close shuts down the browser if it was ever launched.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return
	}
	if err := b.browser.Close(); err != nil {
		logging.ToolsDebug("browser close: %v", err)
	}
	if b.control != nil {
		b.control.Cleanup()
	}
	b.browser = nil
	b.control = nil
}

// BrowserFetchTool returns a tool that renders a page with a headless
// browser before extracting text. Slower than web_fetch, but it handles
// JavaScript-rendered pages, which is why it serves as web_fetch's fallback.
func BrowserFetchTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_fetch",
		Description: "Fetch a web page with a headless browser, for JavaScript-rendered content",
		Category:    tools.CategoryNetwork,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeBrowserFetch(ctx, b, args)
		},
		Schema: tools.Schema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "The URL to fetch",
				},
				"max_length": {
					Type:        "integer",
					Description: "Maximum content length in characters (default: 50000)",
					Default:     50000,
				},
			},
		},
	}
}

func executeBrowserFetch(ctx context.Context, b *Browser, args map[string]any) (string, error) {
	pageURL, _ := args["url"].(string)
	if pageURL == "" {
		return "", fmt.Errorf("url is required")
	}

	maxLength := 50000
	if ml, ok := intArg(args, "max_length"); ok && ml > 0 {
		maxLength = ml
	}

	logging.ToolsDebug("browser fetch: url=%s", pageURL)

	text, err := b.FetchText(ctx, pageURL)
	if err != nil {
		return "", err
	}

	logging.Tools("browser fetch completed: %s (%d chars)", pageURL, len(text))
	return capLength(text, maxLength), nil
}
