package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

const defaultSearchEndpoint = "https://html.duckduckgo.com/html/"

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Options configures the research tools. The zero value is usable.
type Options struct {
	// HTTPClient is used for search and fetch requests. Defaults to a
	// client with a 30s timeout.
	HTTPClient *http.Client
	// SearchEndpoint overrides the DuckDuckGo HTML endpoint, mainly for tests.
	SearchEndpoint string
	// MaxResults caps how many results a search returns by default.
	MaxResults int
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.SearchEndpoint == "" {
		o.SearchEndpoint = defaultSearchEndpoint
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 5
	}
	return o
}

// WebSearchTool returns a tool for searching the web.
func WebSearchTool(opts Options) *tools.Tool {
	opts = opts.withDefaults()
	return &tools.Tool{
		Name:        "web_search",
		Description: "Search the web for information using DuckDuckGo",
		Category:    tools.CategoryNetwork,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeSearch(ctx, opts, args, "")
		},
		Schema: tools.Schema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "The search query",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results to return (default: 5)",
					Default:     5,
				},
			},
		},
	}
}

// WebSearchNewsTool returns a tool biased toward recent coverage. It queries
// the same endpoint with a past-week date filter, which makes it a useful
// fallback when a general search returns stale or empty results.
func WebSearchNewsTool(opts Options) *tools.Tool {
	opts = opts.withDefaults()
	return &tools.Tool{
		Name:        "web_search_news",
		Description: "Search the web for recent news and coverage from the past week",
		Category:    tools.CategoryNetwork,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeSearch(ctx, opts, args, "w")
		},
		Schema: tools.Schema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "The search query",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results to return (default: 5)",
					Default:     5,
				},
			},
		},
	}
}

func executeSearch(ctx context.Context, opts Options, args map[string]any, dateFilter string) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	maxResults := opts.MaxResults
	if mr, ok := intArg(args, "max_results"); ok && mr > 0 {
		maxResults = mr
	}
	if maxResults > 30 {
		maxResults = 30
	}

	logging.ToolsDebug("web search: query=%q, max_results=%d, df=%q", query, maxResults, dateFilter)

	results, err := searchDuckDuckGo(ctx, opts, query, maxResults, dateFilter)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		logging.Tools("web search returned no results for: %s", query)
		return "No results found for: " + query, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Search Results for: %s\n\n", query))
	for i, result := range results {
		sb.WriteString(fmt.Sprintf("## %d. %s\n", i+1, result.Title))
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", result.URL))
		if result.Snippet != "" {
			sb.WriteString(fmt.Sprintf("\n%s\n", result.Snippet))
		}
		sb.WriteString("\n")
	}

	logging.Tools("web search completed: %d results for %q", len(results), query)
	return strings.TrimSpace(sb.String()), nil
}

// searchDuckDuckGo queries the DuckDuckGo HTML interface, which needs no API
// key. dateFilter maps to the df parameter ("w" = past week, "" = any time).
func searchDuckDuckGo(ctx context.Context, opts Options, query string, maxResults int, dateFilter string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if dateFilter != "" {
		params.Set("df", dateFilter)
	}
	searchURL := opts.SearchEndpoint + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// The HTML interface rejects obvious bot UAs.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return parseSearchResults(string(body), maxResults)
}

// parseSearchResults extracts search results from DuckDuckGo HTML. Result
// blocks are divs whose class carries both "result" and "results_links".
func parseSearchResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}

		if n.Type == html.ElementNode && n.Data == "div" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				result := extractResult(n)
				if result.URL != "" && result.Title != "" {
					results = append(results, result)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

// extractResult pulls title, URL, and snippet from a single result div.
func extractResult(n *html.Node) SearchResult {
	var result SearchResult

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result__a") {
				result.URL = attrValue(n, "href")
				result.Title = textContent(n)
			} else if strings.Contains(class, "result__snippet") {
				result.Snippet = textContent(n)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(n)
	result.URL = decodeRedirect(result.URL)
	return result
}

// decodeRedirect unwraps DuckDuckGo's uddg redirect URLs.
func decodeRedirect(raw string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(raw, prefix) {
		return raw
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return raw
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// textContent returns all text within a node, whitespace-normalized.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			getText(c)
		}
	}
	getText(n)
	return strings.TrimSpace(sb.String())
}

// intArg extracts an integer argument whether it arrived as int or float64.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
