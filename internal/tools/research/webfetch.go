package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// skippedTags never contribute text to the extracted page content.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
	"footer":   true,
	"header":   true,
}

// headingPrefix maps heading tags to their markdown markers.
var headingPrefix = map[string]string{
	"h1": "# ",
	"h2": "## ",
	"h3": "### ",
	"h4": "#### ",
	"h5": "##### ",
	"h6": "###### ",
}

// WebFetchTool returns a tool for fetching a page over plain HTTP and
// reducing it to readable markdown. Pages that need JavaScript to render
// are the browser_fetch tool's job.
func WebFetchTool(opts Options) *tools.Tool {
	opts = opts.withDefaults()
	return &tools.Tool{
		Name:        "web_fetch",
		Description: "Fetch a web page and convert its content to markdown",
		Category:    tools.CategoryNetwork,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeWebFetch(ctx, opts, args)
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

func executeWebFetch(ctx context.Context, opts Options, args map[string]any) (string, error) {
	pageURL, _ := args["url"].(string)
	if pageURL == "" {
		return "", fmt.Errorf("url is required")
	}

	maxLength := 50000
	if ml, ok := intArg(args, "max_length"); ok && ml > 0 {
		maxLength = ml
	}

	logging.ToolsDebug("web fetch: url=%s, max_length=%d", pageURL, maxLength)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ollama-chain/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") ||
		strings.Contains(contentType, "text/markdown") ||
		strings.Contains(contentType, "application/json") {
		return capLength(string(body), maxLength), nil
	}

	markdown, err := htmlToMarkdown(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}

	logging.Tools("web fetch completed: %s (%d chars)", pageURL, len(markdown))
	return capLength(markdown, maxLength), nil
}

func capLength(s string, maxLength int) string {
	if len(s) > maxLength {
		return s[:maxLength] + "\n\n[...truncated...]"
	}
	return s
}

// htmlToMarkdown reduces an HTML document to simplified markdown.
func htmlToMarkdown(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	renderNode(doc, &sb, 0)

	result := multiNewlinePattern.ReplaceAllString(sb.String(), "\n\n")
	result = multiSpacePattern.ReplaceAllString(result, " ")

	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func renderNode(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 50 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		if skippedTags[n.Data] {
			return
		}
		if prefix, ok := headingPrefix[n.Data]; ok {
			sb.WriteString("\n\n" + prefix)
		}
		switch n.Data {
		case "title":
			sb.WriteString("# ")
		case "p", "div":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "code":
			sb.WriteString("`")
		case "pre":
			sb.WriteString("\n\n```\n")
		case "a":
			if href := attrValue(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
				sb.WriteString("[")
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(c, sb, depth+1)
	}

	if n.Type != html.ElementNode {
		return
	}
	if _, ok := headingPrefix[n.Data]; ok {
		sb.WriteString("\n\n")
		return
	}
	switch n.Data {
	case "title":
		sb.WriteString("\n\n")
	case "code":
		sb.WriteString("`")
	case "pre":
		sb.WriteString("\n```\n\n")
	case "a":
		if href := attrValue(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			sb.WriteString(fmt.Sprintf("](%s)", href))
		}
	}
}
