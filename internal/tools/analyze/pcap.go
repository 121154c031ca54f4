// Package analyze provides diagnostic tools that gather data from local
// commands and reduce it to text an agent can reason over. The tools here
// never mutate anything: they run read-only inspection commands and format
// the output.
package analyze

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// commandRunner executes a command and returns its combined output. Tests
// inject a fake runner so no external binaries are needed.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Options configures the analyze tools.
type Options struct {
	// Timeout bounds each inspection command. Defaults to 60s.
	Timeout time.Duration
	// Runner overrides subprocess execution, mainly for tests.
	Runner commandRunner
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Runner == nil {
		o.Runner = runCommand
	}
	return o
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// AnalyzePcapTool returns a tool that summarizes a packet capture file.
func AnalyzePcapTool(opts Options) *tools.Tool {
	opts = opts.withDefaults()
	return &tools.Tool{
		Name:        "analyze_pcap",
		Description: "Summarize a packet capture file: protocols, top endpoints, top conversations",
		Category:    tools.CategoryAnalysis,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeAnalyzePcap(ctx, opts, args)
		},
		Schema: tools.Schema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "Path to the .pcap file",
				},
				"max_packets": {
					Type:        "integer",
					Description: "Maximum packets to read (default: 2000)",
					Default:     2000,
				},
			},
		},
	}
}

func executeAnalyzePcap(ctx context.Context, opts Options, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	maxPackets := 2000
	if mp, ok := intArg(args, "max_packets"); ok && mp > 0 {
		maxPackets = mp
	}

	logging.ToolsDebug("analyze_pcap: path=%s, max_packets=%d", path, maxPackets)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	out, err := opts.Runner(ctx, "tcpdump", "-nn", "-q", "-r", path, "-c", fmt.Sprintf("%d", maxPackets))
	if err != nil {
		return "", fmt.Errorf("capture read failed: %w", err)
	}

	summary := summarizeCapture(out)
	logging.Tools("analyze_pcap completed: %s", path)
	return summary, nil
}

// summarizeCapture reduces tcpdump -q line output to protocol, endpoint,
// and conversation counts. Quiet-mode lines look like:
//
//	12:34:56.789 IP 10.0.0.2.55123 > 192.168.1.5.443: tcp 120
func summarizeCapture(out string) string {
	protocols := map[string]int{}
	endpoints := map[string]int{}
	conversations := map[string]int{}
	total := 0

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		// timestamp, link type, src, ">", dst, proto...
		if len(fields) < 5 || fields[3] != ">" {
			continue
		}
		total++

		src := stripPort(fields[2])
		dst := stripPort(strings.TrimSuffix(fields[4], ":"))
		endpoints[src]++
		endpoints[dst]++

		proto := strings.ToLower(fields[1])
		if len(fields) >= 6 {
			proto = strings.TrimSuffix(strings.ToLower(fields[5]), ",")
		}
		protocols[proto]++

		// Direction-insensitive conversation key.
		a, b := src, dst
		if a > b {
			a, b = b, a
		}
		conversations[a+" <-> "+b]++
	}

	if total == 0 {
		return "No packets parsed from capture."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Capture Summary (%d packets)\n\n", total))

	sb.WriteString("## Protocols\n")
	for _, kv := range topCounts(protocols, 10) {
		sb.WriteString(fmt.Sprintf("- %s: %d packets\n", kv.key, kv.count))
	}

	sb.WriteString("\n## Top Endpoints\n")
	for _, kv := range topCounts(endpoints, 10) {
		sb.WriteString(fmt.Sprintf("- %s: %d packets\n", kv.key, kv.count))
	}

	sb.WriteString("\n## Top Conversations\n")
	for _, kv := range topCounts(conversations, 10) {
		sb.WriteString(fmt.Sprintf("- %s: %d packets\n", kv.key, kv.count))
	}

	return strings.TrimSpace(sb.String())
}

// stripPort removes the trailing .port tcpdump appends to IPv4 addresses.
func stripPort(addr string) string {
	idx := strings.LastIndex(addr, ".")
	if idx <= 0 {
		return addr
	}
	// Only strip when what follows the last dot is numeric and the rest
	// still contains dots (so bare hostnames survive).
	port := addr[idx+1:]
	if port == "" || strings.Count(addr[:idx], ".") < 1 {
		return addr
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return addr
		}
	}
	return addr[:idx]
}

type keyCount struct {
	key   string
	count int
}

// topCounts returns the n highest counts, ties broken by key for stable
// output.
func topCounts(m map[string]int, n int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
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
