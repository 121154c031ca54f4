package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// snapshotSections are the kubectl views collected by k8s_snapshot, in
// output order.
var snapshotSections = []struct {
	title string
	args  []string
}{
	{"Nodes", []string{"get", "nodes", "-o", "wide"}},
	{"Pods", []string{"get", "pods", "-o", "wide"}},
	{"Deployments", []string{"get", "deployments"}},
	{"Services", []string{"get", "services"}},
	{"Recent Events", []string{"get", "events", "--sort-by=.lastTimestamp"}},
}

// K8sSnapshotTool returns a tool that collects a read-only cluster overview.
func K8sSnapshotTool(opts Options) *tools.Tool {
	opts = opts.withDefaults()
	return &tools.Tool{
		Name:        "k8s_snapshot",
		Description: "Collect a read-only Kubernetes cluster overview: nodes, pods, deployments, services, events",
		Category:    tools.CategoryAnalysis,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeK8sSnapshot(ctx, opts, args)
		},
		Schema: tools.Schema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"namespace": {
					Type:        "string",
					Description: "Namespace to inspect (default: all namespaces)",
				},
			},
		},
	}
}

func executeK8sSnapshot(ctx context.Context, opts Options, args map[string]any) (string, error) {
	namespace, _ := args["namespace"].(string)

	logging.ToolsDebug("k8s_snapshot: namespace=%q", namespace)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("# Cluster Snapshot\n")
	if namespace != "" {
		sb.WriteString(fmt.Sprintf("Namespace: %s\n", namespace))
	}

	failures := 0
	for _, section := range snapshotSections {
		kubectlArgs := append([]string{}, section.args...)
		// Nodes are cluster-scoped; everything else takes the namespace flag.
		if section.title != "Nodes" {
			if namespace != "" {
				kubectlArgs = append(kubectlArgs, "-n", namespace)
			} else {
				kubectlArgs = append(kubectlArgs, "--all-namespaces")
			}
		}

		out, err := opts.Runner(ctx, "kubectl", kubectlArgs...)
		sb.WriteString(fmt.Sprintf("\n## %s\n", section.title))
		if err != nil {
			failures++
			sb.WriteString(fmt.Sprintf("(unavailable: %v)\n", err))
			continue
		}
		out = strings.TrimSpace(out)
		if out == "" {
			out = "(none)"
		}
		sb.WriteString(out + "\n")
	}

	// A snapshot where nothing worked is an error, not a report.
	if failures == len(snapshotSections) {
		return "", fmt.Errorf("kubectl unavailable or cluster unreachable")
	}

	logging.Tools("k8s_snapshot completed: %d/%d sections", len(snapshotSections)-failures, len(snapshotSections))
	return strings.TrimSpace(sb.String()), nil
}

// RegisterAll registers the analyzer tools with the given registry.
func RegisterAll(registry *tools.Registry, opts Options) error {
	allTools := []*tools.Tool{
		AnalyzePcapTool(opts),
		K8sSnapshotTool(opts),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
