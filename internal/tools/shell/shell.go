// Package shell provides the shell execution tool and its safety gate.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// Options configures the shell tool.
type Options struct {
	// Timeout is the default command timeout (overridable per call
	// via timeout_seconds). Defaults to 30s.
	Timeout time.Duration

	// DenyPatterns extends the built-in safety denylist.
	DenyPatterns []string

	// WorkDir is the default working directory.
	WorkDir string
}

// Tool returns the shell command tool.
func Tool(opts Options) *tools.Tool {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	extra := compileExtraPatterns(opts.DenyPatterns)

	return &tools.Tool{
		Name:        "shell",
		Description: "Execute a shell command and return its combined output",
		Category:    tools.CategorySystem,
		MaxRetries:  1,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeShell(ctx, args, opts, extra)
		},
		Schema: tools.Schema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command to execute",
				},
				"working_dir": {
					Type:        "string",
					Description: "Working directory for the command",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 30)",
					Default:     30,
				},
			},
		},
	}
}

func executeShell(ctx context.Context, args map[string]any, opts Options, extra []*regexp.Regexp) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	if err := CheckCommand(command, extra); err != nil {
		return "", err
	}

	workingDir := opts.WorkDir
	if wd, ok := args["working_dir"].(string); ok && wd != "" {
		workingDir = wd
	}

	timeout := opts.Timeout
	if t, ok := args["timeout_seconds"].(float64); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	} else if t, ok := args["timeout_seconds"].(int); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	}

	logging.ToolsDebug("shell: cmd=%s, dir=%s, timeout=%v", command, workingDir, timeout)

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %v: %w", timeout, context.DeadlineExceeded)
		}
		logging.Tools("shell failed: %s (%v)", command, err)
		return output, fmt.Errorf("command failed: %w\nOutput:\n%s", err, output)
	}

	logging.Tools("shell completed: %s (%d bytes output)", command, len(output))
	return output, nil
}

// RegisterAll registers the shell tools with the given registry.
func RegisterAll(registry *tools.Registry, opts Options) error {
	return registry.Register(Tool(opts))
}
