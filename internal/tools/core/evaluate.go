package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// The evaluate tool interprets Go expressions in a restricted sandbox.
// Only the math package is loaded into the interpreter's symbol table, so
// expressions cannot reach the filesystem, the network, or os/exec: any
// import of an unloaded package fails symbol resolution inside the
// interpreter. Panics raised by the evaluated code are recovered and
// reported as a failed result carrying the panic's type name.

// evalBlockedTokens are rejected before interpretation. The symbol table is
// the real gate; this check exists to give the model a clear error instead
// of an opaque resolution failure.
var evalBlockedTokens = []string{
	"import",
	"os.",
	"exec.",
	"syscall",
	"unsafe",
}

const maxExpressionLen = 4096

// EvaluateTool returns a tool for evaluating Go expressions.
func EvaluateTool() *tools.Tool {
	return &tools.Tool{
		Name:        "evaluate",
		Description: "Evaluate a Go expression (arithmetic, string operations, math functions). No file, network, or process access",
		Category:    tools.CategoryAnalysis,
		Execute:     executeEvaluate,
		Schema: tools.Schema{
			Required: []string{"expression"},
			Properties: map[string]tools.Property{
				"expression": {
					Type:        "string",
					Description: "The Go expression to evaluate, e.g. '2*math.Pi*6371' or 'len(\"hello\")'",
				},
			},
		},
	}
}

func executeEvaluate(ctx context.Context, args map[string]any) (result string, err error) {
	expression, _ := args["expression"].(string)
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", fmt.Errorf("expression is required")
	}
	if len(expression) > maxExpressionLen {
		return "", fmt.Errorf("expression too long (%d bytes, max %d)", len(expression), maxExpressionLen)
	}

	for _, token := range evalBlockedTokens {
		if strings.Contains(expression, token) {
			return "", fmt.Errorf("expression rejected: %q is not available in the sandbox", token)
		}
	}

	logging.ToolsDebug("evaluate: %s", expression)

	// Yaegi can panic on malformed input in addition to returning errors.
	// Recover so the caller always sees a failed result, never a crash.
	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = fmt.Errorf("evaluation panicked (%T): %v", r, r)
		}
	}()

	type evalOutcome struct {
		text string
		err  error
	}
	done := make(chan evalOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalOutcome{err: fmt.Errorf("evaluation panicked (%T): %v", r, r)}
			}
		}()
		text, evalErr := evalRestricted(expression)
		if evalErr != nil {
			// Report the concrete error type so failures are distinguishable
			// (syntax error vs interpreted panic vs resolution failure).
			done <- evalOutcome{err: fmt.Errorf("evaluation failed (%T): %w", evalErr, evalErr)}
			return
		}
		done <- evalOutcome{text: text}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", out.err
		}
		logging.Tools("evaluate completed: %d bytes", len(out.text))
		return out.text, nil
	case <-ctx.Done():
		return "", fmt.Errorf("evaluation timed out: %w", ctx.Err())
	}
}

// evalRestricted runs the expression in a fresh interpreter. A new instance
// per call keeps invocations independent and avoids sharing the interpreter
// across goroutines.
func evalRestricted(expression string) (string, error) {
	i := interp.New(interp.Options{})

	// Load only math symbols. Everything else stays unresolvable.
	restricted := interp.Exports{
		"math/math": stdlib.Symbols["math/math"],
	}
	if err := i.Use(restricted); err != nil {
		return "", err
	}
	if _, err := i.Eval(`import "math"`); err != nil {
		return "", err
	}

	v, err := i.Eval(expression)
	if err != nil {
		return "", err
	}
	if !v.IsValid() {
		return "(no value)", nil
	}
	return fmt.Sprintf("%v", v), nil
}
