package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestEvaluateTool_Definition(t *testing.T) {
	t.Parallel()

	tool := EvaluateTool()

	if tool.Name != "evaluate" {
		t.Errorf("Name mismatch: got %q", tool.Name)
	}
	if len(tool.Schema.Required) != 1 || tool.Schema.Required[0] != "expression" {
		t.Errorf("Required = %v", tool.Schema.Required)
	}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expression string
		want       string
	}{
		{"2 + 3", "5"},
		{"10 / 4", "2"},
		{"10.0 / 4", "2.5"},
		{`len("hello")`, "5"},
		{`strings := "na"; strings + strings`, "nana"},
	}
	for _, tt := range tests {
		got, err := executeEvaluate(context.Background(), map[string]any{
			"expression": tt.expression,
		})
		if err != nil {
			t.Errorf("evaluate(%q) error: %v", tt.expression, err)
			continue
		}
		if got != tt.want {
			t.Errorf("evaluate(%q) = %q, want %q", tt.expression, got, tt.want)
		}
	}
}

func TestEvaluate_MathNamespace(t *testing.T) {
	t.Parallel()

	got, err := executeEvaluate(context.Background(), map[string]any{
		"expression": "math.Sqrt(16)",
	})
	if err != nil {
		t.Fatalf("evaluate error: %v", err)
	}
	if got != "4" {
		t.Errorf("math.Sqrt(16) = %q, want \"4\"", got)
	}
}

func TestEvaluate_RejectsBlockedTokens(t *testing.T) {
	t.Parallel()

	blocked := []string{
		`import "os"`,
		`os.ReadFile("/etc/passwd")`,
		`exec.Command("ls")`,
		"syscall.Kill(1, 9)",
		"unsafe.Pointer(nil)",
	}
	for _, expr := range blocked {
		_, err := executeEvaluate(context.Background(), map[string]any{
			"expression": expr,
		})
		if err == nil {
			t.Errorf("evaluate(%q) should have been rejected", expr)
		}
	}
}

func TestEvaluate_UnresolvableSymbolFails(t *testing.T) {
	t.Parallel()

	// Not caught by the token scan, but the restricted symbol table
	// cannot resolve it.
	_, err := executeEvaluate(context.Background(), map[string]any{
		"expression": `fmt.Sprintf("%d", 1)`,
	})
	if err == nil {
		t.Error("expected resolution failure for package outside the sandbox")
	}
}

func TestEvaluate_ErrorCarriesTypeName(t *testing.T) {
	t.Parallel()

	_, err := executeEvaluate(context.Background(), map[string]any{
		"expression": "2 +",
	})
	if err == nil {
		t.Fatal("expected error for malformed expression")
	}
	// Error detail names the concrete failure type in parentheses.
	if !strings.Contains(err.Error(), "(") || !strings.Contains(err.Error(), ")") {
		t.Errorf("error should carry a type name: %v", err)
	}
}

func TestEvaluate_EmptyExpression(t *testing.T) {
	t.Parallel()

	_, err := executeEvaluate(context.Background(), map[string]any{})
	if err == nil {
		t.Error("expected error for missing expression")
	}
}

func TestEvaluate_ContextTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := executeEvaluate(ctx, map[string]any{
		"expression": "for {}",
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want timeout", err)
	}
}
