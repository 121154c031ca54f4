package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func nopExecute(ctx context.Context, args map[string]any) (string, error) {
	return "", nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	tool := &Tool{Name: "alpha", Category: CategorySystem, Execute: nopExecute}
	if err := r.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := r.Get("alpha"); got != tool {
		t.Error("Get should return the registered tool")
	}
	if !r.Has("alpha") {
		t.Error("Has should be true")
	}
	if r.Has("beta") {
		t.Error("Has should be false for unknown tool")
	}
	if r.Get("beta") != nil {
		t.Error("Get should return nil for unknown tool")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&Tool{Name: "dup", Execute: nopExecute}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(&Tool{Name: "dup", Execute: nopExecute})
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("err = %v, want ErrToolAlreadyRegistered", err)
	}
}

func TestRegistry_InvalidToolRejected(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&Tool{Execute: nopExecute}); !errors.Is(err, ErrToolNameEmpty) {
		t.Errorf("empty name: err = %v", err)
	}
	if err := r.Register(&Tool{Name: "noexec"}); !errors.Is(err, ErrToolExecuteNil) {
		t.Errorf("nil execute: err = %v", err)
	}
}

func TestRegistry_DefaultRetryBudgets(t *testing.T) {
	r := NewRegistry()

	network := &Tool{Name: "fetcher", Category: CategoryNetwork, Execute: nopExecute}
	local := &Tool{Name: "reader", Category: CategoryFiles, Execute: nopExecute}
	explicit := &Tool{Name: "custom", Category: CategoryNetwork, Execute: nopExecute, MaxRetries: 5}

	for _, tool := range []*Tool{network, local, explicit} {
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register %s: %v", tool.Name, err)
		}
	}

	if network.MaxRetries != 2 {
		t.Errorf("network MaxRetries = %d, want 2", network.MaxRetries)
	}
	if local.MaxRetries != 1 {
		t.Errorf("local MaxRetries = %d, want 1", local.MaxRetries)
	}
	if explicit.MaxRetries != 5 {
		t.Errorf("explicit MaxRetries = %d, want 5 (unchanged)", explicit.MaxRetries)
	}
}

func TestRegistry_GetByCategorySorted(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&Tool{Name: name, Category: CategoryNetwork, Execute: nopExecute}); err != nil {
			t.Fatal(err)
		}
	}
	r.MustRegister(&Tool{Name: "other", Category: CategorySystem, Execute: nopExecute})

	got := r.GetByCategory(CategoryNetwork)
	if len(got) != 3 {
		t.Fatalf("got %d tools, want 3", len(got))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if got[i].Name != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Name, want)
		}
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		r.MustRegister(&Tool{Name: name, Execute: nopExecute})
	}

	names := r.Names()
	for i, want := range []string{"a", "b", "c"} {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestRegistry_Catalogue(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Tool{
		Name:        "fetch",
		Description: "Fetch a page",
		Category:    CategoryNetwork,
		Execute:     nopExecute,
		Schema: Schema{
			Required: []string{"url"},
			Properties: map[string]Property{
				"url":        {Type: "string", Description: "The URL"},
				"max_length": {Type: "integer", Description: "Length cap"},
			},
		},
	})

	cat := r.Catalogue()

	if !strings.Contains(cat, "- fetch: Fetch a page") {
		t.Errorf("catalogue missing tool line:\n%s", cat)
	}
	if !strings.Contains(cat, "url (string, required): The URL") {
		t.Errorf("catalogue missing required param:\n%s", cat)
	}
	if !strings.Contains(cat, "max_length (integer, optional): Length cap") {
		t.Errorf("catalogue missing optional param:\n%s", cat)
	}
}

func TestRegistry_ValidateArgs(t *testing.T) {
	r := NewRegistry()
	tool := &Tool{
		Name:    "needy",
		Execute: nopExecute,
		Schema:  Schema{Required: []string{"path", "content"}},
	}
	r.MustRegister(tool)

	err := r.ValidateArgs(tool, map[string]any{"path": "/x"})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("err = %v, want ErrMissingRequiredArg", err)
	}
	if err := r.ValidateArgs(tool, map[string]any{"path": "/x", "content": "y"}); err != nil {
		t.Errorf("complete args should validate: %v", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Tool{Name: "shared", Execute: nopExecute})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			r.Get("shared")
			r.Names()
		}
	}()
	for i := 0; i < 1000; i++ {
		r.Has("shared")
		r.Count()
	}
	<-done
}
