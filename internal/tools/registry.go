package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// Registry holds all available tools and provides lookup functionality.
// It is thread-safe and supports registration at runtime.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	byCategory map[Category][]*Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		byCategory: make(map[Category][]*Tool),
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	// Network tools get one retry by default; everything else gets none.
	if tool.MaxRetries == 0 {
		if tool.Category == CategoryNetwork {
			tool.MaxRetries = 2
		} else {
			tool.MaxRetries = 1
		}
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.ToolsDebug("Registered tool: %s (category=%s, max_retries=%d)", tool.Name, tool.Category, tool.MaxRetries)
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// GetByCategory returns all tools in a category, sorted by name.
func (r *Registry) GetByCategory(category Category) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, len(r.byCategory[category]))
	copy(tools, r.byCategory[category])

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Catalogue renders the model-facing tool list: one block per tool with
// its parameters and which are required. Prompt builders embed this
// verbatim, so the format stays plain text.
func (r *Registry) Catalogue() string {
	var sb strings.Builder
	for _, tool := range r.All() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))

		params := make([]string, 0, len(tool.Schema.Properties))
		for name := range tool.Schema.Properties {
			params = append(params, name)
		}
		sort.Strings(params)

		required := make(map[string]bool, len(tool.Schema.Required))
		for _, req := range tool.Schema.Required {
			required[req] = true
		}

		for _, name := range params {
			prop := tool.Schema.Properties[name]
			marker := "optional"
			if required[name] {
				marker = "required"
			}
			sb.WriteString(fmt.Sprintf("    %s (%s, %s): %s\n", name, prop.Type, marker, prop.Description))
		}
	}
	return sb.String()
}

// ValidateArgs checks that all required arguments are present.
func (r *Registry) ValidateArgs(tool *Tool, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}
