package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockCall records one Complete invocation against a MockClient.
type MockCall struct {
	Model    string
	Messages []Message
	Options  Options
}

// MockClient is a scripted Client for tests. Responses are dequeued per
// model; when a model's queue is exhausted its last response repeats, so
// loops that call more times than scripted stay deterministic.
type MockClient struct {
	mu        sync.Mutex
	responses map[string][]string
	errors    map[string]error
	calls     []MockCall

	// Script takes priority over queued responses when set.
	Script func(model string, messages []Message, opts Options) (string, error)
}

// NewMockClient returns an empty mock. Unscripted models reply with a
// placeholder string rather than failing.
func NewMockClient() *MockClient {
	return &MockClient{
		responses: make(map[string][]string),
		errors:    make(map[string]error),
	}
}

// Queue appends replies to a model's response queue.
func (m *MockClient) Queue(model string, replies ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[model] = append(m.responses[model], replies...)
	return m
}

// Fail makes every call to a model return err.
func (m *MockClient) Fail(model string, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[model] = err
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Model: model, Messages: messages, Options: opts})
	script := m.Script
	if script == nil {
		if err, ok := m.errors[model]; ok {
			m.mu.Unlock()
			return "", err
		}
		queue := m.responses[model]
		if len(queue) > 0 {
			reply := queue[0]
			if len(queue) > 1 {
				m.responses[model] = queue[1:]
			}
			m.mu.Unlock()
			return reply, nil
		}
		m.mu.Unlock()
		return fmt.Sprintf("mock reply from %s", model), nil
	}
	m.mu.Unlock()

	return script(model, messages, opts)
}

// Calls returns a copy of all recorded invocations.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns recorded invocations of one model.
func (m *MockClient) CallsFor(model string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns the total number of Complete invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
