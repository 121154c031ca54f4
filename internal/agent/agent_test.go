package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/midu16/ollama-chain-sub000/internal/config"
	"github.com/midu16/ollama-chain-sub000/internal/llm"
	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
	"github.com/midu16/ollama-chain-sub000/internal/router"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

const (
	fastModel   = "qwen2.5:1.5b"
	strongModel = "qwen3:8b"
)

func testModels() []config.ModelConfig {
	return []config.ModelConfig{
		{Name: fastModel, ContextWindow: 32768, SupportsThinking: true},
		{Name: strongModel, ContextWindow: 40960, SupportsThinking: true},
	}
}

// fakeShell is a scripted shell tool: it fails the first `failures` calls,
// then returns output, recording every command it saw.
type fakeShell struct {
	mu       sync.Mutex
	output   string
	failures int
	commands []string
}

func (f *fakeShell) execute(ctx context.Context, args map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, _ := args["command"].(string)
	f.commands = append(f.commands, cmd)
	if f.failures > 0 {
		f.failures--
		return "", errors.New("exit status 1")
	}
	return f.output, nil
}

func (f *fakeShell) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// testTools bundles fake implementations behind the real tool names.
type testTools struct {
	shell    fakeShell
	listing  string
	fileBody string
	searches atomic.Int32
}

func (tt *testTools) registry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "shell",
		Description: "run a shell command",
		Category:    tools.CategorySystem,
		Execute:     tt.shell.execute,
		Schema: tools.Schema{
			Required:   []string{"command"},
			Properties: map[string]tools.Property{"command": {Type: "string", Description: "command to run"}},
		},
	})
	reg.MustRegister(&tools.Tool{
		Name:        "list_dir",
		Description: "list directory contents",
		Category:    tools.CategoryFiles,
		Execute: func(context.Context, map[string]any) (string, error) {
			return tt.listing, nil
		},
		Schema: tools.Schema{
			Required:   []string{"path"},
			Properties: map[string]tools.Property{"path": {Type: "string", Description: "directory to list"}},
		},
	})
	reg.MustRegister(&tools.Tool{
		Name:        "read_file",
		Description: "read a file",
		Category:    tools.CategoryFiles,
		Execute: func(context.Context, map[string]any) (string, error) {
			return tt.fileBody, nil
		},
		Schema: tools.Schema{
			Required:   []string{"path"},
			Properties: map[string]tools.Property{"path": {Type: "string", Description: "file to read"}},
		},
	})
	reg.MustRegister(&tools.Tool{
		Name:        "web_search",
		Description: "search the web",
		Category:    tools.CategoryNetwork,
		Execute: func(context.Context, map[string]any) (string, error) {
			tt.searches.Add(1)
			return "search results", nil
		},
		Schema: tools.Schema{
			Required:   []string{"query"},
			Properties: map[string]tools.Property{"query": {Type: "string", Description: "search query"}},
		},
	})
	return reg
}

func newTestAgent(client llm.Client, reg *tools.Registry, opts Options) *Agent {
	if opts.Models == nil {
		opts.Models = testModels()
	}
	exec := tools.NewExecutor(reg, tools.ExecutorOptions{RetryDelay: time.Millisecond})
	rt := router.New(client, router.Options{Mode: "heuristic"})
	pl := planner.New(client, planner.Options{
		Model:     fastModel,
		ToolNames: reg.Names(),
		Catalogue: reg.Catalogue(),
	})
	return New(client, reg, exec, rt, pl, opts)
}

// phaseRecorder captures observer notifications for assertions.
type phaseRecorder struct {
	mu      sync.Mutex
	phases  []Phase
	details []string
	steps   []StepUpdate
}

func (p *phaseRecorder) OnPhase(phase Phase, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, phase)
	p.details = append(p.details, detail)
}

func (p *phaseRecorder) OnStep(u StepUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, u)
}

func (p *phaseRecorder) seen() []Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Phase(nil), p.phases...)
}

func (p *phaseRecorder) detailOf(phase Phase) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, ph := range p.phases {
		if ph == phase {
			return p.details[i]
		}
	}
	return ""
}

type fakeArchiver struct {
	mu   sync.Mutex
	recs []SessionRecord
}

func (f *fakeArchiver) ArchiveSession(ctx context.Context, rec SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func TestRunAnswersDirectly(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "answer from model knowledge", "tool": "none"}]`,
		`<final_answer>Paris.</final_answer>`,
	)
	obs := &phaseRecorder{}
	agent := newTestAgent(mock, (&testTools{}).registry(), Options{Observer: obs})

	res, err := agent.Run(context.Background(), "what is the capital of France")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Answer != "Paris." {
		t.Errorf("answer: want Paris., got %q", res.Answer)
	}
	if res.Complexity != router.Simple {
		t.Errorf("complexity: want simple, got %s", res.Complexity)
	}
	if res.Iterations != 1 || res.StepsCompleted != 1 || res.StepsFailed != 0 {
		t.Errorf("counters off: %+v", res)
	}
	if res.SessionID == "" {
		t.Error("missing session id")
	}
	if mock.CallCount() != 2 {
		t.Errorf("want 2 model calls (plan, step), got %d", mock.CallCount())
	}
	want := []Phase{PhasePlanning, PhaseExecuting, PhaseDone}
	if diff := cmp.Diff(want, obs.seen()); diff != "" {
		t.Errorf("an accepted final answer must skip synthesis (-want +got):\n%s", diff)
	}
}

func TestRunExecutesToolThenSynthesizes(t *testing.T) {
	t.Parallel()

	tt := &testTools{}
	tt.shell.output = " 14:23:01 up 3 days,  2 users,  load average: 0.10"
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "run the uptime command", "tool": "shell", "args": {"command": "uptime"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "uptime"}}</tool_call>`,
		"The host has been up for 3 days.",
	)
	obs := &phaseRecorder{}
	agent := newTestAgent(mock, tt.registry(), Options{Observer: obs})

	res, err := agent.Run(context.Background(), "check how long this host has been up")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Answer != "The host has been up for 3 days." {
		t.Errorf("answer: got %q", res.Answer)
	}
	if res.Degraded {
		t.Error("successful synthesis must not be degraded")
	}
	if diff := cmp.Diff([]string{"uptime"}, tt.shell.ran()); diff != "" {
		t.Errorf("shell commands mismatch (-want +got):\n%s", diff)
	}
	want := []Phase{PhasePlanning, PhaseExecuting, PhaseSynthesizing, PhaseDone}
	if diff := cmp.Diff(want, obs.seen()); diff != "" {
		t.Errorf("phase sequence mismatch (-want +got):\n%s", diff)
	}

	calls := mock.Calls()
	draft := calls[len(calls)-1]
	if !strings.Contains(draft.Messages[0].Content, "up 3 days") {
		t.Error("draft prompt should carry the tool output as evidence")
	}
	if draft.Options.Thinking == nil || *draft.Options.Thinking {
		t.Error("the draft stage must suppress extended reasoning")
	}
}

func TestRunPersistsExtractedFacts(t *testing.T) {
	t.Parallel()

	persist, err := memory.OpenPersistent(t.TempDir(), memory.PersistentOptions{})
	if err != nil {
		t.Fatalf("OpenPersistent: %v", err)
	}

	tt := &testTools{}
	tt.shell.output = "Linux buildbox 6.8.0-45-generic #45-Ubuntu SMP x86_64 GNU/Linux"
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "run uname to capture the kernel release", "tool": "shell", "args": {"command": "uname -a"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "uname -a"}}</tool_call>`,
		"The kernel is 6.8.0-45-generic.",
	)
	arch := &fakeArchiver{}
	agent := newTestAgent(mock, tt.registry(), Options{Persistent: persist, Archiver: arch})

	goal := "record the kernel release of this host"
	res, err := agent.Run(context.Background(), goal)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	const fact = "Kernel version: 6.8.0-45-generic"
	if !containsString(res.Facts, fact) {
		t.Errorf("result facts missing %q: %v", fact, res.Facts)
	}
	if !containsString(persist.Facts(), fact) {
		t.Errorf("persistent memory missing %q: %v", fact, persist.Facts())
	}

	sessions := persist.RecentSessions(1)
	if len(sessions) != 1 || sessions[0].Goal != goal {
		t.Errorf("session summary not recorded: %+v", sessions)
	}

	if len(arch.recs) != 1 {
		t.Fatalf("want 1 archived session, got %d", len(arch.recs))
	}
	rec := arch.recs[0]
	if rec.SessionID != res.SessionID || rec.Answer != res.Answer || len(rec.ToolCalls) != 1 {
		t.Errorf("archive record inconsistent: %+v", rec)
	}

	calls := mock.Calls()
	if !strings.Contains(calls[len(calls)-1].Messages[0].Content, fact) {
		t.Error("synthesis evidence should include the extracted fact")
	}
}

func TestRunDefersFinalAnswerUntilToolStepsDone(t *testing.T) {
	t.Parallel()

	tt := &testTools{}
	tt.shell.output = " 09:11:02 up 3 days"
	mock := llm.NewMockClient().Queue(fastModel,
		`[
  {"id": 1, "description": "decide what to measure", "tool": "none"},
  {"id": 2, "description": "run the uptime command", "tool": "shell", "args": {"command": "uptime"}, "depends_on": [1]}
]`,
		`<final_answer>It has probably been up a while.</final_answer>`,
		`<tool_call>{"name": "shell", "args": {"command": "uptime"}}</tool_call>`,
		"Up 3 days.",
	)
	agent := newTestAgent(mock, tt.registry(), Options{})

	res, err := agent.Run(context.Background(), "summarize the uptime of this host")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Answer != "Up 3 days." {
		t.Errorf("premature final answer must defer to the evidence run, got %q", res.Answer)
	}
	if diff := cmp.Diff([]string{"uptime"}, tt.shell.ran()); diff != "" {
		t.Errorf("the tool step must still run (-want +got):\n%s", diff)
	}
	if res.StepsCompleted != 2 {
		t.Errorf("want both steps completed, got %d", res.StepsCompleted)
	}
}

func TestRunMalformedToolReplyDowngrades(t *testing.T) {
	t.Parallel()

	tt := &testTools{}
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "run the configured probe", "tool": "shell", "args": {"command": "probe"}}]`,
		`<tool_call>{"name": "shell", "args":</tool_call>`,
		"Nothing was measured.",
	)
	agent := newTestAgent(mock, tt.registry(), Options{})

	res, err := agent.Run(context.Background(), "check the service configuration here")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(tt.shell.ran()) != 0 {
		t.Errorf("a malformed tool call must not execute: %v", tt.shell.ran())
	}
	if res.StepsCompleted != 1 || res.StepsFailed != 0 {
		t.Errorf("malformed reply downgrades to reasoning, not failure: %+v", res)
	}
	if res.Answer != "Nothing was measured." {
		t.Errorf("unexpected answer %q", res.Answer)
	}
}

func TestRunReplansAfterDiscovery(t *testing.T) {
	t.Parallel()

	tt := &testTools{listing: "data/\nreport.txt (120 bytes)", fileBody: "All systems nominal."}
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "list the files in /workspace", "tool": "list_dir", "args": {"path": "/workspace"}}]`,
		`<tool_call>{"name": "list_dir", "args": {"path": "/workspace"}}</tool_call>`,
		`[
  {"id": 1, "description": "list the files in /workspace", "tool": "list_dir", "status": "completed"},
  {"id": 2, "description": "read the report file", "tool": "read_file", "args": {"path": "/workspace/report.txt"}, "depends_on": [1]}
]`,
		`<tool_call>{"name": "read_file", "args": {"path": "/workspace/report.txt"}}</tool_call>`,
		"The report says all systems are nominal.",
	)
	obs := &phaseRecorder{}
	agent := newTestAgent(mock, tt.registry(), Options{Observer: obs})

	res, err := agent.Run(context.Background(), "see what sits in the workspace directory")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Replans != 1 || res.Iterations != 2 {
		t.Errorf("want 1 replan over 2 iterations, got %d/%d", res.Replans, res.Iterations)
	}
	if res.StepsCompleted != 2 {
		t.Errorf("want 2 completed steps, got %d", res.StepsCompleted)
	}

	want := []Phase{PhasePlanning, PhaseExecuting, PhaseReplanning, PhaseExecuting, PhaseSynthesizing, PhaseDone}
	if diff := cmp.Diff(want, obs.seen()); diff != "" {
		t.Errorf("phase sequence mismatch (-want +got):\n%s", diff)
	}
	if detail := obs.detailOf(PhaseReplanning); detail != "discovery step surfaced new facts" {
		t.Errorf("replan reason: got %q", detail)
	}

	const fact = "Directory contents of /workspace: data/, report.txt"
	if !containsString(res.Facts, fact) {
		t.Errorf("missing listing fact: %v", res.Facts)
	}
	replanPrompt := mock.Calls()[2].Messages[0].Content
	if !strings.Contains(replanPrompt, fact) {
		t.Error("replan prompt should carry the discovery as an observation")
	}
}

func TestRunRecoversFromFailedStep(t *testing.T) {
	t.Parallel()

	tt := &testTools{}
	tt.shell.failures = 1
	tt.shell.output = "service responding"
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "run the probe command", "tool": "shell", "args": {"command": "probe-svc"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "probe-svc"}}</tool_call>`,
		`[{"id": 2, "description": "retry the probe against the fallback endpoint", "tool": "shell", "args": {"command": "probe-svc --fallback"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "probe-svc --fallback"}}</tool_call>`,
		"The service responds on the fallback endpoint.",
	)
	obs := &phaseRecorder{}
	agent := newTestAgent(mock, tt.registry(), Options{Observer: obs})

	res, err := agent.Run(context.Background(), "probe the primary service endpoint")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Replans != 1 {
		t.Errorf("a failed step must force a replan, got %d", res.Replans)
	}
	if detail := obs.detailOf(PhaseReplanning); detail != "failed steps need a revised plan" {
		t.Errorf("replan reason: got %q", detail)
	}
	if diff := cmp.Diff([]string{"probe-svc", "probe-svc --fallback"}, tt.shell.ran()); diff != "" {
		t.Errorf("shell commands mismatch (-want +got):\n%s", diff)
	}
	if res.StepsCompleted != 1 || res.StepsFailed != 0 {
		t.Errorf("the revised plan dropped the failed step: %+v", res)
	}
	if res.Answer != "The service responds on the fallback endpoint." {
		t.Errorf("unexpected answer %q", res.Answer)
	}
}

func TestRunFailedStepsReplanPastBudget(t *testing.T) {
	t.Parallel()

	// Two failures in a row with a budget of one: the second revision is
	// failure-forced and must still happen.
	tt := &testTools{}
	tt.shell.failures = 2
	tt.shell.output = "service responding"
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "check the service", "tool": "shell", "args": {"command": "svc-check"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "svc-check"}}</tool_call>`,
		`[{"id": 2, "description": "check the alternate endpoint", "tool": "shell", "args": {"command": "svc-check --alt"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "svc-check --alt"}}</tool_call>`,
		`[{"id": 3, "description": "check the backup endpoint", "tool": "shell", "args": {"command": "svc-check --backup"}}]`,
		`<tool_call>{"name": "shell", "args": {"command": "svc-check --backup"}}</tool_call>`,
		"The backup endpoint responds.",
	)
	obs := &phaseRecorder{}
	agent := newTestAgent(mock, tt.registry(), Options{MaxReplans: 1, Observer: obs})

	res, err := agent.Run(context.Background(), "check whether the service is up")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Replans != 2 {
		t.Errorf("want 2 replans (second one failure-forced), got %d", res.Replans)
	}
	wantCmds := []string{"svc-check", "svc-check --alt", "svc-check --backup"}
	if diff := cmp.Diff(wantCmds, tt.shell.ran()); diff != "" {
		t.Errorf("shell commands mismatch (-want +got):\n%s", diff)
	}
	if res.StepsCompleted != 1 {
		t.Errorf("final revision should complete its step: %+v", res)
	}
	if res.Answer != "The backup endpoint responds." {
		t.Errorf("unexpected answer %q", res.Answer)
	}
}

func TestRunIterationCapStopsExecution(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient().Queue(fastModel,
		`[
  {"id": 1, "description": "step one", "tool": "none"},
  {"id": 2, "description": "step two", "tool": "none", "depends_on": [1]},
  {"id": 3, "description": "step three", "tool": "none", "depends_on": [2]}
]`,
		"thinking about step one",
		"thinking about step two",
		"Partial answer from what was gathered.",
	)
	agent := newTestAgent(mock, (&testTools{}).registry(), Options{MaxIterations: 2})

	res, err := agent.Run(context.Background(), "walk through the checklist for me")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Iterations != 2 {
		t.Errorf("iterations: want 2, got %d", res.Iterations)
	}
	if res.StepsCompleted != 2 {
		t.Errorf("completed: want 2, got %d", res.StepsCompleted)
	}
	if pending := len(res.Plan.PendingSteps()); pending != 1 {
		t.Errorf("want 1 step left pending, got %d", pending)
	}
	if res.Answer == "" {
		t.Error("a capped run still synthesizes an answer")
	}
}

func TestRunSuppressedSearchDowngradesToReasoning(t *testing.T) {
	t.Parallel()

	tt := &testTools{}
	mock := llm.NewMockClient().Queue(fastModel,
		`[{"id": 1, "description": "look up the weather", "tool": "web_search", "args": {"query": "weather"}}]`,
		"I cannot search; from general knowledge the weather is seasonal.",
		"Probably mild for the season.",
	)
	agent := newTestAgent(mock, tt.registry(), Options{WebSearch: true})

	res, err := agent.Run(context.Background(), "what is the weather like")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := tt.searches.Load(); n != 0 {
		t.Errorf("simple-complexity run must never search, got %d calls", n)
	}
	if res.StepsCompleted != 1 || res.StepsFailed != 0 {
		t.Errorf("suppressed search should complete as reasoning: %+v", res)
	}
}

func TestRunAutoExecutesWhenModelsUnreachable(t *testing.T) {
	t.Parallel()

	tt := &testTools{}
	tt.shell.output = `PRETTY_NAME="Ubuntu 24.04.1 LTS"
NAME="Ubuntu"
VERSION_ID="24.04"
ID=ubuntu`

	mock := llm.NewMockClient()
	mock.Script = func(model string, messages []llm.Message, opts llm.Options) (string, error) {
		if strings.Contains(messages[0].Content, "planning module") {
			return `[{"id": 1, "description": "check the operating system on this host", "tool": "shell"}]`, nil
		}
		return "", errors.New("connection refused")
	}
	agent := newTestAgent(mock, tt.registry(), Options{})

	res, err := agent.Run(context.Background(), "what operating system is this box running")
	if !errors.Is(err, llm.ErrNoModelAvailable) {
		t.Fatalf("want ErrNoModelAvailable, got %v", err)
	}
	if res == nil {
		t.Fatal("a degraded run still returns its result")
	}

	if !res.Degraded {
		t.Error("result must be marked degraded")
	}
	if diff := cmp.Diff([]string{"cat /etc/os-release"}, tt.shell.ran()); diff != "" {
		t.Errorf("auto-executed command mismatch (-want +got):\n%s", diff)
	}
	if res.StepsCompleted != 1 {
		t.Errorf("auto-executed step should complete, got %+v", res)
	}
	if !strings.Contains(res.Answer, "Operating system: Ubuntu 24.04.1 LTS") {
		t.Errorf("degraded answer must surface the facts, got %q", res.Answer)
	}
	if !strings.HasPrefix(res.Answer, "No model was reachable") {
		t.Errorf("degraded answer should say so, got %q", res.Answer)
	}
}

func TestRunParallelGroupRespectsWorkerCap(t *testing.T) {
	defer goleak.VerifyNone(t)

	var cur, peak atomic.Int32
	mock := llm.NewMockClient()
	mock.Script = func(model string, messages []llm.Message, opts llm.Options) (string, error) {
		if strings.Contains(messages[0].Content, "planning module") {
			return `[
  {"id": 1, "description": "consider angle one", "tool": "none"},
  {"id": 2, "description": "consider angle two", "tool": "none"},
  {"id": 3, "description": "consider angle three", "tool": "none"},
  {"id": 4, "description": "consider angle four", "tool": "none"}
]`, nil
		}
		if messages[len(messages)-1].Content == "Execute the current step now." {
			c := cur.Add(1)
			for {
				p := peak.Load()
				if c <= p || peak.CompareAndSwap(p, c) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			cur.Add(-1)
			return "considered.", nil
		}
		return "All four angles considered.", nil
	}
	agent := newTestAgent(mock, (&testTools{}).registry(), Options{})

	res, err := agent.Run(context.Background(), "weigh four angles of the question")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Iterations != 1 {
		t.Errorf("independent steps should run in one iteration, got %d", res.Iterations)
	}
	if res.StepsCompleted != 4 {
		t.Errorf("want 4 completed steps, got %d", res.StepsCompleted)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("worker cap exceeded: %d concurrent steps", p)
	}
	if c := cur.Load(); c != 0 {
		t.Errorf("workers still counted as running: %d", c)
	}
}

func TestRunRejectsEmptyGoal(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(llm.NewMockClient(), (&testTools{}).registry(), Options{})
	if _, err := agent.Run(context.Background(), "   "); err == nil {
		t.Error("blank goal must error")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agent := newTestAgent(llm.NewMockClient(), (&testTools{}).registry(), Options{})
	if _, err := agent.Run(ctx, "anything at all"); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	reg := (&testTools{}).registry()
	a := newTestAgent(llm.NewMockClient(), reg, Options{})
	if a.maxIterations != defaultMaxIterations || a.maxReplans != defaultMaxReplans || a.groupWorkers != defaultGroupWorkers {
		t.Errorf("defaults not applied: %d %d %d", a.maxIterations, a.maxReplans, a.groupWorkers)
	}
	if a.observer == nil {
		t.Error("nil observer must be replaced with a no-op")
	}

	disabled := newTestAgent(llm.NewMockClient(), reg, Options{MaxReplans: -1})
	if disabled.maxReplans != 0 {
		t.Errorf("negative MaxReplans disables replanning, got %d", disabled.maxReplans)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
