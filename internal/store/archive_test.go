package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
	"github.com/midu16/ollama-chain-sub000/internal/memory"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

var _ agent.Archiver = (*Archive)(nil)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleRecord(id string, started time.Time) agent.SessionRecord {
	return agent.SessionRecord{
		SessionID:      id,
		Goal:           "check disk usage on the build host",
		Answer:         "The disk is 71% full.",
		Summary:        "completed: 2/2 steps",
		Complexity:     "moderate",
		Iterations:     2,
		Replans:        1,
		StepsCompleted: 2,
		StepsFailed:    0,
		Degraded:       false,
		StartedAt:      started,
		FinishedAt:     started.Add(90 * time.Second),
		Facts:      []string{"Disk usage: 71%"},
		ToolCalls: []memory.ToolRecord{
			{StepID: 1, ToolResult: tools.ToolResult{
				ToolName:   "shell",
				Args:       map[string]any{"command": "df -h"},
				Success:    true,
				Output:     "/dev/sda1 71% /",
				Attempts:   1,
				DurationMs: 12,
			}},
			{StepID: 2, ToolResult: tools.ToolResult{
				ToolName:  "web_fetch",
				Args:      map[string]any{"url": "http://grafana.local/disk"},
				Success:   false,
				ErrorKind: "timeout",
				Attempts:  3,
			}},
		},
	}
}

func TestArchiveSessionRoundTrip(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	rec := sampleRecord("sess-0001", started)

	if err := a.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	entries, err := a.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.SessionID != rec.SessionID || e.Goal != rec.Goal || e.Answer != rec.Answer {
		t.Errorf("entry fields mismatch: %+v", e)
	}
	if e.Complexity != "moderate" || e.Iterations != 2 || e.Replans != 1 || e.Degraded {
		t.Errorf("entry counters mismatch: %+v", e)
	}
	if e.StepsCompleted != 2 || e.StepsFailed != 0 {
		t.Errorf("step counters mismatch: %+v", e)
	}
	if e.ToolCalls != 2 {
		t.Errorf("tool call count: want 2, got %d", e.ToolCalls)
	}
	if diff := cmp.Diff(rec.Facts, e.Facts); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
	if !e.StartedAt.Equal(rec.StartedAt) || !e.FinishedAt.Equal(rec.FinishedAt) {
		t.Errorf("timestamps did not round-trip: %v / %v", e.StartedAt, e.FinishedAt)
	}
}

func TestArchiveSessionIsIdempotent(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)
	ctx := context.Background()
	rec := sampleRecord("sess-0002", time.Now().UTC())

	if err := a.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	rec.Answer = "revised answer"
	if err := a.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("second archive: %v", err)
	}

	entries, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("re-archiving must not duplicate sessions, got %d", len(entries))
	}
	if entries[0].Answer != "revised answer" {
		t.Errorf("re-archiving should replace fields, got %q", entries[0].Answer)
	}

	calls, err := a.Invocations(ctx, rec.SessionID)
	if err != nil {
		t.Fatalf("Invocations: %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("re-archiving must not duplicate invocations, got %d", len(calls))
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"sess-old", "sess-mid", "sess-new"} {
		rec := sampleRecord(id, base.Add(time.Duration(i)*time.Hour))
		if err := a.ArchiveSession(ctx, rec); err != nil {
			t.Fatalf("archive %s: %v", id, err)
		}
	}

	entries, err := a.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.SessionID)
	}
	if diff := cmp.Diff([]string{"sess-new", "sess-mid"}, ids); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestInvocationsRoundTrip(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)
	ctx := context.Background()
	rec := sampleRecord("sess-0003", time.Now().UTC())

	if err := a.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	calls, err := a.Invocations(ctx, rec.SessionID)
	if err != nil {
		t.Fatalf("Invocations: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("want 2 invocations, got %d", len(calls))
	}

	first := calls[0]
	if first.StepID != 1 || first.Tool != "shell" || !first.Success || first.DurationMs != 12 {
		t.Errorf("first invocation mismatch: %+v", first)
	}
	if !strings.Contains(first.ArgsJSON, `"command":"df -h"`) {
		t.Errorf("args not preserved: %s", first.ArgsJSON)
	}

	second := calls[1]
	if second.Tool != "web_fetch" || second.Success || second.ErrorDetail != "timeout" || second.Attempts != 3 {
		t.Errorf("second invocation mismatch: %+v", second)
	}
}

func TestInvocationsUnknownSession(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)
	calls, err := a.Invocations(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Invocations: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("want no invocations, got %d", len(calls))
	}
}

func TestGetReturnsOneSession(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)
	ctx := context.Background()
	rec := sampleRecord("sess-0004", time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))

	if err := a.ArchiveSession(ctx, rec); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	e, err := a.Get(ctx, "sess-0004")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Goal != rec.Goal || e.Answer != rec.Answer || e.ToolCalls != 2 {
		t.Errorf("entry mismatch: %+v", e)
	}

	if _, err := a.Get(ctx, "no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("want ErrSessionNotFound, got %v", err)
	}
}

