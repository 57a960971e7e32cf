package turn

import (
	"strings"
	"testing"
	"time"

	"github.com/sql-workbench/go-assistant/internal/protocol"
)

func stepEvent(tool string) *protocol.Event {
	return &protocol.Event{
		Kind: protocol.EventStep,
		Step: &protocol.Step{Type: protocol.StepToolCall, Tool: tool},
	}
}

func actionEvent(sql string) *protocol.Event {
	return &protocol.Event{
		Kind:   protocol.EventAction,
		Action: &protocol.Action{Type: protocol.ActionSetEditorContent, SQL: sql},
	}
}

func responseEvent(text string, usage *protocol.Usage) *protocol.Event {
	return &protocol.Event{
		Kind:     protocol.EventResponse,
		Response: &protocol.Response{Response: text, Usage: usage},
	}
}

func errorEvent(detail string) *protocol.Event {
	return &protocol.Event{
		Kind:  protocol.EventError,
		Error: &protocol.ErrorPayload{Error: detail},
	}
}

// ── Apply: 折叠顺序 ─────────────────────────────────────────

func TestAccumulatorApply_FoldOrdering(t *testing.T) {
	a := NewAccumulator()
	a.Apply(stepEvent("list_tables"))
	a.Apply(actionEvent("SELECT 1"))
	a.Apply(stepEvent("sample_table_data"))
	a.Apply(responseEvent("All set.", nil))

	msg := a.Finalize(time.Now())

	if len(msg.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(msg.Steps))
	}
	if msg.Steps[0].Tool != "list_tables" || msg.Steps[1].Tool != "sample_table_data" {
		t.Errorf("step order = [%s, %s]", msg.Steps[0].Tool, msg.Steps[1].Tool)
	}
	if len(msg.Actions) != 1 || msg.Actions[0].SQL != "SELECT 1" {
		t.Errorf("actions = %+v, want single SELECT 1", msg.Actions)
	}
	if msg.Content != "All set." {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Role != RoleAssistant {
		t.Errorf("role = %q, want assistant", msg.Role)
	}
	if msg.IsError {
		t.Error("clean turn must not be error-flagged")
	}
}

func TestAccumulatorApply_NilEventIgnored(t *testing.T) {
	a := NewAccumulator()
	a.Apply(nil)
	msg := a.Finalize(time.Now())
	if len(msg.Steps) != 0 || len(msg.Actions) != 0 {
		t.Fatalf("nil event mutated state: %+v", msg)
	}
}

// ── Apply: response 语义 ────────────────────────────────────

func TestAccumulatorApply_BlankResponseGetsFallback(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		a := NewAccumulator()
		a.Apply(responseEvent(text, nil))
		msg := a.Finalize(time.Now())
		if msg.Content != FallbackResponse {
			t.Errorf("content for blank %q = %q, want fallback", text, msg.Content)
		}
	}
}

func TestAccumulatorApply_ResponseRecordsUsage(t *testing.T) {
	a := NewAccumulator()
	a.Apply(responseEvent("ok", &protocol.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
	msg := a.Finalize(time.Now())
	if msg.Usage == nil || msg.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v, want total 15", msg.Usage)
	}
}

// ── Apply: error 语义 ───────────────────────────────────────

func TestAccumulatorApply_ErrorSetsFlagAndTemplate(t *testing.T) {
	a := NewAccumulator()
	a.Apply(errorEvent("provider overloaded"))
	msg := a.Finalize(time.Now())

	if !msg.IsError {
		t.Fatal("error flag not set")
	}
	if msg.Content != "Sorry, something went wrong: provider overloaded" {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestAccumulatorApply_ErrorEmptyDetailFallsBack(t *testing.T) {
	a := NewAccumulator()
	a.Apply(errorEvent("  "))
	msg := a.Finalize(time.Now())
	if !strings.Contains(msg.Content, "unknown error") {
		t.Errorf("content = %q, want unknown-error detail", msg.Content)
	}
}

func TestAccumulatorApply_FoldContinuesAfterError(t *testing.T) {
	a := NewAccumulator()
	a.Apply(stepEvent("list_tables"))
	a.Apply(errorEvent("boom"))
	a.Apply(stepEvent("list_schemas"))

	msg := a.Finalize(time.Now())
	if len(msg.Steps) != 2 {
		t.Fatalf("steps after error = %d, want 2 (folding continues)", len(msg.Steps))
	}
	if !msg.IsError {
		t.Error("error flag must persist")
	}
}

// ── MarkRunnable ────────────────────────────────────────────

func TestAccumulatorMarkRunnable_Monotonic(t *testing.T) {
	a := NewAccumulator()
	if a.Finalize(time.Now()).Runnable {
		t.Fatal("fresh accumulator must not be runnable")
	}

	a = NewAccumulator()
	a.MarkRunnable()
	a.Apply(stepEvent("x"))
	a.Apply(errorEvent("still runnable"))
	if !a.Finalize(time.Now()).Runnable {
		t.Fatal("runnable flag must stay true once set")
	}
}

// ── Finalize ────────────────────────────────────────────────

func TestAccumulatorFinalize_NoResponseGetsFallback(t *testing.T) {
	a := NewAccumulator()
	a.Apply(stepEvent("list_tables"))
	msg := a.Finalize(time.Now())
	if msg.Content != FallbackResponse {
		t.Errorf("content = %q, want fallback", msg.Content)
	}
	if msg.IsError {
		t.Error("fallback-only turn is not an error")
	}
}

func TestAccumulatorFinalize_TimestampIsFinalizationInstant(t *testing.T) {
	a := NewAccumulator()
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	msg := a.Finalize(at)
	if !msg.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", msg.CreatedAt, at)
	}
}

func TestAccumulatorFinalize_DetachesFromLaterMutation(t *testing.T) {
	a := NewAccumulator()
	a.Apply(stepEvent("first"))
	msg := a.Finalize(time.Now())

	a.Apply(stepEvent("late"))
	if len(msg.Steps) != 1 {
		t.Fatalf("finalized message grew steps: %d", len(msg.Steps))
	}
}

// ── ErrorText ───────────────────────────────────────────────

func TestErrorText(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		want   string
	}{
		{"with detail", "timeout", "Sorry, something went wrong: timeout"},
		{"empty detail", "", "Sorry, something went wrong: unknown error"},
		{"blank detail", "  ", "Sorry, something went wrong: unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorText(tt.detail); got != tt.want {
				t.Errorf("ErrorText(%q) = %q, want %q", tt.detail, got, tt.want)
			}
		})
	}
}
