package turn

import (
	"fmt"
	"sync"
	"testing"
)

func TestHistory_AppendAndMessages(t *testing.T) {
	h := NewHistory()
	if h.Len() != 0 {
		t.Fatalf("fresh history Len = %d", h.Len())
	}

	h.Append(NewUserMessage("show me the orders table"))
	h.Append(Message{Role: RoleAssistant, Content: "done"})

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("roles = [%s, %s]", msgs[0].Role, msgs[1].Role)
	}
}

func TestHistory_MessagesIsSnapshot(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserMessage("one"))

	snap := h.Messages()
	h.Append(NewUserMessage("two"))

	if len(snap) != 1 {
		t.Fatalf("snapshot grew after append: %d", len(snap))
	}

	// 改写快照不应影响存储
	snap[0].Content = "mutated"
	if got, _ := h.Last(); got.Content == "mutated" {
		t.Error("mutating snapshot leaked into history")
	}
}

func TestHistory_Last(t *testing.T) {
	h := NewHistory()
	if _, ok := h.Last(); ok {
		t.Fatal("Last on empty history should report not-ok")
	}

	h.Append(NewUserMessage("a"))
	h.Append(NewUserMessage("b"))
	last, ok := h.Last()
	if !ok || last.Content != "b" {
		t.Fatalf("Last = %+v ok=%v, want content b", last, ok)
	}
}

func TestHistory_ConcurrentAppend(t *testing.T) {
	h := NewHistory()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append(NewUserMessage(fmt.Sprintf("msg-%d", i)))
			_ = h.Messages()
		}(i)
	}
	wg.Wait()

	if h.Len() != n {
		t.Fatalf("Len = %d, want %d", h.Len(), n)
	}
}
