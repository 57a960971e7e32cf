package turn

import "sync"

// History is the append-only, session-scoped conversation store.
// Safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewHistory returns an empty history.
func NewHistory() *History { return &History{} }

// Append adds one finished message.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

// Messages returns a snapshot copy; callers may not observe later
// appends through it.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len reports the number of stored messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

// Last returns the most recent message, if any.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}
