// Package turn holds per-turn accumulation state and session-scoped
// conversation history for the assistant client.
package turn

import (
	"time"

	"github.com/google/uuid"

	"github.com/sql-workbench/go-assistant/internal/protocol"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one finished conversation entry. Immutable once appended
// to History.
type Message struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	Steps     []protocol.Step   `json:"steps,omitempty"`
	Actions   []protocol.Action `json:"actions,omitempty"`
	IsError   bool              `json:"is_error,omitempty"`
	Runnable  bool              `json:"runnable,omitempty"`
	Usage     *protocol.Usage   `json:"usage,omitempty"`
}

// NewUserMessage builds a user message stamped now.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantNotice builds an assistant message outside the event fold,
// for turns that never reach the stream (guidance, transport failures).
func NewAssistantNotice(content string, isError bool) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
		IsError:   isError,
	}
}
