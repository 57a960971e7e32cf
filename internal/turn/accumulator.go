package turn

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sql-workbench/go-assistant/internal/protocol"
)

// FallbackResponse is shown when a turn finishes without usable
// response text.
const FallbackResponse = "I couldn't generate a response."

const unknownErrorDetail = "unknown error"

// ErrorText renders the user-facing message for a server-declared
// error detail.
func ErrorText(detail string) string {
	if strings.TrimSpace(detail) == "" {
		detail = unknownErrorDetail
	}
	return "Sorry, something went wrong: " + detail
}

// Accumulator folds interpreted stream events into in-flight turn
// state, in arrival order. Single writer; editor side effects live in
// the applier, never here.
type Accumulator struct {
	steps    []protocol.Step
	actions  []protocol.Action
	response string
	isError  bool
	runnable bool
	usage    *protocol.Usage
}

// NewAccumulator returns an empty in-flight turn state.
func NewAccumulator() *Accumulator { return &Accumulator{} }

// Apply folds one event. Steps and actions append; a response event
// sets the text (fallback when blank) and usage; an error event sets
// the error text and flag. Folding continues after an error event —
// only stream close ends a turn.
func (a *Accumulator) Apply(ev *protocol.Event) {
	if ev == nil {
		return
	}
	switch ev.Kind {
	case protocol.EventStep:
		if ev.Step != nil {
			a.steps = append(a.steps, *ev.Step)
		}
	case protocol.EventAction:
		if ev.Action != nil {
			a.actions = append(a.actions, *ev.Action)
		}
	case protocol.EventResponse:
		if ev.Response != nil {
			text := ev.Response.Response
			if strings.TrimSpace(text) == "" {
				text = FallbackResponse
			}
			a.response = text
			a.usage = ev.Response.Usage
		}
	case protocol.EventError:
		var detail string
		if ev.Error != nil {
			detail = ev.Error.Error
		}
		a.response = ErrorText(detail)
		a.isError = true
	}
}

// MarkRunnable latches the runnable flag. Monotonic: once true it
// stays true for the rest of the turn.
func (a *Accumulator) MarkRunnable() { a.runnable = true }

// Finalize materializes the assistant message. The timestamp is the
// caller-supplied finalization instant, not turn start. A turn that
// closed with neither response nor error gets the fallback text.
// The accumulator must not be reused afterwards.
func (a *Accumulator) Finalize(at time.Time) Message {
	content := a.response
	if content == "" {
		content = FallbackResponse
	}

	steps := make([]protocol.Step, len(a.steps))
	copy(steps, a.steps)
	actions := make([]protocol.Action, len(a.actions))
	copy(actions, a.actions)

	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: at,
		Steps:     steps,
		Actions:   actions,
		IsError:   a.isError,
		Runnable:  a.runnable,
		Usage:     a.usage,
	}
}
