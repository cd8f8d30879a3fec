// Package display projects a conversation history into the ordered list of
// entries a UI renders.
//
// Projection is a pure function of the message list: it keeps no state
// between calls, so hosts rerun it after every change to the history.
// Tool calls show up as a start entry that the matching tool result later
// completes in place. Reasoning is never projected.
package display

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/youssefsiam38/agentstream/types"
)

// Phase is the lifecycle position of a display entry.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseComplete Phase = "complete"
)

// Event is one renderable entry.
type Event struct {
	ID     int   `json:"id"`
	Kind   Kind  `json:"kind"`
	Event  Phase `json:"event"`
	Args   any   `json:"args,omitempty"`
	Result any   `json:"result,omitempty"`
}

// Projector turns message lists into display events.
type Projector struct {
	log *slog.Logger
}

// NewProjector creates a projector that reports skipped content to log.
func NewProjector(log *slog.Logger) *Projector {
	if log == nil {
		log = slog.Default()
	}
	return &Projector{log: log}
}

// Project projects messages with the default logger.
func Project(messages []types.Message) []Event {
	return NewProjector(nil).Project(messages)
}

// Project walks messages in order and returns their display entries with
// strictly increasing IDs starting at 1.
func (p *Projector) Project(messages []types.Message) []Event {
	var (
		events  []Event
		started = make(map[string]int)
		nextID  = 1
	)

	emit := func(ev Event) int {
		ev.ID = nextID
		nextID++
		events = append(events, ev)
		return len(events) - 1
	}

	for i := range messages {
		msg := &messages[i]

		switch msg.Role {
		case types.RoleUser:
			emit(Event{
				Kind:  KindUser,
				Event: PhaseComplete,
				Args:  TextArgs{Text: types.PlainText(*msg)},
			})

		case types.RoleAssistant:
			var text strings.Builder
			if msg.IsPlainText() {
				text.WriteString(msg.Text)
			}

			for _, block := range msg.Content {
				switch block.Type {
				case types.ContentTypeText:
					text.WriteString(block.Text)
				case types.ContentTypeToolCall:
					entry, ok := catalog[block.ToolName]
					if !ok {
						p.log.Warn("skipping unknown tool", "tool_name", block.ToolName, "tool_call_id", block.ToolCallID)
						continue
					}
					pos := emit(Event{
						Kind:  entry.kind,
						Event: PhaseStart,
						Args:  narrowArgs(entry, block.Input),
					})
					started[block.ToolCallID] = pos
				}
			}

			if strings.TrimSpace(text.String()) != "" {
				emit(Event{
					Kind:  KindTextDelta,
					Event: PhaseComplete,
					Args:  TextArgs{Text: text.String()},
				})
			}

		case types.RoleTool:
			for _, block := range msg.ToolResults() {
				pos, ok := started[block.ToolCallID]
				if !ok {
					p.log.Warn("skipping orphaned tool result", "tool_name", block.ToolName, "tool_call_id", block.ToolCallID)
					continue
				}
				if events[pos].Event == PhaseComplete {
					p.log.Warn("skipping duplicate tool result", "tool_name", block.ToolName, "tool_call_id", block.ToolCallID)
					continue
				}
				events[pos].Event = PhaseComplete
				events[pos].Result = ParseOutput(block.Output)
			}
		}
	}

	return events
}

// AppendIdle appends an idle entry with the next ID.
func AppendIdle(events []Event) []Event {
	id := 1
	if n := len(events); n > 0 {
		id = events[n-1].ID + 1
	}
	return append(events, Event{ID: id, Kind: KindIdle, Event: PhaseComplete})
}

// ParseOutput decodes a tool-result output. A {format, value} wrapper with
// format "json" yields the decoded value, falling back to the raw value
// string; any other payload is decoded as JSON, falling back to its text.
func ParseOutput(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	var wrapped struct {
		Format string  `json:"format"`
		Value  *string `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Format != "" && wrapped.Value != nil {
		if wrapped.Format != types.OutputFormatJSON {
			return *wrapped.Value
		}
		var v any
		if err := json.Unmarshal([]byte(*wrapped.Value), &v); err != nil {
			return *wrapped.Value
		}
		return v
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
