package streaming

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// EventType represents the type of streaming event
type EventType string

const (
	// EventTypeStartStep marks the beginning of a step
	EventTypeStartStep EventType = "start-step"

	// EventTypeTextDelta carries a fragment of assistant text
	EventTypeTextDelta EventType = "text-delta"

	// EventTypeTextEnd closes the current text fragment run
	EventTypeTextEnd EventType = "text-end"

	// EventTypeReasoningDelta carries a fragment of model reasoning
	EventTypeReasoningDelta EventType = "reasoning-delta"

	// EventTypeReasoningEnd closes the current reasoning fragment run
	EventTypeReasoningEnd EventType = "reasoning-end"

	// EventTypeToolCall announces a complete tool invocation
	EventTypeToolCall EventType = "tool-call"

	// EventTypeToolResult carries the output of a tool invocation
	EventTypeToolResult EventType = "tool-result"

	// EventTypeFinishStep marks the end of a step
	EventTypeFinishStep EventType = "finish-step"

	// EventTypeError reports a producer-side error; the stream keeps going
	EventTypeError EventType = "error"

	// EventTypeAbort reports a cancellation; the stream drains and closes
	EventTypeAbort EventType = "abort"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeStartStep, EventTypeTextDelta, EventTypeTextEnd,
		EventTypeReasoningDelta, EventTypeReasoningEnd, EventTypeToolCall,
		EventTypeToolResult, EventTypeFinishStep, EventTypeError, EventTypeAbort:
		return true
	default:
		return false
	}
}

// Event is one item of the agent event stream. Only the fields relevant to
// Type are populated.
type Event struct {
	Type EventType

	// Text is set on text-delta and reasoning-delta
	Text string

	// Tool fields for tool-call and tool-result
	ToolCallID string
	ToolName   string
	Input      json.RawMessage
	Output     json.RawMessage

	// Err is set on error events
	Err error
}

// ErrMissingField is returned by Validate when a required field is absent.
var ErrMissingField = errors.New("missing required field")

// Validate checks the fields an event type requires.
func (e Event) Validate() error {
	switch e.Type {
	case EventTypeToolCall:
		if e.ToolCallID == "" {
			return fmt.Errorf("%s: %w: toolCallId", e.Type, ErrMissingField)
		}
		if e.ToolName == "" {
			return fmt.Errorf("%s: %w: toolName", e.Type, ErrMissingField)
		}
		if e.Input == nil {
			return fmt.Errorf("%s: %w: input", e.Type, ErrMissingField)
		}
	case EventTypeToolResult:
		if e.ToolCallID == "" {
			return fmt.Errorf("%s: %w: toolCallId", e.Type, ErrMissingField)
		}
		if e.ToolName == "" {
			return fmt.Errorf("%s: %w: toolName", e.Type, ErrMissingField)
		}
		if e.Output == nil {
			return fmt.Errorf("%s: %w: output", e.Type, ErrMissingField)
		}
	}
	return nil
}

type eventJSON struct {
	Type       EventType       `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// MarshalJSON encodes the event in its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Type:       e.Type,
		Text:       e.Text,
		ToolCallID: e.ToolCallID,
		ToolName:   e.ToolName,
		Input:      e.Input,
		Output:     e.Output,
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form. An error payload becomes Err.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Event{
		Type:       in.Type,
		Text:       in.Text,
		ToolCallID: in.ToolCallID,
		ToolName:   in.ToolName,
		Input:      in.Input,
		Output:     in.Output,
	}
	if in.Error != "" {
		e.Err = errors.New(in.Error)
	}
	return nil
}

// DecodeEvents reads JSON Lines encoded events. Blank lines are skipped.
func DecodeEvents(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
