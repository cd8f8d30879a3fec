package streaming

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      Event
		wantErr bool
	}{
		{"text delta", Event{Type: EventTypeTextDelta, Text: "x"}, false},
		{"tool call", toolCall("c1", "bash", `{}`), false},
		{"tool call without id", Event{Type: EventTypeToolCall, ToolName: "bash", Input: json.RawMessage(`{}`)}, true},
		{"tool call without input", Event{Type: EventTypeToolCall, ToolCallID: "c1", ToolName: "bash"}, true},
		{"tool result", toolResult("c1", "bash", "{}"), false},
		{"tool result without name", Event{Type: EventTypeToolResult, ToolCallID: "c1", Output: json.RawMessage(`{}`)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMissingField) {
				t.Errorf("error %v does not wrap ErrMissingField", err)
			}
		})
	}
}

func TestDecodeEvents(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"start-step"}`,
		``,
		`{"type":"tool-call","toolCallId":"c1","toolName":"bash","input":{"command":"ls"}}`,
		`{"type":"error","error":"rate limited"}`,
		`   `,
		`{"type":"finish-step"}`,
	}, "\n")

	events, err := DecodeEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeEvents failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[1].ToolCallID != "c1" || string(events[1].Input) != `{"command":"ls"}` {
		t.Errorf("unexpected tool call: %+v", events[1])
	}
	if events[2].Err == nil || events[2].Err.Error() != "rate limited" {
		t.Errorf("error payload = %v", events[2].Err)
	}
}

func TestDecodeEvents_BadLine(t *testing.T) {
	_, err := DecodeEvents(strings.NewReader("{\"type\":\"start-step\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want line 2 error", err)
	}
}

func TestEvent_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventTypeError, Err: errors.New("boom")})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"type":"error","error":"boom"}` {
		t.Errorf("Marshal = %s", data)
	}
}
