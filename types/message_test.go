package types

import (
	"encoding/json"
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "string content",
			msg:  Message{Role: RoleUser, Text: "hello"},
			want: "hello",
		},
		{
			name: "first text block wins",
			msg: Message{Role: RoleUser, Content: []ContentBlock{
				NewReasoningBlock("thinking"),
				NewTextBlock("first"),
				NewTextBlock("second"),
			}},
			want: "first",
		},
		{
			name: "no text block",
			msg: Message{Role: RoleUser, Content: []ContentBlock{
				NewToolCallBlock("c1", "bash", json.RawMessage(`{}`)),
			}},
			want: "",
		},
		{
			name: "empty message",
			msg:  Message{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.msg); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageJSON_ContentForms(t *testing.T) {
	plain := NewUserMessage("list files")
	data, err := json.Marshal(plain)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal into map failed: %v", err)
	}
	if raw["content"] != "list files" {
		t.Errorf("expected string content, got %#v", raw["content"])
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Text != "list files" || len(decoded.Content) != 0 {
		t.Errorf("unexpected decoded message: %+v", decoded)
	}
	if decoded.ID != plain.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, plain.ID)
	}

	blocks := NewAssistantMessage([]ContentBlock{
		NewTextBlock("running"),
		NewToolCallBlock("c1", "bash", json.RawMessage(`{"command":"ls"}`)),
	})
	data, err = json.Marshal(blocks)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded = Message{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded.Content) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(decoded.Content))
	}
	call := decoded.ToolCalls()
	if len(call) != 1 || call[0].ToolCallID != "c1" || string(call[0].Input) != `{"command":"ls"}` {
		t.Errorf("unexpected tool call block: %+v", call)
	}
}

func TestMessageJSON_RejectsObjectContent(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"role":"user","content":{"text":"x"}}`), &m)
	if err == nil {
		t.Fatal("expected error for object content")
	}
}

func TestJSONOutput(t *testing.T) {
	raw := JSONOutput(`{"stdout":"a\n"}`)

	var out ToolOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Format != OutputFormatJSON {
		t.Errorf("Format = %q, want %q", out.Format, OutputFormatJSON)
	}
	if out.Value != `{"stdout":"a\n"}` {
		t.Errorf("Value = %q", out.Value)
	}
}
