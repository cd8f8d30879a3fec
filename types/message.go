package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleTool represents a message carrying tool results
	RoleTool Role = "tool"

	// RoleSystem represents a system message
	RoleSystem Role = "system"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		return true
	default:
		return false
	}
}

// ContentType represents the type of content block
type ContentType string

const (
	// ContentTypeText represents text content
	ContentTypeText ContentType = "text"

	// ContentTypeReasoning represents model reasoning. It is persisted but never displayed.
	ContentTypeReasoning ContentType = "reasoning"

	// ContentTypeToolCall represents a tool invocation
	ContentTypeToolCall ContentType = "tool-call"

	// ContentTypeToolResult represents the output of a tool invocation
	ContentTypeToolResult ContentType = "tool-result"
)

// ContentBlock represents a piece of content in a message.
// Different fields are populated based on the Type.
type ContentBlock struct {
	Type ContentType `json:"type"`

	// Text content (text, reasoning)
	Text string `json:"text,omitempty"`

	// Tool fields (tool-call, tool-result)
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// NewTextBlock creates a text content block
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// NewReasoningBlock creates a reasoning content block
func NewReasoningBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeReasoning, Text: text}
}

// NewToolCallBlock creates a tool call content block
func NewToolCallBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{
		Type:       ContentTypeToolCall,
		ToolCallID: id,
		ToolName:   name,
		Input:      input,
	}
}

// NewToolResultBlock creates a tool result content block
func NewToolResultBlock(id, name string, output json.RawMessage) ContentBlock {
	return ContentBlock{
		Type:       ContentTypeToolResult,
		ToolCallID: id,
		ToolName:   name,
		Output:     output,
	}
}

// ToolOutput is the wrapper every tool result output travels in.
type ToolOutput struct {
	Format string `json:"format"`
	Value  string `json:"value"`
}

// OutputFormatJSON marks a ToolOutput whose value is a JSON document.
const OutputFormatJSON = "json"

// JSONOutput wraps a tool's serialized output for a tool-result block.
func JSONOutput(value string) json.RawMessage {
	b, _ := json.Marshal(ToolOutput{Format: OutputFormatJSON, Value: value})
	return b
}

// Message represents a conversation message.
//
// Content is either plain text (Text, with Content empty) or an ordered
// sequence of blocks. User and system messages usually carry plain text,
// assistant messages carry text, reasoning and tool-call blocks, and tool
// messages carry tool-result blocks.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Content   []ContentBlock
	CreatedAt time.Time
}

// NewMessage creates a new message with a fresh ID
func NewMessage(role Role, content []ContentBlock) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message with plain text content
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content []ContentBlock) Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolMessage creates a new tool message
func NewToolMessage(content []ContentBlock) Message {
	return NewMessage(RoleTool, content)
}

// IsPlainText reports whether the message carries a string rather than blocks.
func (m *Message) IsPlainText() bool {
	return len(m.Content) == 0 && m.Text != ""
}

// ToolCalls returns the tool call blocks of the message in order.
func (m *Message) ToolCalls() []ContentBlock {
	return m.blocksOfType(ContentTypeToolCall)
}

// ToolResults returns the tool result blocks of the message in order.
func (m *Message) ToolResults() []ContentBlock {
	return m.blocksOfType(ContentTypeToolResult)
}

func (m *Message) blocksOfType(t ContentType) []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// PlainText extracts a best-effort plain text summary of a message: the
// string content if present, else the first text block, else "".
func PlainText(m Message) string {
	if len(m.Content) == 0 {
		return m.Text
	}
	for _, b := range m.Content {
		if b.Type == ContentTypeText {
			return b.Text
		}
	}
	return ""
}

type messageJSON struct {
	ID        string          `json:"id,omitempty"`
	Role      Role            `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
}

// ContentJSON encodes the message content on its own: a JSON string for
// plain text messages, a block array otherwise.
func (m Message) ContentJSON() (json.RawMessage, error) {
	if len(m.Content) == 0 {
		return json.Marshal(m.Text)
	}
	return json.Marshal(m.Content)
}

// SetContentJSON decodes content in either form produced by ContentJSON.
func (m *Message) SetContentJSON(data []byte) error {
	m.Text, m.Content = "", nil

	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &m.Text)
	case '[':
		return json.Unmarshal(data, &m.Content)
	default:
		return fmt.Errorf("types: message content must be a string or an array, got %s", data)
	}
}

// MarshalJSON encodes content as a string for plain text messages and as a
// block array otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	content, err := m.ContentJSON()
	if err != nil {
		return nil, err
	}

	out := messageJSON{ID: m.ID, Role: m.Role, Content: content}
	if !m.CreatedAt.IsZero() {
		out.CreatedAt = &m.CreatedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts either form of content.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*m = Message{ID: in.ID, Role: in.Role}
	if in.CreatedAt != nil {
		m.CreatedAt = *in.CreatedAt
	}
	return m.SetContentJSON(in.Content)
}
