package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/agentstream/streaming"
	"github.com/youssefsiam38/agentstream/types"
)

// ToolCall is a complete tool invocation parsed from a model response.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

type blockKind int

const (
	blockText blockKind = iota
	blockThinking
	blockToolUse
)

// block is a content block still being streamed
type block struct {
	kind  blockKind
	id    string
	name  string
	text  strings.Builder
	input strings.Builder
}

// Translator converts the raw events of one Messages API stream into agent
// stream events. Text and reasoning pass through as deltas; tool input is
// buffered until its block stops and then announced as a single tool-call.
type Translator struct {
	blocks     map[int64]*block
	content    []types.ContentBlock
	calls      []ToolCall
	stopReason anthropic.StopReason
}

// NewTranslator creates a translator for one model response.
func NewTranslator() *Translator {
	return &Translator{blocks: make(map[int64]*block)}
}

// Translate processes one API event and returns the agent events it yields.
func (t *Translator) Translate(event anthropic.MessageStreamEventUnion) []streaming.Event {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		b := &block{}
		var out []streaming.Event

		switch content := e.ContentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			b.kind = blockText
			b.text.WriteString(content.Text)
			if content.Text != "" {
				out = append(out, streaming.Event{Type: streaming.EventTypeTextDelta, Text: content.Text})
			}
		case anthropic.ThinkingBlock:
			b.kind = blockThinking
			b.text.WriteString(content.Thinking)
			if content.Thinking != "" {
				out = append(out, streaming.Event{Type: streaming.EventTypeReasoningDelta, Text: content.Thinking})
			}
		case anthropic.ToolUseBlock:
			b.kind = blockToolUse
			b.id = content.ID
			b.name = content.Name
		default:
			return nil
		}

		t.blocks[e.Index] = b
		return out

	case anthropic.ContentBlockDeltaEvent:
		b, exists := t.blocks[e.Index]
		if !exists {
			return nil
		}

		switch delta := e.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			b.text.WriteString(delta.Text)
			return []streaming.Event{{Type: streaming.EventTypeTextDelta, Text: delta.Text}}
		case anthropic.ThinkingDelta:
			b.text.WriteString(delta.Thinking)
			return []streaming.Event{{Type: streaming.EventTypeReasoningDelta, Text: delta.Thinking}}
		case anthropic.InputJSONDelta:
			b.input.WriteString(delta.PartialJSON)
		}
		return nil

	case anthropic.ContentBlockStopEvent:
		b, exists := t.blocks[e.Index]
		if !exists {
			return nil
		}
		delete(t.blocks, e.Index)

		switch b.kind {
		case blockText:
			if b.text.Len() > 0 {
				t.content = append(t.content, types.NewTextBlock(b.text.String()))
			}
			return []streaming.Event{{Type: streaming.EventTypeTextEnd}}
		case blockThinking:
			if b.text.Len() > 0 {
				t.content = append(t.content, types.NewReasoningBlock(b.text.String()))
			}
			return []streaming.Event{{Type: streaming.EventTypeReasoningEnd}}
		default:
			call := ToolCall{ID: b.id, Name: b.name, Input: toolInput(b.input.String())}
			t.calls = append(t.calls, call)
			t.content = append(t.content, types.NewToolCallBlock(call.ID, call.Name, call.Input))
			return []streaming.Event{{
				Type:       streaming.EventTypeToolCall,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Input:      call.Input,
			}}
		}

	case anthropic.MessageDeltaEvent:
		t.stopReason = e.Delta.StopReason
	}

	return nil
}

// Content returns the assistant content blocks completed so far.
func (t *Translator) Content() []types.ContentBlock {
	return t.content
}

// ToolCalls returns the tool calls completed so far, in stream order.
func (t *Translator) ToolCalls() []ToolCall {
	return t.calls
}

// StopReason returns the stop reason reported by the response, if any.
func (t *Translator) StopReason() anthropic.StopReason {
	return t.stopReason
}

// toolInput defaults empty tool input to an empty object
func toolInput(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}
