// Package anthropic adapts the Anthropic Messages API to the agent event
// stream: history goes out as message params, streamed responses come back
// as streaming events.
package anthropic

import (
	"encoding/json"
	"slices"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/agentstream/types"
)

// BuildRequest converts a conversation history into the system prompt and
// message params of a Messages API request.
//
// System messages are folded into the system prompt. Tool messages are sent
// as user messages carrying tool_result blocks. Reasoning is not sent back.
// Adjacent messages that map to the same API role are merged.
func BuildRequest(systemPrompt string, history []types.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	if systemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: systemPrompt})
	}

	messages := make([]anthropic.MessageParam, 0, len(history))
	for i := range history {
		msg := &history[i]

		if msg.Role == types.RoleSystem {
			if text := types.PlainText(*msg); text != "" {
				system = append(system, anthropic.TextBlockParam{Text: text})
			}
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == types.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		content := convertContent(msg)
		if len(content) == 0 {
			continue
		}

		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, content...)
			continue
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    role,
			Content: content,
		})
	}

	return system, pairToolResults(messages)
}

// interruptedResult answers a tool call whose run ended before it produced a
// result, such as an aborted turn.
const interruptedResult = `{"error":"tool call interrupted"}`

// pairToolResults makes every tool_use answered by a tool_result in the
// user message right after it, as the API requires. Missing results are
// filled with an error result at the front of that message; results that
// answer no tool_use of the preceding assistant message are dropped.
func pairToolResults(messages []anthropic.MessageParam) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages)+1)
	var pending []string

	for _, msg := range messages {
		if msg.Role == anthropic.MessageParamRoleAssistant {
			if len(pending) > 0 {
				out = append(out, anthropic.NewUserMessage(interrupted(pending)...))
			}
			pending = nil
			for _, block := range msg.Content {
				if block.OfToolUse != nil {
					pending = append(pending, block.OfToolUse.ID)
				}
			}
			out = append(out, msg)
			continue
		}

		answered := make(map[string]bool, len(pending))
		content := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			if r := block.OfToolResult; r != nil {
				if !slices.Contains(pending, r.ToolUseID) || answered[r.ToolUseID] {
					continue
				}
				answered[r.ToolUseID] = true
			}
			content = append(content, block)
		}

		var missing []string
		for _, id := range pending {
			if !answered[id] {
				missing = append(missing, id)
			}
		}
		pending = nil

		content = append(interrupted(missing), content...)
		if len(content) == 0 {
			continue
		}
		msg.Content = content
		out = append(out, msg)
	}

	if len(pending) > 0 {
		out = append(out, anthropic.NewUserMessage(interrupted(pending)...))
	}
	return out
}

func interrupted(ids []string) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, anthropic.NewToolResultBlock(id, interruptedResult, true))
	}
	return blocks
}

func convertContent(msg *types.Message) []anthropic.ContentBlockParamUnion {
	if msg.IsPlainText() {
		if msg.Text == "" {
			return nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Text)}
	}

	content := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case types.ContentTypeText:
			// The API rejects empty text blocks
			if block.Text == "" {
				continue
			}
			content = append(content, anthropic.NewTextBlock(block.Text))

		case types.ContentTypeToolCall:
			var input any
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &input)
			}
			// The API requires an object, not null
			if input == nil {
				input = map[string]any{}
			}
			content = append(content, anthropic.NewToolUseBlock(block.ToolCallID, input, block.ToolName))

		case types.ContentTypeToolResult:
			text, isError := resultContent(block.Output)
			content = append(content, anthropic.NewToolResultBlock(block.ToolCallID, text, isError))
		}
	}
	return content
}

// resultContent unwraps a tool-result output into the text sent to the
// model. Outputs of the form {"error": "..."} are flagged as errors.
func resultContent(output json.RawMessage) (string, bool) {
	text := string(output)

	var wrapped types.ToolOutput
	if err := json.Unmarshal(output, &wrapped); err == nil && wrapped.Format != "" {
		text = wrapped.Value
	}

	var errPayload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &errPayload); err == nil && len(errPayload) == 1 {
		if _, ok := errPayload["error"]; ok {
			return text, true
		}
	}
	return text, false
}

// ErrorOutput is the tool-result output recorded for a failed tool run.
func ErrorOutput(err error) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return types.JSONOutput(string(b))
}
