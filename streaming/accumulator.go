package streaming

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentstream/types"
)

// OpenToolCall is a tool invocation that has not received its result yet.
type OpenToolCall struct {
	Name  string
	Input json.RawMessage

	// Position of the tool-call block inside State.Messages
	MessageIndex int
	BlockIndex   int
}

// State accumulates committed content into a conversation history.
//
// A State belongs to exactly one run. Messages only ever grows; existing
// messages are extended in place only while they are the in-progress
// assistant message of the current step.
type State struct {
	Messages      []types.Message
	OpenToolCalls map[string]OpenToolCall

	// Index of the first message appended during the current step
	stepStart int

	log *slog.Logger
}

// NewState creates the state for one run, seeded with prior conversation
// turns. Seed messages without an ID are given one.
func NewState(seed []types.Message, log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}

	messages := make([]types.Message, len(seed))
	copy(messages, seed)
	for i := range messages {
		if messages[i].ID == "" {
			messages[i].ID = uuid.New().String()
		}
	}

	return &State{
		Messages:      messages,
		OpenToolCalls: make(map[string]OpenToolCall),
		stepStart:     len(messages),
		log:           log,
	}
}

// BeginStep marks a step boundary. Content committed afterwards never
// extends a message from an earlier step.
func (s *State) BeginStep() {
	s.stepStart = len(s.Messages)
}

// AddText commits the fully concatenated text of a step.
func (s *State) AddText(text string) {
	s.appendAssistantBlock(types.NewTextBlock(text))
}

// AddReasoning commits the fully concatenated reasoning of a step.
func (s *State) AddReasoning(text string) {
	s.appendAssistantBlock(types.NewReasoningBlock(text))
}

// AddToolCall commits a tool-call block and registers it as open. A call
// whose id is still open is dropped and false is returned.
func (s *State) AddToolCall(id, name string, input json.RawMessage) bool {
	if _, ok := s.OpenToolCalls[id]; ok {
		s.log.Warn("dropping duplicate tool call", "tool_call_id", id, "tool_name", name)
		return false
	}

	msgIdx, blockIdx := s.appendAssistantBlock(types.NewToolCallBlock(id, name, input))
	s.OpenToolCalls[id] = OpenToolCall{
		Name:         name,
		Input:        input,
		MessageIndex: msgIdx,
		BlockIndex:   blockIdx,
	}
	return true
}

// AddToolResult commits a tool-result block as a new tool message and
// resolves the matching open call. A result with no open call is an orphan:
// it is logged, nothing is mutated and false is returned.
func (s *State) AddToolResult(id, name string, output json.RawMessage) bool {
	call, ok := s.OpenToolCalls[id]
	if !ok {
		s.log.Warn("dropping orphaned tool result", "tool_call_id", id, "tool_name", name)
		return false
	}
	if call.Name != name {
		s.log.Debug("tool result name differs from call",
			"tool_call_id", id,
			"call_name", call.Name,
			"result_name", name,
		)
	}

	s.Messages = append(s.Messages, types.NewToolMessage([]types.ContentBlock{
		types.NewToolResultBlock(id, name, output),
	}))
	delete(s.OpenToolCalls, id)
	return true
}

// Snapshot returns a copy of the message list that stays valid while the
// state keeps mutating.
func (s *State) Snapshot() []types.Message {
	return s.Since(0)
}

// Since returns a copy of the messages from index start on. Out of range
// values are clamped.
func (s *State) Since(start int) []types.Message {
	if start < 0 {
		start = 0
	}
	if start > len(s.Messages) {
		start = len(s.Messages)
	}

	out := make([]types.Message, len(s.Messages)-start)
	for i, m := range s.Messages[start:] {
		m.Content = append([]types.ContentBlock(nil), m.Content...)
		out[i] = m
	}
	return out
}

// appendAssistantBlock adds block to the in-progress assistant message of
// the step, opening one when needed, and returns where it landed.
func (s *State) appendAssistantBlock(block types.ContentBlock) (int, int) {
	last := len(s.Messages) - 1
	if last < s.stepStart || s.Messages[last].Role != types.RoleAssistant {
		s.Messages = append(s.Messages, types.NewAssistantMessage(nil))
		last = len(s.Messages) - 1
	}

	msg := &s.Messages[last]
	msg.Content = append(msg.Content, block)
	return last, len(msg.Content) - 1
}
