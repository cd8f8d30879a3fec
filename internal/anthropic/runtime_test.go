package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/agentstream/hooks"
	"github.com/youssefsiam38/agentstream/runstate"
	"github.com/youssefsiam38/agentstream/streaming"
	"github.com/youssefsiam38/agentstream/tool"
	"github.com/youssefsiam38/agentstream/types"
)

type fakeStream struct {
	events []anthropic.MessageStreamEventUnion
	pos    int
	err    error
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.events) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Current() anthropic.MessageStreamEventUnion { return s.events[s.pos-1] }
func (s *fakeStream) Err() error                                 { return s.err }
func (s *fakeStream) Close() error                               { return nil }

// scripted replays one response per request and records the requests
type scripted struct {
	mu        sync.Mutex
	responses []*fakeStream
	requests  []anthropic.MessageNewParams
}

func (s *scripted) open(ctx context.Context, params anthropic.MessageNewParams) EventStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, params)
	if len(s.responses) == 0 {
		return &fakeStream{err: errors.New("no scripted response")}
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next
}

func textResponse(t *testing.T, text string) *fakeStream {
	return &fakeStream{events: decodeEvents(t,
		evMessageStart,
		evTextStart(0), evTextDelta(0, text), evStop(0),
		evMessageDelta("end_turn"), evMessageStop,
	)}
}

func toolResponse(t *testing.T, id, name, input string) *fakeStream {
	return &fakeStream{events: decodeEvents(t,
		evMessageStart,
		evToolStart(0, id, name), evInputDelta(0, input), evStop(0),
		evMessageDelta("tool_use"), evMessageStop,
	)}
}

func echoExecutor(t *testing.T) *tool.Executor {
	t.Helper()
	registry := tool.NewRegistry()
	echo := tool.NewFuncTool("echo", "Echo text back",
		tool.ToolSchema{
			Type:       "object",
			Properties: map[string]tool.PropertyDef{"text": {Type: "string"}},
			Required:   []string{"text"},
		},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var params struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return "", err
			}
			if params.Text == "fail" {
				return "", errors.New("echo refused")
			}
			return `{"echo":"` + params.Text + `"}`, nil
		},
	)
	if err := registry.Register(echo); err != nil {
		t.Fatal(err)
	}
	return tool.NewExecutor(registry)
}

func consume(t *testing.T, stream streaming.Stream, seed []types.Message) streaming.Result {
	t.Helper()
	res, err := streaming.Consume(context.Background(), stream, seed, streaming.Config{})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	return res
}

func TestRuntime_TextOnly(t *testing.T) {
	api := &scripted{responses: []*fakeStream{textResponse(t, "Hello")}}
	rt := NewRuntime(api.open, nil, nil, nil, Options{Model: "claude-sonnet-4-5", SystemPrompt: "be brief"})

	seed := []types.Message{types.NewUserMessage("hi")}
	res := consume(t, rt.Stream(context.Background(), "s1", seed), seed)

	if res.State != runstate.RunStateFinished || res.Steps != 1 {
		t.Errorf("State = %s, Steps = %d", res.State, res.Steps)
	}
	if len(res.Messages) != 2 || res.Messages[1].Content[0].Text != "Hello" {
		t.Fatalf("unexpected messages: %+v", res.Messages)
	}

	if len(api.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(api.requests))
	}
	req := api.requests[0]
	if string(req.Model) != "claude-sonnet-4-5" || req.MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected request params: model=%s max_tokens=%d", req.Model, req.MaxTokens)
	}
	if len(req.System) != 1 || req.System[0].Text != "be brief" {
		t.Errorf("unexpected system prompt: %+v", req.System)
	}
}

func TestRuntime_ToolLoop(t *testing.T) {
	api := &scripted{responses: []*fakeStream{
		toolResponse(t, "toolu_1", "echo", `{"text":"ping"}`),
		textResponse(t, "Done"),
	}}

	var (
		mu        sync.Mutex
		toolCalls []string
	)
	hookRegistry := hooks.NewRegistry()
	hookRegistry.OnToolCall(func(ctx context.Context, name string, input json.RawMessage, output string, err error) error {
		mu.Lock()
		defer mu.Unlock()
		toolCalls = append(toolCalls, name+":"+output)
		return nil
	})

	rt := NewRuntime(api.open, echoExecutor(t), hookRegistry, nil, Options{Model: "m"})
	seed := []types.Message{types.NewUserMessage("ping please")}
	res := consume(t, rt.Stream(context.Background(), "s1", seed), seed)

	if res.State != runstate.RunStateFinished || res.Steps != 2 {
		t.Errorf("State = %s, Steps = %d", res.State, res.Steps)
	}

	wantRoles := []types.Role{types.RoleUser, types.RoleAssistant, types.RoleTool, types.RoleAssistant}
	if len(res.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d: %+v", len(wantRoles), len(res.Messages), res.Messages)
	}
	for i, role := range wantRoles {
		if res.Messages[i].Role != role {
			t.Errorf("message %d role = %s, want %s", i, res.Messages[i].Role, role)
		}
	}

	result := res.Messages[2].Content[0]
	if string(result.Output) != string(types.JSONOutput(`{"echo":"ping"}`)) {
		t.Errorf("tool output = %s", result.Output)
	}

	if len(api.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(api.requests))
	}
	if n := len(api.requests[1].Messages); n != 3 {
		t.Errorf("follow-up request has %d messages, want 3", n)
	}
	if len(api.requests[0].Tools) != 1 {
		t.Errorf("expected tools in request, got %d", len(api.requests[0].Tools))
	}

	if len(toolCalls) != 1 || toolCalls[0] != `echo:{"echo":"ping"}` {
		t.Errorf("tool hook calls = %v", toolCalls)
	}
}

func TestRuntime_ToolErrorBecomesResult(t *testing.T) {
	api := &scripted{responses: []*fakeStream{
		toolResponse(t, "toolu_1", "echo", `{"text":"fail"}`),
		textResponse(t, "Sorry"),
	}}
	rt := NewRuntime(api.open, echoExecutor(t), nil, nil, Options{Model: "m"})

	seed := []types.Message{types.NewUserMessage("go")}
	res := consume(t, rt.Stream(context.Background(), "s1", seed), seed)

	out, isError := resultContent(res.Messages[2].Content[0].Output)
	if !isError {
		t.Errorf("expected error output, got %s", out)
	}
	if res.State != runstate.RunStateFinished {
		t.Errorf("State = %s, want finished", res.State)
	}
}

func TestRuntime_RequestFailure(t *testing.T) {
	api := &scripted{responses: []*fakeStream{{err: errors.New("overloaded")}}}
	rt := NewRuntime(api.open, nil, nil, nil, Options{Model: "m"})

	var reported []error
	seed := []types.Message{types.NewUserMessage("hi")}
	res, err := streaming.Consume(context.Background(), rt.Stream(context.Background(), "s1", seed), seed, streaming.Config{
		Callbacks: streaming.Callbacks{OnError: func(err error) { reported = append(reported, err) }},
	})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if res.State != runstate.RunStateErrored {
		t.Errorf("State = %s, want errored", res.State)
	}
	if len(reported) != 1 || !errors.Is(reported[0], ErrRequestFailed) {
		t.Errorf("reported errors = %v", reported)
	}
}

func TestRuntime_MaxSteps(t *testing.T) {
	api := &scripted{responses: []*fakeStream{toolResponse(t, "toolu_1", "echo", `{"text":"a"}`)}}
	rt := NewRuntime(api.open, echoExecutor(t), nil, nil, Options{Model: "m", MaxSteps: 1})

	var reported []error
	seed := []types.Message{types.NewUserMessage("hi")}
	res, _ := streaming.Consume(context.Background(), rt.Stream(context.Background(), "s1", seed), seed, streaming.Config{
		Callbacks: streaming.Callbacks{OnError: func(err error) { reported = append(reported, err) }},
	})

	if res.State != runstate.RunStateErrored {
		t.Errorf("State = %s, want errored", res.State)
	}
	if len(reported) != 1 || !errors.Is(reported[0], ErrMaxSteps) {
		t.Errorf("reported errors = %v", reported)
	}
	if len(api.requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(api.requests))
	}
}

func TestRuntime_Cancelled(t *testing.T) {
	api := &scripted{responses: []*fakeStream{textResponse(t, "never")}}
	rt := NewRuntime(api.open, nil, nil, nil, Options{Model: "m"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	aborts := 0
	seed := []types.Message{types.NewUserMessage("hi")}
	res, err := streaming.Consume(ctx, rt.Stream(ctx, "s1", seed), seed, streaming.Config{
		Callbacks: streaming.Callbacks{OnAbort: func() { aborts++ }},
	})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.State != runstate.RunStateAborted || aborts != 1 {
		t.Errorf("State = %s, aborts = %d", res.State, aborts)
	}
	if len(api.requests) != 0 {
		t.Errorf("expected no requests after cancellation, got %d", len(api.requests))
	}
}

func TestRuntime_StopsWhenConsumerStops(t *testing.T) {
	raw := []string{evMessageStart, evTextStart(0)}
	for range 3 * pipeBuffer {
		raw = append(raw, evTextDelta(0, "x"))
	}
	raw = append(raw, evStop(0), evMessageDelta("end_turn"), evMessageStop)

	api := &scripted{responses: []*fakeStream{{events: decodeEvents(t, raw...)}}}
	rt := NewRuntime(api.open, nil, nil, nil, Options{Model: "m"})

	seed := []types.Message{types.NewUserMessage("hi")}
	stream := rt.Stream(context.Background(), "s1", seed)
	if !stream.Next() {
		t.Fatal("expected a first event")
	}
	stopper, ok := stream.(streaming.Stopper)
	if !ok {
		t.Fatalf("runtime stream %T does not implement Stopper", stream)
	}
	stopper.Stop()

	// The producer closes the pipe once it notices; draining then ends.
	drained := make(chan struct{})
	go func() {
		for stream.Next() {
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("producer kept running after the consumer stopped")
	}
}
