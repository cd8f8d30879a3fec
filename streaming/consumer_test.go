package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/youssefsiam38/agentstream/runstate"
	"github.com/youssefsiam38/agentstream/types"
)

type recorder struct {
	updates  int
	thinking []bool
	saves    [][]types.Message
	errs     []error
	aborts   int
	saveErr  func(call int) error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMessageUpdate: func(messages []types.Message) { r.updates++ },
		OnThinkingStateChange: func(thinking bool) {
			r.thinking = append(r.thinking, thinking)
		},
		OnSaveMessages: func(ctx context.Context, messages []types.Message) error {
			r.saves = append(r.saves, messages)
			if r.saveErr != nil {
				return r.saveErr(len(r.saves))
			}
			return nil
		},
		OnError: func(err error) { r.errs = append(r.errs, err) },
		OnAbort: func() { r.aborts++ },
	}
}

func (r *recorder) falseCount() int {
	n := 0
	for _, v := range r.thinking {
		if !v {
			n++
		}
	}
	return n
}

func textDelta(s string) Event { return Event{Type: EventTypeTextDelta, Text: s} }

func toolCall(id, name, input string) Event {
	return Event{Type: EventTypeToolCall, ToolCallID: id, ToolName: name, Input: json.RawMessage(input)}
}

func toolResult(id, name, value string) Event {
	return Event{Type: EventTypeToolResult, ToolCallID: id, ToolName: name, Output: types.JSONOutput(value)}
}

func TestConsume_TextStep(t *testing.T) {
	rec := &recorder{}
	stream := NewSliceStream(
		Event{Type: EventTypeStartStep},
		textDelta("Hel"),
		textDelta("lo"),
		Event{Type: EventTypeTextEnd},
		Event{Type: EventTypeFinishStep},
	)

	res, err := Consume(context.Background(), stream, nil, Config{Callbacks: rec.callbacks()})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	msg := res.Messages[0]
	if msg.Role != types.RoleAssistant || len(msg.Content) != 1 || msg.Content[0].Text != "Hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if res.State != runstate.RunStateFinished {
		t.Errorf("State = %s, want finished", res.State)
	}
	if res.Steps != 1 {
		t.Errorf("Steps = %d, want 1", res.Steps)
	}
	if rec.updates != 1 {
		t.Errorf("updates = %d, want 1", rec.updates)
	}
	if len(rec.saves) != 1 {
		t.Errorf("saves = %d, want 1", len(rec.saves))
	}
	if len(rec.thinking) != 2 || !rec.thinking[0] || rec.thinking[1] {
		t.Errorf("thinking = %v, want [true false]", rec.thinking)
	}
}

func TestConsume_MultipleTextRunsInStep(t *testing.T) {
	stream := NewSliceStream(
		Event{Type: EventTypeStartStep},
		textDelta("one"),
		Event{Type: EventTypeTextEnd},
		toolCall("c1", "bash", `{"command":"ls"}`),
		textDelta("two"),
		Event{Type: EventTypeTextEnd},
		Event{Type: EventTypeFinishStep},
	)

	res, err := Consume(context.Background(), stream, nil, Config{})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	content := res.Messages[0].Content
	if len(content) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(content))
	}
	if content[0].Text != "one" || content[2].Text != "two" {
		t.Errorf("text blocks = %q, %q", content[0].Text, content[2].Text)
	}
}

func TestConsume_ToolPair(t *testing.T) {
	stream := NewSliceStream(
		Event{Type: EventTypeStartStep},
		toolCall("c1", "bash", `{"command":"ls"}`),
		toolResult("c1", "bash", `{"stdout":"a\n"}`),
		Event{Type: EventTypeFinishStep},
	)

	res, err := Consume(context.Background(), stream, nil, Config{})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	calls, results := 0, 0
	for i := range res.Messages {
		for _, b := range res.Messages[i].ToolCalls() {
			if b.ToolCallID == "c1" {
				calls++
			}
		}
		for _, b := range res.Messages[i].ToolResults() {
			if b.ToolCallID == "c1" {
				results++
			}
		}
	}
	if calls != 1 || results != 1 {
		t.Errorf("calls = %d, results = %d, want 1 and 1", calls, results)
	}
}

func TestConsume_MalformedEventsSkipped(t *testing.T) {
	rec := &recorder{}
	stream := NewSliceStream(
		Event{Type: EventTypeToolCall, ToolCallID: "c1", Input: json.RawMessage(`{}`)},
		Event{Type: EventTypeToolResult, ToolCallID: "c1", ToolName: "bash"},
		Event{Type: EventType("custom")},
		Event{Type: EventTypeTextEnd},
	)

	res, err := Consume(context.Background(), stream, nil, Config{Callbacks: rec.callbacks()})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if len(res.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(res.Messages))
	}
	if rec.updates != 0 {
		t.Errorf("updates = %d, want 0", rec.updates)
	}
}

func TestConsume_AbortSavesPartialTurn(t *testing.T) {
	rec := &recorder{}
	seed := []types.Message{types.NewUserMessage("earlier"), types.NewUserMessage("list files")}
	start := 1

	stream := NewSliceStream(
		Event{Type: EventTypeStartStep},
		toolCall("c1", "bash", `{"command":"ls"}`),
		Event{Type: EventTypeAbort},
	)

	res, err := Consume(context.Background(), stream, seed, Config{
		Callbacks:             rec.callbacks(),
		CurrentTurnStartIndex: &start,
	})
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}

	if rec.aborts != 1 {
		t.Errorf("aborts = %d, want 1", rec.aborts)
	}
	if len(rec.saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(rec.saves))
	}
	if len(rec.saves[0]) != 2 {
		t.Errorf("saved %d messages, want 2", len(rec.saves[0]))
	}
	if res.State != runstate.RunStateAborted {
		t.Errorf("State = %s, want aborted", res.State)
	}
	if len(res.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(res.Messages))
	}
	if rec.falseCount() != 1 {
		t.Errorf("thinking(false) fired %d times", rec.falseCount())
	}
}

func TestConsume_SaveFailureDoesNotStopLoop(t *testing.T) {
	saveErr := errors.New("disk full")
	rec := &recorder{saveErr: func(call int) error {
		if call == 1 {
			return saveErr
		}
		return nil
	}}

	stream := NewSliceStream(
		Event{Type: EventTypeStartStep},
		textDelta("one"),
		Event{Type: EventTypeTextEnd},
		Event{Type: EventTypeFinishStep},
		Event{Type: EventTypeStartStep},
		textDelta("two"),
		Event{Type: EventTypeTextEnd},
		Event{Type: EventTypeFinishStep},
	)

	res, err := Consume(context.Background(), stream, nil, Config{Callbacks: rec.callbacks()})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], saveErr) {
		t.Errorf("errs = %v, want [%v]", rec.errs, saveErr)
	}
	if len(res.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(res.Messages))
	}
	if len(rec.saves) != 2 {
		t.Errorf("saves = %d, want 2", len(rec.saves))
	}
	if res.State != runstate.RunStateFinished {
		t.Errorf("State = %s, want finished", res.State)
	}
}

func TestConsume_ErrorEventContinues(t *testing.T) {
	rec := &recorder{}
	stream := NewSliceStream(
		Event{Type: EventTypeError, Err: errors.New("rate limited")},
		Event{Type: EventTypeError},
		Event{Type: EventTypeStartStep},
		textDelta("after"),
		Event{Type: EventTypeTextEnd},
	)

	res, err := Consume(context.Background(), stream, nil, Config{Callbacks: rec.callbacks()})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if len(rec.errs) != 2 {
		t.Fatalf("errs = %d, want 2", len(rec.errs))
	}
	if !errors.Is(rec.errs[1], ErrStreamEvent) {
		t.Errorf("empty error event reported as %v", rec.errs[1])
	}
	if len(rec.saves) != 2 {
		t.Errorf("saves = %d, want 2", len(rec.saves))
	}
	if len(res.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(res.Messages))
	}
	if res.State != runstate.RunStateErrored {
		t.Errorf("State = %s, want errored", res.State)
	}
}

func TestConsume_StreamFailure(t *testing.T) {
	rec := &recorder{saveErr: func(int) error { return errors.New("save failed") }}
	cause := errors.New("connection reset")

	stream := NewFailingSliceStream(cause,
		Event{Type: EventTypeStartStep},
		textDelta("partial"),
		Event{Type: EventTypeTextEnd},
	)

	res, err := Consume(context.Background(), stream, nil, Config{Callbacks: rec.callbacks()})
	if !errors.Is(err, ErrStreamFailed) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapping ErrStreamFailed and cause", err)
	}

	if len(res.Messages) != 1 {
		t.Errorf("expected accumulated message, got %d", len(res.Messages))
	}
	// The best-effort save failure is logged only
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], cause) {
		t.Errorf("errs = %v, want only the stream failure", rec.errs)
	}
	if len(rec.saves) != 1 {
		t.Errorf("saves = %d, want 1", len(rec.saves))
	}
	if res.State != runstate.RunStateErrored {
		t.Errorf("State = %s, want errored", res.State)
	}
	if rec.falseCount() != 1 {
		t.Errorf("thinking(false) fired %d times", rec.falseCount())
	}
}

func TestConsume_ThinkingFalseOnPanic(t *testing.T) {
	var thinking []bool
	cfg := Config{Callbacks: Callbacks{
		OnThinkingStateChange: func(v bool) { thinking = append(thinking, v) },
		OnMessageUpdate:       func([]types.Message) { panic("render failed") },
	}}
	stream := NewSliceStream(textDelta("x"), Event{Type: EventTypeTextEnd})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_, _ = Consume(context.Background(), stream, nil, cfg)
	}()

	if len(thinking) != 2 || thinking[1] {
		t.Errorf("thinking = %v, want [true false]", thinking)
	}
}

func TestConsume_TerminalPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   runstate.RunState
	}{
		{"empty", nil, runstate.RunStateFinished},
		{"error", []Event{{Type: EventTypeError}}, runstate.RunStateErrored},
		{"abort", []Event{{Type: EventTypeAbort}}, runstate.RunStateAborted},
		{"error then abort", []Event{{Type: EventTypeError}, {Type: EventTypeAbort}}, runstate.RunStateAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Consume(context.Background(), NewSliceStream(tt.events...), nil, Config{})
			if err != nil {
				t.Fatalf("Consume failed: %v", err)
			}
			if res.State != tt.want {
				t.Errorf("State = %s, want %s", res.State, tt.want)
			}
		})
	}
}

func TestConsume_Pipe(t *testing.T) {
	pipe := NewPipe(0)
	go func() {
		ctx := context.Background()
		_ = pipe.Send(ctx, Event{Type: EventTypeStartStep})
		_ = pipe.Send(ctx, textDelta("hi"))
		_ = pipe.Send(ctx, Event{Type: EventTypeTextEnd})
		_ = pipe.Send(ctx, Event{Type: EventTypeFinishStep})
		pipe.Close()
	}()

	res, err := Consume(context.Background(), pipe, nil, Config{})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Content[0].Text != "hi" {
		t.Errorf("unexpected messages: %+v", res.Messages)
	}

	if err := pipe.Send(context.Background(), textDelta("late")); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Send after close = %v, want ErrStreamClosed", err)
	}
}

func TestConsume_StopsPipe(t *testing.T) {
	pipe := NewPipe(1)
	go func() {
		_ = pipe.Send(context.Background(), Event{Type: EventTypeStartStep})
		pipe.Close()
	}()

	if _, err := Consume(context.Background(), pipe, nil, Config{}); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	select {
	case <-pipe.Stopped():
	default:
		t.Error("Consume returned without stopping the pipe")
	}
}

func TestPipe_SendAfterStop(t *testing.T) {
	pipe := NewPipe(0)
	done := make(chan error, 1)
	go func() { done <- pipe.Send(context.Background(), textDelta("blocked")) }()

	pipe.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, ErrConsumerStopped) {
			t.Errorf("blocked Send = %v, want ErrConsumerStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send stayed blocked after Stop")
	}

	if err := pipe.Send(context.Background(), textDelta("late")); !errors.Is(err, ErrConsumerStopped) {
		t.Errorf("Send after Stop = %v, want ErrConsumerStopped", err)
	}
}

func TestPipe_CloseWhileSending(t *testing.T) {
	for range 50 {
		pipe := NewPipe(0)
		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- pipe.Send(context.Background(), textDelta("x"))
			}()
		}
		pipe.CloseWithError(errors.New("producer gone"))
		wg.Wait()
		close(errs)

		for err := range errs {
			if !errors.Is(err, ErrStreamClosed) {
				t.Fatalf("Send during close = %v, want ErrStreamClosed", err)
			}
		}
		if pipe.Next() {
			t.Fatal("closed unbuffered pipe yielded an event")
		}
	}
}
