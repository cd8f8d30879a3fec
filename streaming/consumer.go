package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/youssefsiam38/agentstream/runstate"
	"github.com/youssefsiam38/agentstream/types"
)

var (
	// ErrStreamFailed wraps the error of a stream that failed on its own.
	// It is the only error Consume returns.
	ErrStreamFailed = errors.New("stream failed")

	// ErrStreamEvent is reported for an error event that carries no payload.
	ErrStreamEvent = errors.New("stream reported an error")
)

// Callbacks are the host notifications fired while consuming a stream.
// All of them are optional.
type Callbacks struct {
	// OnMessageUpdate receives a copy of the full message list after every
	// committed mutation.
	OnMessageUpdate func(messages []types.Message)

	// OnThinkingStateChange fires once with true when consumption starts and
	// once with false when it ends, on every path.
	OnThinkingStateChange func(thinking bool)

	// OnSaveMessages persists the current turn. It is called at every step
	// end and on error, abort and stream failure.
	OnSaveMessages func(ctx context.Context, messages []types.Message) error

	OnError func(err error)
	OnAbort func()
}

// Config configures a single Consume call.
type Config struct {
	Callbacks Callbacks

	// CurrentTurnStartIndex limits saves to messages from this index on.
	// Nil saves the whole list.
	CurrentTurnStartIndex *int

	Logger *slog.Logger
}

// Result is what a consumer run produced.
type Result struct {
	// Messages is the full history including the seed prefix
	Messages []types.Message

	// State is the terminal state of the run
	State runstate.RunState

	// Steps counts finish-step events
	Steps int
}

type consumer struct {
	ctx   context.Context
	cfg   Config
	log   *slog.Logger
	state *State
	run   *runstate.Machine

	text      strings.Builder
	reasoning strings.Builder

	steps   int
	errored bool
	aborted bool
}

// Consume reads stream to its end, one event at a time, and builds the
// conversation history on top of seed.
//
// Error and abort events are reported through callbacks and never stop the
// loop; consumption ends only when the stream does. If the stream itself
// fails, the accumulated messages are returned together with an error
// wrapping ErrStreamFailed.
func Consume(ctx context.Context, stream Stream, seed []types.Message, cfg Config) (Result, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &consumer{
		ctx:   ctx,
		cfg:   cfg,
		log:   log,
		state: NewState(seed, log),
		run:   runstate.NewMachine(),
	}

	if s, ok := stream.(Stopper); ok {
		defer s.Stop()
	}

	if err := c.run.TransitionTo(runstate.RunStateStreaming); err != nil {
		return Result{}, err
	}
	c.thinking(true)
	defer c.thinking(false)

	for stream.Next() {
		c.handle(stream.Current())
	}

	if err := stream.Err(); err != nil {
		c.log.Error("stream failed", "error", err, "messages", len(c.state.Messages))
		c.errored = true
		c.reportError(err)
		c.save(false)
		c.finish()
		return c.result(), fmt.Errorf("%w: %w", ErrStreamFailed, err)
	}

	c.finish()
	return c.result(), nil
}

func (c *consumer) handle(ev Event) {
	if err := ev.Validate(); err != nil {
		c.log.Debug("skipping malformed event", "error", err)
		return
	}

	switch ev.Type {
	case EventTypeStartStep:
		c.text.Reset()
		c.reasoning.Reset()
		c.state.BeginStep()

	case EventTypeReasoningDelta:
		c.reasoning.WriteString(ev.Text)

	case EventTypeReasoningEnd:
		if c.reasoning.Len() == 0 {
			return
		}
		c.state.AddReasoning(c.reasoning.String())
		c.reasoning.Reset()
		c.update()

	case EventTypeTextDelta:
		c.text.WriteString(ev.Text)

	case EventTypeTextEnd:
		if c.text.Len() == 0 {
			return
		}
		c.state.AddText(c.text.String())
		c.text.Reset()
		c.update()

	case EventTypeToolCall:
		if c.state.AddToolCall(ev.ToolCallID, ev.ToolName, ev.Input) {
			c.update()
		}

	case EventTypeToolResult:
		if c.state.AddToolResult(ev.ToolCallID, ev.ToolName, ev.Output) {
			c.update()
		}

	case EventTypeFinishStep:
		c.steps++
		c.save(true)

	case EventTypeError:
		err := ev.Err
		if err == nil {
			err = ErrStreamEvent
		}
		c.log.Warn("stream error event", "error", err)
		c.errored = true
		c.reportError(err)
		c.save(false)

	case EventTypeAbort:
		c.log.Info("stream aborted", "messages", len(c.state.Messages))
		c.aborted = true
		if c.cfg.Callbacks.OnAbort != nil {
			c.cfg.Callbacks.OnAbort()
		}
		c.save(false)

	default:
		c.log.Debug("skipping unknown event type", "type", ev.Type)
	}
}

// save hands the current turn to OnSaveMessages. Failures are logged and,
// when report is set, forwarded to OnError; they never stop consumption.
func (c *consumer) save(report bool) {
	if c.cfg.Callbacks.OnSaveMessages == nil {
		return
	}

	start := 0
	if c.cfg.CurrentTurnStartIndex != nil {
		start = *c.cfg.CurrentTurnStartIndex
	}
	messages := c.state.Since(start)

	// An aborted turn is still persisted after the caller cancelled.
	ctx := context.WithoutCancel(c.ctx)
	if err := c.cfg.Callbacks.OnSaveMessages(ctx, messages); err != nil {
		c.log.Error("failed to save messages", "error", err, "count", len(messages))
		if report {
			c.reportError(err)
		}
	}
}

func (c *consumer) update() {
	if c.cfg.Callbacks.OnMessageUpdate != nil {
		c.cfg.Callbacks.OnMessageUpdate(c.state.Snapshot())
	}
}

func (c *consumer) thinking(v bool) {
	if c.cfg.Callbacks.OnThinkingStateChange != nil {
		c.cfg.Callbacks.OnThinkingStateChange(v)
	}
}

func (c *consumer) reportError(err error) {
	if c.cfg.Callbacks.OnError != nil {
		c.cfg.Callbacks.OnError(err)
	}
}

func (c *consumer) finish() {
	target := runstate.RunStateFinished
	switch {
	case c.aborted:
		target = runstate.RunStateAborted
	case c.errored:
		target = runstate.RunStateErrored
	}
	if err := c.run.TransitionTo(target); err != nil {
		c.log.Error("invalid run transition", "error", err)
	}
	if len(c.state.OpenToolCalls) > 0 {
		c.log.Debug("run ended with unresolved tool calls", "count", len(c.state.OpenToolCalls))
	}
}

func (c *consumer) result() Result {
	return Result{
		Messages: c.state.Messages,
		State:    c.run.State(),
		Steps:    c.steps,
	}
}
