package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/agentstream/hooks"
	"github.com/youssefsiam38/agentstream/streaming"
	"github.com/youssefsiam38/agentstream/tool"
	"github.com/youssefsiam38/agentstream/types"
)

var (
	// ErrRequestFailed wraps failures of a Messages API request
	ErrRequestFailed = errors.New("model request failed")

	// ErrMaxSteps is reported when the model still requests tools after the
	// last allowed step
	ErrMaxSteps = errors.New("maximum steps reached")
)

// Defaults applied by NewRuntime
const (
	DefaultMaxTokens = 4096
	DefaultMaxSteps  = 10

	pipeBuffer = 64
)

// EventStream is a raw Messages API event stream.
// *ssestream.Stream[anthropic.MessageStreamEventUnion] satisfies it.
type EventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

// OpenFunc starts a streaming Messages API request.
type OpenFunc func(ctx context.Context, params anthropic.MessageNewParams) EventStream

// ClientOpener streams requests through client.
func ClientOpener(client *anthropic.Client) OpenFunc {
	return func(ctx context.Context, params anthropic.MessageNewParams) EventStream {
		return client.Messages.NewStreaming(ctx, params)
	}
}

// Options configures a Runtime.
type Options struct {
	Model        string
	SystemPrompt string
	MaxTokens    int64
	MaxSteps     int
	Temperature  *float64

	// Variables are exposed to tools through tool.RunContext
	Variables map[string]any
}

// Runtime produces agent event streams by driving the model through
// request, tool execution and follow-up request steps.
type Runtime struct {
	open     OpenFunc
	executor *tool.Executor
	hooks    *hooks.Registry
	log      *slog.Logger
	opts     Options
}

// NewRuntime creates a runtime. A nil executor runs with no tools and nil
// hooks or logger fall back to empty defaults.
func NewRuntime(open OpenFunc, executor *tool.Executor, registry *hooks.Registry, log *slog.Logger, opts Options) *Runtime {
	if executor == nil {
		executor = tool.NewExecutor(tool.NewRegistry())
	}
	if registry == nil {
		registry = hooks.NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	return &Runtime{
		open:     open,
		executor: executor,
		hooks:    registry,
		log:      log.With("component", "runtime"),
		opts:     opts,
	}
}

// Stream starts a run over history and returns its event stream.
//
// Each step is bracketed by start-step and finish-step. Request failures are
// reported as error events and end the run; cancelling ctx ends it with an
// abort event. The stream always closes without a transport error.
func (r *Runtime) Stream(ctx context.Context, sessionID string, history []types.Message) streaming.Stream {
	pipe := streaming.NewPipe(pipeBuffer)
	go r.run(ctx, sessionID, history, pipe)
	return pipe
}

type runState struct {
	ctx       context.Context
	sendCtx   context.Context
	sessionID string
	pipe      *streaming.Pipe
	history   []types.Message
}

func (r *Runtime) run(ctx context.Context, sessionID string, history []types.Message, pipe *streaming.Pipe) {
	defer pipe.Close()

	rn := &runState{
		ctx:       ctx,
		sendCtx:   context.WithoutCancel(ctx),
		sessionID: sessionID,
		pipe:      pipe,
		history:   append([]types.Message(nil), history...),
	}
	log := r.log.With("session_id", sessionID)

	for step := 0; step < r.opts.MaxSteps; step++ {
		if ctx.Err() != nil {
			rn.send(streaming.Event{Type: streaming.EventTypeAbort})
			return
		}

		more, err := r.step(rn, step)
		if err != nil {
			if errors.Is(err, streaming.ErrConsumerStopped) {
				log.Info("consumer stopped reading, ending run", "step", step)
				return
			}
			if ctx.Err() != nil {
				log.Info("run cancelled", "step", step)
				rn.send(streaming.Event{Type: streaming.EventTypeAbort})
				return
			}
			log.Error("step failed", "step", step, "error", err)
			rn.send(streaming.Event{Type: streaming.EventTypeError, Err: err})
			return
		}
		if !more {
			return
		}
	}

	log.Warn("run stopped at step limit", "max_steps", r.opts.MaxSteps)
	rn.send(streaming.Event{Type: streaming.EventTypeError, Err: fmt.Errorf("%w: %d", ErrMaxSteps, r.opts.MaxSteps)})
}

// step runs one request and its tool calls. It reports whether the model
// asked for tools and so needs another step.
func (r *Runtime) step(rn *runState, step int) (bool, error) {
	if err := r.hooks.TriggerBeforeRequest(rn.ctx, rn.history); err != nil {
		return false, fmt.Errorf("before request hook: %w", err)
	}

	if err := rn.send(streaming.Event{Type: streaming.EventTypeStartStep}); err != nil {
		return false, err
	}

	tr := NewTranslator()
	stream := r.open(rn.ctx, r.params(rn.history))
	for stream.Next() {
		for _, ev := range tr.Translate(stream.Current()) {
			if err := rn.send(ev); err != nil {
				_ = stream.Close()
				return false, err
			}
		}
	}
	err := stream.Err()
	_ = stream.Close()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	r.log.Debug("model step completed",
		"session_id", rn.sessionID,
		"step", step,
		"stop_reason", tr.StopReason(),
		"tool_calls", len(tr.ToolCalls()),
	)

	if content := tr.Content(); len(content) > 0 {
		rn.history = append(rn.history, types.NewAssistantMessage(content))
	}

	calls := tr.ToolCalls()
	if len(calls) > 0 {
		results := r.executeTools(rn, step, calls)
		rn.history = append(rn.history, types.NewToolMessage(results))
	}

	if err := rn.send(streaming.Event{Type: streaming.EventTypeFinishStep}); err != nil {
		return false, err
	}
	return len(calls) > 0, nil
}

func (r *Runtime) params(history []types.Message) anthropic.MessageNewParams {
	system, messages := BuildRequest(r.opts.SystemPrompt, history)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.opts.Model),
		MaxTokens: r.opts.MaxTokens,
		Messages:  messages,
		System:    system,
	}
	if tools := r.executor.Registry().ToAnthropicToolUnions(); len(tools) > 0 {
		params.Tools = tools
	}
	if r.opts.Temperature != nil {
		params.Temperature = anthropic.Float(*r.opts.Temperature)
	}
	return params
}

// executeTools runs calls in parallel and emits their results in call order.
func (r *Runtime) executeTools(rn *runState, step int, calls []ToolCall) []types.ContentBlock {
	reqs := make([]tool.CallRequest, len(calls))
	for i, call := range calls {
		reqs[i] = tool.CallRequest{ID: call.ID, ToolName: call.Name, Input: call.Input}
	}

	toolCtx := tool.WithRunContext(rn.ctx, tool.RunContext{
		SessionID: rn.sessionID,
		Step:      step,
		Variables: r.opts.Variables,
	})
	results := r.executor.ExecuteParallel(toolCtx, reqs)

	blocks := make([]types.ContentBlock, 0, len(results))
	for _, res := range results {
		if err := r.hooks.TriggerToolCall(rn.ctx, res.ToolName, res.Input, res.Output, res.Error); err != nil {
			r.log.Warn("tool call hook failed", "tool", res.ToolName, "error", err)
		}

		output := types.JSONOutput(res.Output)
		if res.Error != nil {
			r.log.Warn("tool failed", "tool", res.ToolName, "tool_call_id", res.ID, "error", res.Error)
			output = ErrorOutput(res.Error)
		}

		blocks = append(blocks, types.NewToolResultBlock(res.ID, res.ToolName, output))
		rn.send(streaming.Event{
			Type:       streaming.EventTypeToolResult,
			ToolCallID: res.ID,
			ToolName:   res.ToolName,
			Output:     output,
		})
	}
	return blocks
}

// send delivers ev even after ctx is cancelled, so abort and error events
// reach the consumer. It gives up only when the consumer stops reading.
func (rn *runState) send(ev streaming.Event) error {
	return rn.pipe.Send(rn.sendCtx, ev)
}
