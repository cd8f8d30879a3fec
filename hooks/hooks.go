// Package hooks lets hosts observe a run: model requests, tool calls,
// history updates, saves, errors and aborts.
//
// Hooks run synchronously on the goroutine that triggers them, in
// registration order. Registration is safe while triggers are in flight;
// a trigger sees the hooks registered before it started.
package hooks

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/youssefsiam38/agentstream/types"
)

// BeforeRequestHook sees the history about to be sent to the model.
// Returning an error fails the step.
type BeforeRequestHook func(ctx context.Context, messages []types.Message) error

// ToolCallHook sees every finished tool call. err is the tool's error.
type ToolCallHook func(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error

// MessageUpdateHook receives the full history after every committed change.
type MessageUpdateHook func(messages []types.Message)

// ThinkingHook is told when consumption starts (true) and ends (false).
type ThinkingHook func(thinking bool)

// SaveHook receives the outcome of each persistence attempt.
type SaveHook func(ctx context.Context, sessionID string, messages []types.Message, err error)

type ErrorHook func(err error)

type AbortHook func()

// Registry holds registered hooks.
type Registry struct {
	mu            sync.RWMutex
	beforeRequest []BeforeRequestHook
	toolCall      []ToolCallHook
	messageUpdate []MessageUpdateHook
	thinking      []ThinkingHook
	save          []SaveHook
	errs          []ErrorHook
	abort         []AbortHook
}

func NewRegistry() *Registry {
	return &Registry{}
}

func add[T any](r *Registry, list *[]T, hook T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, hook)
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(*list)
}

func (r *Registry) OnBeforeRequest(hook BeforeRequestHook)  { add(r, &r.beforeRequest, hook) }
func (r *Registry) OnToolCall(hook ToolCallHook)            { add(r, &r.toolCall, hook) }
func (r *Registry) OnMessageUpdate(hook MessageUpdateHook)  { add(r, &r.messageUpdate, hook) }
func (r *Registry) OnThinkingStateChange(hook ThinkingHook) { add(r, &r.thinking, hook) }
func (r *Registry) OnSave(hook SaveHook)                    { add(r, &r.save, hook) }
func (r *Registry) OnError(hook ErrorHook)                  { add(r, &r.errs, hook) }
func (r *Registry) OnAbort(hook AbortHook)                  { add(r, &r.abort, hook) }

// TriggerBeforeRequest runs before-request hooks until one fails.
func (r *Registry) TriggerBeforeRequest(ctx context.Context, messages []types.Message) error {
	for _, hook := range snapshot(r, &r.beforeRequest) {
		if err := hook(ctx, messages); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall runs tool-call hooks until one fails.
func (r *Registry) TriggerToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, toolErr error) error {
	for _, hook := range snapshot(r, &r.toolCall) {
		if err := hook(ctx, toolName, input, output, toolErr); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) TriggerMessageUpdate(messages []types.Message) {
	for _, hook := range snapshot(r, &r.messageUpdate) {
		hook(messages)
	}
}

func (r *Registry) TriggerThinkingStateChange(thinking bool) {
	for _, hook := range snapshot(r, &r.thinking) {
		hook(thinking)
	}
}

func (r *Registry) TriggerSave(ctx context.Context, sessionID string, messages []types.Message, err error) {
	for _, hook := range snapshot(r, &r.save) {
		hook(ctx, sessionID, messages, err)
	}
}

func (r *Registry) TriggerError(err error) {
	for _, hook := range snapshot(r, &r.errs) {
		hook(err)
	}
}

func (r *Registry) TriggerAbort() {
	for _, hook := range snapshot(r, &r.abort) {
		hook()
	}
}
