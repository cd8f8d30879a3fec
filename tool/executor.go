package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// Executor validates and runs tool calls from a registry.
type Executor struct {
	registry    *Registry
	timeout     time.Duration
	concurrency int
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry, timeout: DefaultTimeout}
}

// SetDefaultTimeout changes the per-call timeout. Non-positive values are
// ignored.
func (e *Executor) SetDefaultTimeout(timeout time.Duration) {
	if timeout > 0 {
		e.timeout = timeout
	}
}

// SetConcurrency caps how many calls ExecuteParallel runs at once. Zero or
// less means no cap.
func (e *Executor) SetConcurrency(n int) {
	e.concurrency = n
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// CallRequest is one tool call requested by the model.
type CallRequest struct {
	ID       string
	ToolName string
	Input    json.RawMessage
}

// ExecuteResult is the outcome of a call. Error is set for unknown tools,
// invalid input, timeouts, cancellation and tool failures alike.
type ExecuteResult struct {
	ID       string
	ToolName string
	Input    json.RawMessage
	Output   string
	Error    error
	Duration time.Duration
}

// Execute runs a single call. It never returns nil.
func (e *Executor) Execute(ctx context.Context, call CallRequest) *ExecuteResult {
	res := &ExecuteResult{ID: call.ID, ToolName: call.ToolName, Input: call.Input}

	t, ok := e.registry.Get(call.ToolName)
	if !ok {
		res.Error = fmt.Errorf("%w: %s", ErrToolNotFound, call.ToolName)
		return res
	}
	if err := t.InputSchema().Validate(call.Input); err != nil {
		res.Error = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res.Output, res.Error = t.Execute(runCtx, call.Input)
	res.Duration = time.Since(start)

	switch err := runCtx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		res.Error = fmt.Errorf("%w after %v", ErrToolTimeout, e.timeout)
	case errors.Is(err, context.Canceled):
		res.Error = ErrToolCanceled
	}
	return res
}

// ExecuteParallel runs calls concurrently and returns results in call order.
func (e *Executor) ExecuteParallel(ctx context.Context, calls []CallRequest) []*ExecuteResult {
	results := make([]*ExecuteResult, len(calls))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.Execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
