package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteParallel_NoRaceCondition(t *testing.T) {
	registry := NewRegistry()

	// Create a tool that increments a counter
	var counter int32
	counterTool := NewFuncTool(
		"counter",
		"Increments counter",
		ToolSchema{Type: "object", Properties: map[string]PropertyDef{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			n := atomic.AddInt32(&counter, 1)
			// Simulate variable execution time
			time.Sleep(time.Millisecond * time.Duration(1+n%5))
			return "done", nil
		},
	)
	if err := registry.Register(counterTool); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	executor := NewExecutor(registry)

	numCalls := 50
	calls := make([]CallRequest, numCalls)
	for i := range calls {
		calls[i] = CallRequest{
			ID:       fmt.Sprintf("call-%d", i),
			ToolName: "counter",
			Input:    json.RawMessage(`{}`),
		}
	}

	results := executor.ExecuteParallel(context.Background(), calls)

	if len(results) != numCalls {
		t.Errorf("Expected %d results, got %d", numCalls, len(results))
	}

	for i, r := range results {
		if r == nil {
			t.Errorf("Result %d is nil", i)
			continue
		}
		if r.Error != nil {
			t.Errorf("Result %d has error: %v", i, r.Error)
		}
		if r.ID != calls[i].ID {
			t.Errorf("Result %d has ID %q, want %q", i, r.ID, calls[i].ID)
		}
	}

	if atomic.LoadInt32(&counter) != int32(numCalls) {
		t.Errorf("Expected counter %d, got %d", numCalls, counter)
	}
}

func TestExecuteParallel_EmptyCalls(t *testing.T) {
	executor := NewExecutor(NewRegistry())

	results := executor.ExecuteParallel(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestExecute_Timeout(t *testing.T) {
	registry := NewRegistry()

	slowTool := NewFuncTool(
		"slow",
		"A slow tool",
		ToolSchema{Type: "object", Properties: map[string]PropertyDef{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * 5):
				return "done", nil
			}
		},
	)
	if err := registry.Register(slowTool); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	executor := NewExecutor(registry)
	executor.SetDefaultTimeout(50 * time.Millisecond)

	result := executor.Execute(context.Background(), CallRequest{ID: "1", ToolName: "slow", Input: json.RawMessage(`{}`)})
	if !errors.Is(result.Error, ErrToolTimeout) {
		t.Errorf("Expected ErrToolTimeout, got %v", result.Error)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result = executor.Execute(ctx, CallRequest{ID: "2", ToolName: "slow", Input: json.RawMessage(`{}`)})
	if !errors.Is(result.Error, ErrToolCanceled) {
		t.Errorf("Expected ErrToolCanceled, got %v", result.Error)
	}
}

func TestExecute_ToolNotFound(t *testing.T) {
	executor := NewExecutor(NewRegistry())

	result := executor.Execute(context.Background(), CallRequest{ToolName: "nonexistent", Input: json.RawMessage(`{}`)})

	if !errors.Is(result.Error, ErrToolNotFound) {
		t.Errorf("Expected ErrToolNotFound, got %v", result.Error)
	}
}

func TestExecute_ValidatesInput(t *testing.T) {
	registry := NewRegistry()
	called := false
	_ = registry.Register(NewFuncTool(
		"echo",
		"Echoes text",
		ToolSchema{
			Type:       "object",
			Properties: map[string]PropertyDef{"text": {Type: "string"}},
			Required:   []string{"text"},
		},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			called = true
			return string(input), nil
		},
	))

	executor := NewExecutor(registry)

	result := executor.Execute(context.Background(), CallRequest{ToolName: "echo", Input: json.RawMessage(`{}`)})
	if !errors.Is(result.Error, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", result.Error)
	}
	if called {
		t.Error("tool ran despite invalid input")
	}

	result = executor.Execute(context.Background(), CallRequest{ToolName: "echo", Input: json.RawMessage(`{"text":"hi"}`)})
	if result.Error != nil || result.Output != `{"text":"hi"}` {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRegistry_ToAnthropicToolsSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_ = registry.Register(NewFuncTool(name, name, ToolSchema{Type: "object"}, nil))
	}

	params := registry.ToAnthropicTools()
	want := []string{"alpha", "mid", "zeta"}
	for i, p := range params {
		if p.Name != want[i] {
			t.Errorf("params[%d].Name = %q, want %q", i, p.Name, want[i])
		}
	}

	if err := registry.Register(NewFuncTool("alpha", "", ToolSchema{Type: "object"}, nil)); !errors.Is(err, ErrToolExists) {
		t.Errorf("duplicate registration error = %v, want ErrToolExists", err)
	}
	if err := registry.Register(NewFuncTool("bad", "", ToolSchema{Type: "string"}, nil)); err == nil {
		t.Error("expected schema type error")
	}
}

func TestRunContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetRunContext(ctx); ok {
		t.Error("expected no run context")
	}

	ctx = WithRunContext(ctx, RunContext{
		SessionID: "s1",
		Step:      2,
		Variables: map[string]any{"workdir": "/tmp"},
	})

	rc, ok := GetRunContext(ctx)
	if !ok || rc.SessionID != "s1" || rc.Step != 2 {
		t.Errorf("GetRunContext() = %+v, %v", rc, ok)
	}
	if dir, ok := GetVariable[string](ctx, "workdir"); !ok || dir != "/tmp" {
		t.Errorf("GetVariable() = %q, %v", dir, ok)
	}
	if _, ok := GetVariable[int](ctx, "workdir"); ok {
		t.Error("GetVariable with wrong type should fail")
	}
	if got := GetVariableOr(ctx, "missing", 3); got != 3 {
		t.Errorf("GetVariableOr() = %d, want 3", got)
	}
}

func TestPropertyDef_Schema(t *testing.T) {
	limit := 10.0
	def := PropertyDef{
		Type:        "array",
		Description: "paths to inspect",
		Items:       &PropertyDef{Type: "string", Enum: []string{"a", "b"}},
		Maximum:     &limit,
	}

	got := def.schema()
	if got["type"] != "array" || got["description"] != "paths to inspect" || got["maximum"] != 10.0 {
		t.Errorf("schema() = %#v", got)
	}
	items, ok := got["items"].(map[string]any)
	if !ok || items["type"] != "string" {
		t.Fatalf("items = %#v", got["items"])
	}
	if _, ok := items["description"]; ok {
		t.Error("empty description should be omitted")
	}

	unions := NewRegistry().ToAnthropicToolUnions()
	if len(unions) != 0 {
		t.Errorf("empty registry produced %d unions", len(unions))
	}
}

func TestExecuteParallel_ConcurrencyLimit(t *testing.T) {
	registry := NewRegistry()
	var inFlight, peak atomic.Int32
	_ = registry.Register(NewFuncTool("slow", "", ToolSchema{Type: "object"},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return "ok", nil
		},
	))

	executor := NewExecutor(registry)
	executor.SetConcurrency(2)

	calls := make([]CallRequest, 6)
	for i := range calls {
		calls[i] = CallRequest{ID: fmt.Sprintf("c%d", i), ToolName: "slow"}
	}
	results := executor.ExecuteParallel(context.Background(), calls)

	for i, r := range results {
		if r.ID != calls[i].ID || r.Error != nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}
