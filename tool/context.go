package tool

import "context"

// RunContext describes the run a tool executes in.
type RunContext struct {
	SessionID string

	// Step is the zero-based model step that requested the call.
	Step int

	// Variables are host-supplied values such as the working directory.
	Variables map[string]any
}

type runContextKey struct{}

// WithRunContext attaches rc to ctx before a step's tools execute.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// GetRunContext returns the run context attached by WithRunContext.
func GetRunContext(ctx context.Context) (RunContext, bool) {
	rc, ok := ctx.Value(runContextKey{}).(RunContext)
	return rc, ok
}

// GetVariable returns the run variable key when it is present and of type T.
//
//	dir, ok := tool.GetVariable[string](ctx, "workdir")
func GetVariable[T any](ctx context.Context, key string) (T, bool) {
	rc, _ := GetRunContext(ctx)
	v, ok := rc.Variables[key].(T)
	return v, ok
}

// GetVariableOr is GetVariable with a fallback.
func GetVariableOr[T any](ctx context.Context, key string, fallback T) T {
	if v, ok := GetVariable[T](ctx, key); ok {
		return v
	}
	return fallback
}
