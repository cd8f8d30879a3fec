package hooks

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/youssefsiam38/agentstream/types"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *slog.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *slog.Logger) *LoggingHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHooks{logger: logger.With("component", "hooks")}
}

// Register attaches every logging hook to r.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeRequest(h.BeforeRequest)
	r.OnToolCall(h.ToolCall)
	r.OnSave(h.Save)
	r.OnError(h.Error)
	r.OnAbort(h.Abort)
}

// BeforeRequest logs before sending messages to the API
func (h *LoggingHooks) BeforeRequest(ctx context.Context, messages []types.Message) error {
	h.logger.DebugContext(ctx, "sending request", "messages", len(messages))
	return nil
}

// ToolCall logs tool execution
func (h *LoggingHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	if err != nil {
		h.logger.WarnContext(ctx, "tool failed", "tool", toolName, "error", err)
		return nil
	}

	preview := output
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	h.logger.DebugContext(ctx, "tool succeeded", "tool", toolName, "output", preview)
	return nil
}

// Save logs persistence attempts
func (h *LoggingHooks) Save(ctx context.Context, sessionID string, messages []types.Message, err error) {
	if err != nil {
		h.logger.ErrorContext(ctx, "save failed", "session_id", sessionID, "messages", len(messages), "error", err)
		return
	}
	h.logger.DebugContext(ctx, "saved messages", "session_id", sessionID, "messages", len(messages))
}

// Error logs reported errors
func (h *LoggingHooks) Error(err error) {
	h.logger.Error("run error", "error", err)
}

// Abort logs aborts
func (h *LoggingHooks) Abort() {
	h.logger.Info("run aborted")
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// Register attaches every metrics hook to r.
func (h *MetricsHooks) Register(r *Registry) {
	r.OnToolCall(h.ToolCall)
	r.OnSave(h.Save)
	r.OnError(h.Error)
	r.OnAbort(h.Abort)
}

// ToolCall records tool execution metrics
func (h *MetricsHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	tags := map[string]string{"tool": toolName}

	if err != nil {
		h.OnMetric("agent.tool.error", 1, tags)
	} else {
		h.OnMetric("agent.tool.success", 1, tags)
	}

	return nil
}

// Save records persistence metrics
func (h *MetricsHooks) Save(ctx context.Context, sessionID string, messages []types.Message, err error) {
	if err != nil {
		h.OnMetric("agent.save.error", 1, nil)
		return
	}
	h.OnMetric("agent.save.messages", float64(len(messages)), nil)
}

// Error counts reported errors
func (h *MetricsHooks) Error(err error) {
	h.OnMetric("agent.run.error", 1, nil)
}

// Abort counts aborts
func (h *MetricsHooks) Abort() {
	h.OnMetric("agent.run.abort", 1, nil)
}
