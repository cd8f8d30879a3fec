package agentstream

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/youssefsiam38/agentstream/hooks"
	"github.com/youssefsiam38/agentstream/tool"
)

// Option is a functional option for configuring an Agent
type Option func(*internalConfig) error

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *internalConfig) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", ErrInvalidConfig)
		}
		c.logger = logger
		return nil
	}
}

// WithHooks replaces the hook registry
func WithHooks(registry *hooks.Registry) Option {
	return func(c *internalConfig) error {
		if registry == nil {
			return fmt.Errorf("%w: hook registry is nil", ErrInvalidConfig)
		}
		c.hooks = registry
		return nil
	}
}

// WithTools registers tools with the agent
func WithTools(tools ...tool.Tool) Option {
	return func(c *internalConfig) error {
		for _, t := range tools {
			if err := t.InputSchema().Check(); err != nil {
				return NewAgentError("WithTools", fmt.Errorf("%w: %w", tool.ErrInvalidInput, err)).
					WithContext("tool", t.Name())
			}
			c.tools = append(c.tools, t)
		}
		return nil
	}
}

// WithMaxTokens sets the maximum number of tokens generated per step
func WithMaxTokens(n int64) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: max tokens must be positive", ErrInvalidConfig)
		}
		c.maxTokens = n
		return nil
	}
}

// WithMaxSteps bounds the number of model requests per run
func WithMaxSteps(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: max steps must be positive", ErrInvalidConfig)
		}
		c.maxSteps = n
		return nil
	}
}

// WithToolTimeout sets the timeout for individual tool executions
func WithToolTimeout(d time.Duration) Option {
	return func(c *internalConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: tool timeout must be positive", ErrInvalidConfig)
		}
		c.toolTimeout = d
		return nil
	}
}

// WithToolConcurrency caps how many tool calls of one step run at once
func WithToolConcurrency(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: tool concurrency must be positive", ErrInvalidConfig)
		}
		c.toolConcurrency = n
		return nil
	}
}

// WithTemperature sets the temperature for sampling (0.0 to 1.0)
func WithTemperature(t float64) Option {
	return func(c *internalConfig) error {
		if t < 0 || t > 1 {
			return fmt.Errorf("%w: temperature must be between 0 and 1", ErrInvalidConfig)
		}
		c.temperature = &t
		return nil
	}
}

// WithVariables exposes values to tools through tool.GetVariable
func WithVariables(vars map[string]any) Option {
	return func(c *internalConfig) error {
		c.variables = vars
		return nil
	}
}
