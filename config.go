package agentstream

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/agentstream/hooks"
	internalanthropic "github.com/youssefsiam38/agentstream/internal/anthropic"
	"github.com/youssefsiam38/agentstream/storage"
	"github.com/youssefsiam38/agentstream/tool"
)

// Config holds the required configuration for an agent.
//
// Example:
//
//	client := anthropic.NewClient()
//	agent, _ := agentstream.New(agentstream.Config{
//	    Client:       &client,
//	    Model:        "claude-sonnet-4-5",
//	    SystemPrompt: "You are a helpful assistant",
//	    Store:        storage.NewMemoryStore(),
//	})
type Config struct {
	// Client is the Anthropic API client. Required by Run; an agent that
	// only consumes external streams may leave it nil.
	Client *anthropic.Client

	// Model is the model ID to use (required with Client)
	Model string

	// SystemPrompt is sent with every request
	SystemPrompt string

	// Store persists sessions and messages (required)
	Store storage.Store
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: Store is required", ErrInvalidConfig)
	}
	if c.Client != nil && c.Model == "" {
		return fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}
	return nil
}

// internalConfig holds the full agent configuration including optional parameters
type internalConfig struct {
	client       *anthropic.Client
	model        string
	systemPrompt string
	store        storage.Store

	maxTokens       int64
	maxSteps        int
	temperature     *float64
	toolTimeout     time.Duration
	toolConcurrency int
	variables       map[string]any

	// open overrides the Anthropic client; used by tests
	open internalanthropic.OpenFunc

	tools  []tool.Tool
	hooks  *hooks.Registry
	logger *slog.Logger
}

func newInternalConfig(cfg Config) *internalConfig {
	return &internalConfig{
		client:       cfg.Client,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		store:        cfg.Store,

		maxTokens:   internalanthropic.DefaultMaxTokens,
		maxSteps:    internalanthropic.DefaultMaxSteps,
		toolTimeout: tool.DefaultTimeout,

		tools:  []tool.Tool{},
		hooks:  hooks.NewRegistry(),
		logger: slog.Default(),
	}
}
