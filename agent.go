package agentstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/youssefsiam38/agentstream/display"
	"github.com/youssefsiam38/agentstream/hooks"
	internalanthropic "github.com/youssefsiam38/agentstream/internal/anthropic"
	"github.com/youssefsiam38/agentstream/runstate"
	"github.com/youssefsiam38/agentstream/storage"
	"github.com/youssefsiam38/agentstream/streaming"
	"github.com/youssefsiam38/agentstream/tool"
	"github.com/youssefsiam38/agentstream/types"
)

// Agent runs conversations against a model, persists every turn as it
// streams, and projects sessions for display.
type Agent struct {
	config    *internalConfig
	store     storage.Store
	executor  *tool.Executor
	runtime   *internalanthropic.Runtime
	projector *display.Projector
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// Response is the outcome of one run or consumed stream.
type Response struct {
	SessionID string

	// Messages is the full session history after the run
	Messages []types.Message

	// Display is the projection of Messages, ending with an idle entry
	Display []display.Event

	State runstate.RunState
	Steps int
}

// New creates a new Agent with the given configuration and options
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	internal := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(internal); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	registry := tool.NewRegistry()
	if err := registry.RegisterAll(internal.tools); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	executor := tool.NewExecutor(registry)
	executor.SetDefaultTimeout(internal.toolTimeout)
	executor.SetConcurrency(internal.toolConcurrency)

	log := internal.logger.With("component", "agent")

	agent := &Agent{
		config:    internal,
		store:     internal.store,
		executor:  executor,
		projector: display.NewProjector(internal.logger),
		log:       log,
		sessions:  make(map[string]*sync.Mutex),
	}

	open := internal.open
	if open == nil && internal.client != nil {
		open = internalanthropic.ClientOpener(internal.client)
	}
	if open != nil {
		agent.runtime = internalanthropic.NewRuntime(open, executor, internal.hooks, internal.logger, internalanthropic.Options{
			Model:        internal.model,
			SystemPrompt: internal.systemPrompt,
			MaxTokens:    internal.maxTokens,
			MaxSteps:     internal.maxSteps,
			Temperature:  internal.temperature,
			Variables:    internal.variables,
		})
	}

	return agent, nil
}

// Model returns the model being used by this agent
func (a *Agent) Model() string {
	return a.config.model
}

// Hooks returns the hook registry; hooks may be added at any time.
func (a *Agent) Hooks() *hooks.Registry {
	return a.config.hooks
}

// Tools returns the registered tool names
func (a *Agent) Tools() []string {
	return a.executor.Registry().List()
}

// NewSession creates a session and returns its ID
func (a *Agent) NewSession(ctx context.Context, identifier string, metadata map[string]any) (string, error) {
	id, err := a.store.CreateSession(ctx, identifier, metadata)
	if err != nil {
		return "", NewAgentError("NewSession", err).WithContext("identifier", identifier)
	}
	a.log.Info("session created", "session_id", id, "identifier", identifier)
	return id, nil
}

// Run appends prompt to the session and drives the model until it stops
// asking for tools. The turn is saved after every step, and on error or
// abort, so a cancelled run keeps what it streamed.
func (a *Agent) Run(ctx context.Context, sessionID, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewAgentErrorWithSession("Run", sessionID, ErrEmptyPrompt)
	}
	if a.runtime == nil {
		return nil, NewAgentErrorWithSession("Run", sessionID, fmt.Errorf("%w: Client is required to run", ErrInvalidConfig))
	}

	unlock := a.lockSession(sessionID)
	defer unlock()

	history, err := a.history(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("Run", sessionID, err)
	}

	seed := append(history, types.NewUserMessage(prompt))
	stream := a.runtime.Stream(ctx, sessionID, seed)

	return a.consume(ctx, "Run", sessionID, seed, len(history), stream)
}

// Consume folds an externally produced stream into the session, with the
// same persistence and projection as Run.
func (a *Agent) Consume(ctx context.Context, sessionID string, stream streaming.Stream) (*Response, error) {
	unlock := a.lockSession(sessionID)
	defer unlock()

	history, err := a.history(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("Consume", sessionID, err)
	}

	return a.consume(ctx, "Consume", sessionID, history, len(history), stream)
}

// Messages returns the stored history of a session
func (a *Agent) Messages(ctx context.Context, sessionID string) ([]types.Message, error) {
	messages, err := a.history(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("Messages", sessionID, err)
	}
	return messages, nil
}

// Display projects the stored history of a session
func (a *Agent) Display(ctx context.Context, sessionID string) ([]display.Event, error) {
	messages, err := a.history(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("Display", sessionID, err)
	}
	return display.AppendIdle(a.projector.Project(messages)), nil
}

func (a *Agent) consume(ctx context.Context, op, sessionID string, seed []types.Message, turnStart int, stream streaming.Stream) (*Response, error) {
	log := a.log.With("session_id", sessionID)
	h := a.config.hooks

	cfg := streaming.Config{
		Callbacks: streaming.Callbacks{
			OnMessageUpdate:       h.TriggerMessageUpdate,
			OnThinkingStateChange: h.TriggerThinkingStateChange,
			OnSaveMessages: func(ctx context.Context, messages []types.Message) error {
				err := a.store.SaveMessages(ctx, sessionID, messages)
				h.TriggerSave(ctx, sessionID, messages, err)
				return err
			},
			OnError: h.TriggerError,
			OnAbort: h.TriggerAbort,
		},
		CurrentTurnStartIndex: &turnStart,
		Logger:                log,
	}

	res, err := streaming.Consume(ctx, stream, seed, cfg)

	resp := &Response{
		SessionID: sessionID,
		Messages:  res.Messages,
		Display:   display.AppendIdle(a.projector.Project(res.Messages)),
		State:     res.State,
		Steps:     res.Steps,
	}

	log.Info("run completed", "state", res.State, "steps", res.Steps, "messages", len(res.Messages))

	if err != nil {
		return resp, NewAgentErrorWithSession(op, sessionID, err)
	}
	return resp, nil
}

func (a *Agent) history(ctx context.Context, sessionID string) ([]types.Message, error) {
	if _, err := a.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := a.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

// lockSession serializes runs on the same session
func (a *Agent) lockSession(sessionID string) func() {
	a.mu.Lock()
	m, ok := a.sessions[sessionID]
	if !ok {
		m = &sync.Mutex{}
		a.sessions[sessionID] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// IsSessionNotFound reports whether err means the session does not exist
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
