package agentstream

import (
	"errors"
	"fmt"

	"github.com/youssefsiam38/agentstream/internal/anthropic"
	"github.com/youssefsiam38/agentstream/storage"
	"github.com/youssefsiam38/agentstream/streaming"
	"github.com/youssefsiam38/agentstream/tool"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the agent configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPrompt is returned by Run for a blank prompt
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrSessionNotFound is returned when a session does not exist
	ErrSessionNotFound = storage.ErrSessionNotFound

	// ErrInvalidMessage is returned when a message cannot be stored
	ErrInvalidMessage = storage.ErrInvalidMessage

	// ErrStreamFailed wraps transport failures of a consumed stream
	ErrStreamFailed = streaming.ErrStreamFailed

	// ErrStreamClosed is returned when sending on a closed pipe
	ErrStreamClosed = streaming.ErrStreamClosed

	// ErrToolNotFound is returned when a tool cannot be found
	ErrToolNotFound = tool.ErrToolNotFound

	// ErrRequestFailed is reported when a model request fails
	ErrRequestFailed = anthropic.ErrRequestFailed

	// ErrMaxSteps is reported when a run hits its step limit
	ErrMaxSteps = anthropic.ErrMaxSteps
)

// AgentError represents an error with additional context
type AgentError struct {
	Op        string         // Operation that failed
	Err       error          // Underlying error
	SessionID string         // Session ID if applicable
	Context   map[string]any // Additional context
}

func (e *AgentError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AgentError) WithContext(key string, value any) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewAgentError creates a new AgentError
func NewAgentError(op string, err error) *AgentError {
	return &AgentError{Op: op, Err: err}
}

// NewAgentErrorWithSession creates a new AgentError with session ID
func NewAgentErrorWithSession(op string, sessionID string, err error) *AgentError {
	return &AgentError{Op: op, Err: err, SessionID: sessionID}
}
