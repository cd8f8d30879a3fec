// Package storage persists conversation sessions and their messages.
//
// Saves are idempotent upserts keyed by message ID, so the same turn can be
// saved after every step and again on error or abort without duplicating
// rows. Messages keep the order in which they were first saved.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/youssefsiam38/agentstream/types"
)

var (
	// ErrSessionNotFound is returned when a session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session whose identifier is taken
	ErrSessionExists = errors.New("session already exists")

	// ErrInvalidMessage is returned for messages that cannot be stored
	ErrInvalidMessage = errors.New("invalid message")
)

// Store defines the storage interface for conversations
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, identifier string, metadata map[string]any) (string, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	GetSessionByIdentifier(ctx context.Context, identifier string) (*Session, error)

	// Message operations
	SaveMessages(ctx context.Context, sessionID string, messages []types.Message) error
	GetMessages(ctx context.Context, sessionID string) ([]types.Message, error)
}

// Session represents a conversation session
type Session struct {
	ID         string         `json:"id"`
	Identifier string         `json:"identifier"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func validateMessages(messages []types.Message) error {
	seen := make(map[string]struct{}, len(messages))
	for i := range messages {
		if messages[i].ID == "" {
			return fmt.Errorf("%w: message %d has no id", ErrInvalidMessage, i)
		}
		if !messages[i].Role.IsValid() {
			return fmt.Errorf("%w: message %s has unknown role %q", ErrInvalidMessage, messages[i].ID, messages[i].Role)
		}
		if _, dup := seen[messages[i].ID]; dup {
			return fmt.Errorf("%w: duplicate message id %s", ErrInvalidMessage, messages[i].ID)
		}
		seen[messages[i].ID] = struct{}{}
	}
	return nil
}
