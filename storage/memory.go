package storage

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentstream/types"
)

// MemoryStore is an in-process Store. It is used by tests and by the CLI
// when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	byIdentifier map[string]string
	messages     map[string][]types.Message
	positions    map[string]map[string]int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*Session),
		byIdentifier: make(map[string]string),
		messages:     make(map[string][]types.Message),
		positions:    make(map[string]map[string]int),
	}
}

// CreateSession creates a new conversation session.
func (s *MemoryStore) CreateSession(ctx context.Context, identifier string, metadata map[string]any) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("identifier is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdentifier[identifier]; ok {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, identifier)
	}

	now := time.Now()
	session := &Session{
		ID:         uuid.New().String(),
		Identifier: identifier,
		Metadata:   maps.Clone(metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if session.Metadata == nil {
		session.Metadata = map[string]any{}
	}

	s.sessions[session.ID] = session
	s.byIdentifier[identifier] = session.ID
	s.positions[session.ID] = make(map[string]int)
	return session.ID, nil
}

// GetSession retrieves a session by ID.
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	out := *session
	return &out, nil
}

// GetSessionByIdentifier retrieves a session by its identifier.
func (s *MemoryStore) GetSessionByIdentifier(ctx context.Context, identifier string) (*Session, error) {
	s.mu.RLock()
	id, ok := s.byIdentifier[identifier]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, identifier)
	}
	return s.GetSession(ctx, id)
}

// SaveMessages upserts messages by ID. New messages are appended in order;
// known messages are replaced in place.
func (s *MemoryStore) SaveMessages(ctx context.Context, sessionID string, messages []types.Message) error {
	if err := validateMessages(messages); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	pos := s.positions[sessionID]
	for _, msg := range messages {
		msg.Content = append([]types.ContentBlock(nil), msg.Content...)
		if i, ok := pos[msg.ID]; ok {
			s.messages[sessionID][i] = msg
			continue
		}
		pos[msg.ID] = len(s.messages[sessionID])
		s.messages[sessionID] = append(s.messages[sessionID], msg)
	}
	session.UpdatedAt = time.Now()
	return nil
}

// GetMessages returns all messages of a session in save order.
func (s *MemoryStore) GetMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	stored := s.messages[sessionID]
	out := make([]types.Message, len(stored))
	copy(out, stored)
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
