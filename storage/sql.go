package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/youssefsiam38/agentstream/driver"
	"github.com/youssefsiam38/agentstream/types"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL that Migrate applies.
func Schema() string {
	return schemaSQL
}

// Migrate creates the agentstream tables if they do not exist.
func Migrate(ctx context.Context, exec driver.Executor) error {
	if _, err := exec.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SQLStore implements Store on PostgreSQL through a driver.Executor, so it
// runs unchanged over pgx/v5 and database/sql. A transaction attached to
// the context with driver.WithExecutor takes precedence over the default
// executor.
type SQLStore struct {
	exec driver.Executor
}

// NewSQLStore creates a store over exec.
func NewSQLStore(exec driver.Executor) *SQLStore {
	return &SQLStore{exec: exec}
}

// executor returns the executor from context if present, otherwise the default executor.
func (s *SQLStore) executor(ctx context.Context) driver.Executor {
	if exec := driver.ExecutorFromContext(ctx); exec != nil {
		return exec
	}
	return s.exec
}

// CreateSession creates a new conversation session.
func (s *SQLStore) CreateSession(ctx context.Context, identifier string, metadata map[string]any) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("identifier is required")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO agentstream_sessions (id, identifier, metadata, created_at, updated_at)
		VALUES ($1::uuid, $2, $3::jsonb, NOW(), NOW())
		ON CONFLICT (identifier) DO NOTHING
		RETURNING id::text
	`

	var sessionID string
	err = s.executor(ctx).QueryRow(ctx, query, uuid.New().String(), identifier, string(metadataJSON)).Scan(&sessionID)
	if isNoRows(err) {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, identifier)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return sessionID, nil
}

// GetSession retrieves a session by ID.
func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	query := `
		SELECT id::text, identifier, metadata, created_at, updated_at
		FROM agentstream_sessions
		WHERE id = $1::uuid
	`
	return s.scanSession(s.executor(ctx).QueryRow(ctx, query, sessionID), sessionID)
}

// GetSessionByIdentifier retrieves a session by its identifier.
func (s *SQLStore) GetSessionByIdentifier(ctx context.Context, identifier string) (*Session, error) {
	query := `
		SELECT id::text, identifier, metadata, created_at, updated_at
		FROM agentstream_sessions
		WHERE identifier = $1
	`
	return s.scanSession(s.executor(ctx).QueryRow(ctx, query, identifier), identifier)
}

func (s *SQLStore) scanSession(row driver.Row, key string) (*Session, error) {
	var session Session
	var metadataJSON []byte

	err := row.Scan(
		&session.ID,
		&session.Identifier,
		&metadataJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &session, nil
}

// SaveMessages upserts messages in a single statement. Each array parameter
// carries one column; WITH ORDINALITY keeps the input order so newly
// inserted rows get ascending seq values. The session's updated_at is
// bumped in the same transaction.
func (s *SQLStore) SaveMessages(ctx context.Context, sessionID string, messages []types.Message) error {
	if err := validateMessages(messages); err != nil {
		return err
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, len(messages))
	roles := make([]string, len(messages))
	contents := make([]string, len(messages))
	createdAts := make([]string, len(messages))

	for i, msg := range messages {
		content, err := msg.ContentJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal content of message %s: %w", msg.ID, err)
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		ids[i] = msg.ID
		roles[i] = string(msg.Role)
		contents[i] = string(content)
		createdAts[i] = createdAt.UTC().Format(time.RFC3339Nano)
	}

	return driver.InTx(ctx, s.executor(ctx), func(tx driver.ExecutorTx) error {
		touched, err := tx.Exec(ctx, `UPDATE agentstream_sessions SET updated_at = NOW() WHERE id = $1::uuid`, sessionID)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if touched == 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}

		query := `
			INSERT INTO agentstream_messages (id, session_id, role, content, created_at, updated_at)
			SELECT m.id::uuid, $1::uuid, m.role, m.content::jsonb, m.created_at::timestamptz, NOW()
			FROM unnest($2::text[], $3::text[], $4::text[], $5::text[])
				WITH ORDINALITY AS m(id, role, content, created_at, ord)
			ORDER BY m.ord
			ON CONFLICT (id) DO UPDATE
			SET role = EXCLUDED.role,
			    content = EXCLUDED.content,
			    updated_at = NOW()
			WHERE agentstream_messages.session_id = EXCLUDED.session_id
		`

		affected, err := tx.Exec(ctx, query, sessionID, ids, roles, contents, createdAts)
		if err != nil {
			return fmt.Errorf("failed to save messages: %w", err)
		}
		if affected != int64(len(messages)) {
			return fmt.Errorf("%w: %d of %d messages belong to another session",
				ErrInvalidMessage, int64(len(messages))-affected, len(messages))
		}
		return nil
	})
}

// GetMessages returns all messages of a session in save order.
func (s *SQLStore) GetMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id::text, role, content, created_at
		FROM agentstream_messages
		WHERE session_id = $1::uuid
		ORDER BY seq ASC
	`

	rows, err := s.executor(ctx).Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var msg types.Message
		var role string
		var content []byte

		if err := rows.Scan(&msg.ID, &role, &content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = types.Role(role)
		if err := msg.SetContentJSON(content); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

var _ Store = (*SQLStore)(nil)
