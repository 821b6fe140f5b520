// Package sqlstore implements storage.Driver on database/sql. The sqlite and
// postgres drivers share it and differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

// Store implements storage.Driver over a *sql.DB.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and applies the dialect's schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{DB: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

// CreateConversation stores a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *storage.Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, s.q(`
		INSERT INTO conversations (id, title, model_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		conv.ID, conv.Title, conv.ModelID, conv.CreatedAt.UTC(), conv.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	return conflictIfUnchanged(res)
}

// GetConversation retrieves a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*storage.Conversation, error) {
	row := s.DB.QueryRowContext(ctx, s.q(`
		SELECT id, title, model_id, created_at, updated_at
		FROM conversations WHERE id = ?`), id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Kind: "conversation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]*storage.Conversation, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, model_id, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []*storage.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// AppendMessage stores a message, creating its conversation on demand.
func (s *Store) AppendMessage(ctx context.Context, msg *storage.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO conversations (id, title, model_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = CASE WHEN excluded.updated_at > conversations.updated_at
				THEN excluded.updated_at ELSE conversations.updated_at END,
			model_id = CASE WHEN excluded.model_id <> ''
				THEN excluded.model_id ELSE conversations.model_id END`),
		msg.ConversationID, storage.TitleFrom(msg.Content), msg.Model, msg.CreatedAt.UTC(), msg.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO messages (id, conversation_id, role, content, tokens_used, finish_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		nullInt(msg.TokensUsed), msg.FinishReason, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	if err := conflictIfUnchanged(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}
	return nil
}

// Messages returns the messages of a conversation ordered by creation time.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, s.q(`
		SELECT id, conversation_id, role, content, tokens_used, finish_reason, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`), conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*storage.Message
	for rows.Next() {
		var (
			m      storage.Message
			role   string
			tokens sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &tokens, &m.FinishReason, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = chat.Role(role)
		if tokens.Valid {
			n := int(tokens.Int64)
			m.TokensUsed = &n
		}
		m.CreatedAt = m.CreatedAt.UTC()
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// DeleteConversation removes a conversation; its messages go with it through
// the ON DELETE CASCADE foreign key.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Kind: "conversation", ID: id}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*storage.Conversation, error) {
	var c storage.Conversation
	if err := row.Scan(&c.ID, &c.Title, &c.ModelID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func conflictIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
