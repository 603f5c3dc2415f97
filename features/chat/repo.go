package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"docuchat/backend/internal/apperr"
)

type Repository interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id, userID int64) (*Conversation, error)
	ListConversations(ctx context.Context, documentID, userID int64) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id, userID int64) error
	GetMessages(ctx context.Context, conversationID int64) ([]Message, error)
	AppendExchange(ctx context.Context, conversationID int64, question, answer string, citations []StoredCitation) (int64, error)
	CountConversations(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `INSERT INTO conversations (document_id, user_id, title) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, conv.DocumentID, conv.UserID, conv.Title).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
}

func (r *PostgresRepo) GetConversation(ctx context.Context, id, userID int64) (*Conversation, error) {
	c := &Conversation{}
	query := `SELECT id, document_id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = $1 AND user_id = $2`
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepo) ListConversations(ctx context.Context, documentID, userID int64) ([]Conversation, error) {
	query := `SELECT c.id, c.document_id, c.user_id, c.title, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c WHERE c.document_id = $1 AND c.user_id = $2
		ORDER BY c.updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, documentID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *PostgresRepo) DeleteConversation(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, citations, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var citations []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				return nil, fmt.Errorf("decoding citations for message %d: %w", m.ID, err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendExchange writes the user message, the assistant message with its
// citations, and the conversation timestamp bump as one transaction, so a
// question is never committed without its answer. Returns the assistant
// message id.
func (r *PostgresRepo) AppendExchange(ctx context.Context, conversationID int64, question, answer string, citations []StoredCitation) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content) VALUES ($1, $2, $3)`,
		conversationID, RoleUser, question); err != nil {
		return 0, err
	}

	if citations == nil {
		citations = []StoredCitation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return 0, err
	}

	var messageID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, citations) VALUES ($1, $2, $3, $4) RETURNING id`,
		conversationID, RoleAssistant, answer, citationsJSON).Scan(&messageID); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return messageID, nil
}

func (r *PostgresRepo) CountConversations(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}
