// Package chat owns the question/answer exchange lifecycle: conversations,
// their message log, and the ask pipeline that produces grounded answers.
package chat

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID           int64     `json:"id"`
	DocumentID   int64     `json:"document_id"`
	UserID       int64     `json:"-"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
}

// StoredCitation is the citation payload persisted with an assistant
// message. ChunkID is nil when the cited chunk could not be resolved.
type StoredCitation struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
	ChunkID *int64 `json:"chunk_id"`
}

type Message struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"-"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	Citations      []StoredCitation `json:"citations,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// AskResult is what one successful ask call produces: the answer, its
// citations, and where the exchange was recorded.
type AskResult struct {
	Answer         string           `json:"answer"`
	Citations      []StoredCitation `json:"citations"`
	ConversationID int64            `json:"conversation_id"`
	MessageID      int64            `json:"message_id"`
}

// ConversationDetail is a conversation with its full message log.
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}
