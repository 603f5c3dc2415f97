package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"docuchat/backend/features/document"
	"docuchat/backend/internal/answer"
	"docuchat/backend/internal/apperr"
	"docuchat/backend/internal/retrieval"
)

const titleMaxLen = 100

type Documents interface {
	Get(ctx context.Context, id, ownerID int64) (*document.Document, error)
}

type Retriever interface {
	Search(ctx context.Context, query string, documentID int64, topK int) ([]retrieval.RankedChunk, error)
}

type Generator interface {
	Answer(ctx context.Context, question, sourceText string, labelToPage map[int]int) (string, []answer.Citation, error)
}

type Service struct {
	repo      Repository
	documents Documents
	retriever Retriever
	generator Generator
	topK      int
}

func NewService(repo Repository, documents Documents, retriever Retriever, generator Generator, topK int) *Service {
	return &Service{
		repo:      repo,
		documents: documents,
		retriever: retriever,
		generator: generator,
		topK:      topK,
	}
}

// Ask answers a question about an indexed document and records the exchange.
// conversationID nil starts a new conversation; a non-positive value is
// malformed input, distinct from omission.
func (s *Service) Ask(ctx context.Context, userID, documentID int64, question string, conversationID *int64) (*AskResult, error) {
	doc, err := s.documents.Get(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusIndexed {
		return nil, fmt.Errorf("%w: status is %s", apperr.ErrNotIndexed, doc.Status)
	}

	conv, err := s.resolveConversation(ctx, userID, documentID, question, conversationID)
	if err != nil {
		return nil, err
	}

	ranked, err := s.retriever.Search(ctx, question, documentID, s.topK)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, apperr.ErrNoRelevantContent
	}

	sourceText, labelToPage := retrieval.FormatSources(ranked)

	answerText, citations, err := s.generator.Answer(ctx, question, sourceText, labelToPage)
	if err != nil {
		return nil, err
	}

	stored := resolveChunkIDs(citations, ranked)

	messageID, err := s.repo.AppendExchange(ctx, conv.ID, question, answerText, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	return &AskResult{
		Answer:         answerText,
		Citations:      stored,
		ConversationID: conv.ID,
		MessageID:      messageID,
	}, nil
}

func (s *Service) resolveConversation(ctx context.Context, userID, documentID int64, question string, conversationID *int64) (*Conversation, error) {
	if conversationID != nil {
		if *conversationID <= 0 {
			return nil, apperr.ErrInvalidConversation
		}
		conv, err := s.repo.GetConversation(ctx, *conversationID, userID)
		if err != nil {
			return nil, err
		}
		if conv.DocumentID != documentID {
			return nil, apperr.ErrNotFound
		}
		return conv, nil
	}

	conv := &Conversation{
		DocumentID: documentID,
		UserID:     userID,
		Title:      titleFromQuestion(question),
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return conv, nil
}

func titleFromQuestion(question string) string {
	// Character-indexed cut: a byte cut could split a multi-byte rune.
	if runes := []rune(question); len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen]) + "..."
	}
	return question
}

// resolveChunkIDs re-maps each citation's source label to the id of the
// chunk that carried that label, for persistence alongside the answer.
func resolveChunkIDs(citations []answer.Citation, ranked []retrieval.RankedChunk) []StoredCitation {
	stored := make([]StoredCitation, 0, len(citations))
	for _, c := range citations {
		sc := StoredCitation{Page: c.Page, Snippet: c.Snippet}
		if n, err := strconv.Atoi(strings.TrimPrefix(c.SourceLabel, "S")); err == nil && n >= 1 && n <= len(ranked) {
			id := ranked[n-1].ID
			sc.ChunkID = &id
		}
		stored = append(stored, sc)
	}
	return stored
}

func (s *Service) ListConversations(ctx context.Context, userID, documentID int64) ([]Conversation, error) {
	// Ownership of the document gates the listing, same as asking.
	if _, err := s.documents.Get(ctx, documentID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListConversations(ctx, documentID, userID)
}

func (s *Service) GetConversation(ctx context.Context, userID, conversationID int64) (*ConversationDetail, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationDetail{Conversation: *conv, Messages: messages}, nil
}

func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID int64) error {
	return s.repo.DeleteConversation(ctx, conversationID, userID)
}
