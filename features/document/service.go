package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docuchat/backend/internal/apperr"
	"docuchat/backend/internal/middleware"
	"docuchat/backend/internal/text"
)

type Extractor interface {
	Extract(path string) ([]text.Page, error)
	Validate(path string) bool
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo      Repository
	extractor Extractor
	pub       EventPublisher

	maxTokens     int
	overlapTokens int
}

func NewService(repo Repository, extractor Extractor, pub EventPublisher, maxTokens, overlapTokens int) *Service {
	return &Service{
		repo:          repo,
		extractor:     extractor,
		pub:           pub,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
	}
}

// Register records an uploaded file as a document in status uploaded. The
// file has already been written and validated by the handler.
func (s *Service) Register(ctx context.Context, ownerID int64, filename, storagePath string, fileSize int64) (*Document, error) {
	doc := &Document{
		OwnerID:     ownerID,
		Filename:    filename,
		StoragePath: storagePath,
		FileSize:    fileSize,
		Status:      StatusUploaded,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return doc, nil
}

// Index runs the full pipeline: extract pages, persist them, chunk, persist
// chunks, then flip the document to indexed with its counts in one update.
// Any failure flips it to failed and surfaces the cause. An indexed
// document is rejected; uploaded and failed documents may be (re)indexed.
func (s *Service) Index(ctx context.Context, id, ownerID int64) (*IndexResult, error) {
	doc, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if doc.Status == StatusIndexed {
		return nil, apperr.ErrAlreadyIndexed
	}

	// Conditional update, not the read above, is what actually guards
	// against two concurrent index requests.
	if err := s.repo.BeginProcessing(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.runPipeline(ctx, doc)
	if err != nil {
		if failErr := s.repo.MarkFailed(ctx, id); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark document failed", "error", failErr, "document_id", id)
		}
		s.publish(ctx, "document.failed", map[string]interface{}{
			"document_id": id,
			"error":       err.Error(),
		})
		return nil, err
	}

	s.publish(ctx, "document.indexed", map[string]interface{}{
		"document_id": result.DocumentID,
		"pages":       result.Pages,
		"chunks":      result.Chunks,
	})
	return result, nil
}

func (s *Service) runPipeline(ctx context.Context, doc *Document) (*IndexResult, error) {
	// Leftovers from an earlier failed run would collide with the unique
	// page/chunk constraints, so the slate is cleared first.
	if err := s.repo.ClearIndex(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("%w: clearing previous index: %v", apperr.ErrPersistence, err)
	}

	pages, err := s.extractor.Extract(doc.StoragePath)
	if err != nil {
		return nil, err
	}

	pageRows := make([]PageRow, 0, len(pages))
	for _, p := range pages {
		pageRows = append(pageRows, PageRow{
			DocumentID:     doc.ID,
			PageNumber:     p.PageNumber,
			Text:           p.Text,
			CharacterCount: p.CharacterCount,
		})
	}
	if err := s.repo.InsertPages(ctx, pageRows); err != nil {
		return nil, fmt.Errorf("%w: inserting pages: %v", apperr.ErrPersistence, err)
	}

	pieces := text.ChunkPages(pages, s.maxTokens, s.overlapTokens)

	chunkRows := make([]ChunkRow, 0, len(pieces))
	for _, piece := range pieces {
		chunkRows = append(chunkRows, ChunkRow{
			DocumentID: doc.ID,
			PageNumber: piece.PageNumber,
			ChunkIndex: piece.Index,
			Text:       piece.Text,
			TokenCount: piece.TokenCount,
		})
	}
	if err := s.repo.InsertChunks(ctx, chunkRows); err != nil {
		return nil, fmt.Errorf("%w: inserting chunks: %v", apperr.ErrPersistence, err)
	}

	indexedAt := time.Now().UTC()
	if err := s.repo.MarkIndexed(ctx, doc.ID, len(pageRows), len(chunkRows), indexedAt); err != nil {
		return nil, fmt.Errorf("%w: marking indexed: %v", apperr.ErrPersistence, err)
	}

	return &IndexResult{
		DocumentID: doc.ID,
		Pages:      len(pageRows),
		Chunks:     len(chunkRows),
		IndexedAt:  indexedAt,
	}, nil
}

func (s *Service) Get(ctx context.Context, id, ownerID int64) (*Document, error) {
	return s.repo.Get(ctx, id, ownerID)
}

func (s *Service) List(ctx context.Context, ownerID int64) ([]Document, error) {
	return s.repo.List(ctx, ownerID)
}

// Delete removes the document row (cascading to pages, chunks, and
// conversations) and then the stored file. A missing file is benign and
// only logged.
func (s *Service) Delete(ctx context.Context, id, ownerID int64) error {
	doc, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	if err := os.Remove(doc.StoragePath); err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to remove stored file", "error", err, "path", doc.StoragePath)
	}

	s.publish(ctx, "document.deleted", map[string]interface{}{"document_id": doc.ID})
	return nil
}

// publish is fire-and-forget; downstream consumers are optional.
func (s *Service) publish(ctx context.Context, topic string, payload map[string]interface{}) {
	if s.pub == nil {
		return
	}
	payload["correlation_id"] = middleware.GetCorrelationID(ctx)
	body, _ := json.Marshal(payload)
	if err := s.pub.Publish(topic, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "error", err, "topic", topic)
	} else {
		slog.InfoContext(ctx, "published event", "topic", topic)
	}
}
