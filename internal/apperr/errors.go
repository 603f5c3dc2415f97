// Package apperr defines the error kinds shared across features so handlers
// can map service failures to HTTP responses with errors.Is/errors.As.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound covers documents, conversations, and users that are
	// absent or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyIndexed rejects an index request for an indexed document.
	ErrAlreadyIndexed = errors.New("document already indexed")

	// ErrNotIndexed rejects questions against a document whose status is
	// anything other than indexed.
	ErrNotIndexed = errors.New("document not indexed")

	// ErrInvalidConversation marks a malformed (zero or negative)
	// conversation id, as opposed to an omitted one.
	ErrInvalidConversation = errors.New("invalid conversation id")

	// ErrExtraction wraps unreadable or corrupt source files.
	ErrExtraction = errors.New("extraction failed")

	// ErrNoRelevantContent is returned when retrieval finds zero chunks
	// for a question.
	ErrNoRelevantContent = errors.New("no relevant content found")

	// ErrGeneration wraps completion-service failures.
	ErrGeneration = errors.New("generation failed")

	// ErrPersistence wraps storage write failures mid-pipeline.
	ErrPersistence = errors.New("persistence failed")
)

// RateLimitError is a generation failure the caller should retry after a
// delay. It matches ErrGeneration under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrGeneration }
