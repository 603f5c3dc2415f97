// Package document owns the document lifecycle: upload, the
// uploaded → processing → indexed state machine, and deletion.
package document

import (
	"time"
)

// Document statuses. A document must reach StatusIndexed before any
// retrieval or answer call against it is permitted. StatusFailed is
// absorbing from processing but a failed document may be re-indexed.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

type Document struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Filename    string     `json:"filename"`
	StoragePath string     `json:"-"`
	FileSize    int64      `json:"file_size"`
	PageCount   *int       `json:"page_count"`
	ChunkCount  *int       `json:"chunk_count"`
	Status      string     `json:"status"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	IndexedAt   *time.Time `json:"indexed_at"`
}

// PageRow is a persisted page of extracted text. Immutable once created.
type PageRow struct {
	DocumentID     int64
	PageNumber     int
	Text           string
	CharacterCount int
}

// ChunkRow is a persisted retrieval unit. Immutable once created; the full
// ordered set of a document's chunks is its searchable index.
type ChunkRow struct {
	DocumentID int64
	PageNumber int
	ChunkIndex int
	Text       string
	TokenCount int
}

// IndexResult reports a completed indexing run.
type IndexResult struct {
	DocumentID int64     `json:"document_id"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	IndexedAt  time.Time `json:"indexed_at"`
}
