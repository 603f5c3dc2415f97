package retrieval

import (
	"context"
	"database/sql"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListByDocument returns the document's chunks in canonical order. The
// ordering is part of the retrieval contract: equal-score chunks keep this
// order, and source labels must be reproducible across calls.
func (s *PostgresStore) ListByDocument(ctx context.Context, documentID int64) ([]Chunk, error) {
	query := `SELECT id, document_id, page_number, chunk_index, text, token_count
		FROM chunks WHERE document_id = $1 ORDER BY page_number, chunk_index, id`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.PageNumber, &c.ChunkIndex, &c.Text, &c.TokenCount); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresStore) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}
