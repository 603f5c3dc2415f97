package document

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docuchat/backend/internal/apperr"
)

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id, ownerID int64) (*Document, error)
	List(ctx context.Context, ownerID int64) ([]Document, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)

	BeginProcessing(ctx context.Context, id int64) error
	MarkIndexed(ctx context.Context, id int64, pageCount, chunkCount int, indexedAt time.Time) error
	MarkFailed(ctx context.Context, id int64) error
	ClearIndex(ctx context.Context, id int64) error

	InsertPages(ctx context.Context, pages []PageRow) error
	InsertChunks(ctx context.Context, chunks []ChunkRow) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (owner_id, filename, storage_path, file_size, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, uploaded_at`
	return r.db.QueryRowContext(ctx, query, doc.OwnerID, doc.Filename, doc.StoragePath, doc.FileSize, doc.Status).
		Scan(&doc.ID, &doc.UploadedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id, ownerID int64) (*Document, error) {
	d := &Document{}
	query := `SELECT id, owner_id, filename, storage_path, file_size, page_count, chunk_count, status, uploaded_at, indexed_at
		FROM documents WHERE id = $1 AND owner_id = $2`
	err := r.db.QueryRowContext(ctx, query, id, ownerID).
		Scan(&d.ID, &d.OwnerID, &d.Filename, &d.StoragePath, &d.FileSize, &d.PageCount, &d.ChunkCount, &d.Status, &d.UploadedAt, &d.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context, ownerID int64) ([]Document, error) {
	query := `SELECT id, owner_id, filename, storage_path, file_size, page_count, chunk_count, status, uploaded_at, indexed_at
		FROM documents WHERE owner_id = $1 ORDER BY uploaded_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.StoragePath, &d.FileSize, &d.PageCount, &d.ChunkCount, &d.Status, &d.UploadedAt, &d.IndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	// Pages, chunks, conversations, and messages go with it via cascade.
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// BeginProcessing flips the document into processing only if its stored
// status still permits indexing. The guard lives in the UPDATE itself so
// two concurrent index requests cannot both pass a read-then-write check.
func (r *PostgresRepo) BeginProcessing(ctx context.Context, id int64) error {
	query := `UPDATE documents SET status = $1 WHERE id = $2 AND status IN ($3, $4)`
	res, err := r.db.ExecContext(ctx, query, StatusProcessing, id, StatusUploaded, StatusFailed)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrAlreadyIndexed
	}
	return nil
}

func (r *PostgresRepo) MarkIndexed(ctx context.Context, id int64, pageCount, chunkCount int, indexedAt time.Time) error {
	query := `UPDATE documents SET status = $1, page_count = $2, chunk_count = $3, indexed_at = $4
		WHERE id = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, StatusIndexed, pageCount, chunkCount, indexedAt, id, StatusProcessing)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrPersistence
	}
	return nil
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE documents SET status = $1 WHERE id = $2`, StatusFailed, id)
	return err
}

// ClearIndex removes any pages and chunks left behind by a previous run so
// a retry starts from a clean slate.
func (r *PostgresRepo) ClearIndex(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE document_id = $1`, id)
	return err
}

func (r *PostgresRepo) InsertPages(ctx context.Context, pages []PageRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (document_id, page_number, text, character_count) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, p.DocumentID, p.PageNumber, p.Text, p.CharacterCount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) InsertChunks(ctx context.Context, chunks []ChunkRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, page_number, chunk_index, text, token_count) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.DocumentID, c.PageNumber, c.ChunkIndex, c.Text, c.TokenCount); err != nil {
			return err
		}
	}
	return tx.Commit()
}
