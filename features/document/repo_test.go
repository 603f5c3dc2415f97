package document_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/backend/features/document"
	"docuchat/backend/internal/apperr"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	doc := &document.Document{
		OwnerID:     1,
		Filename:    "report.pdf",
		StoragePath: "./uploads/abc_report.pdf",
		FileSize:    2048,
		Status:      document.StatusUploaded,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO documents (owner_id, filename, storage_path, file_size, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, uploaded_at`)).
		WithArgs(doc.OwnerID, doc.Filename, doc.StoragePath, doc.FileSize, doc.Status).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow(5, time.Now()))

	err = repo.Save(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	cols := []string{"id", "owner_id", "filename", "storage_path", "file_size", "page_count", "chunk_count", "status", "uploaded_at", "indexed_at"}

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, owner_id, filename").
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(5, 1, "report.pdf", "./uploads/x.pdf", 2048, nil, nil, document.StatusUploaded, time.Now(), nil))

		doc, err := repo.Get(context.Background(), 5, 1)
		require.NoError(t, err)
		assert.Equal(t, document.StatusUploaded, doc.Status)
		assert.Nil(t, doc.PageCount)
		assert.Nil(t, doc.IndexedAt)
	})

	t.Run("WrongOwnerIsNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, owner_id, filename").
			WithArgs(int64(5), int64(99)).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.Get(context.Background(), 5, 99)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_BeginProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	query := regexp.QuoteMeta(`UPDATE documents SET status = $1 WHERE id = $2 AND status IN ($3, $4)`)

	t.Run("FromUploaded", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(document.StatusProcessing, int64(5), document.StatusUploaded, document.StatusFailed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.BeginProcessing(context.Background(), 5))
	})

	t.Run("NoEligibleRowRejected", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(document.StatusProcessing, int64(5), document.StatusUploaded, document.StatusFailed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.BeginProcessing(context.Background(), 5)
		assert.ErrorIs(t, err, apperr.ErrAlreadyIndexed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_MarkIndexed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	indexedAt := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE documents SET status").
			WithArgs(document.StatusIndexed, 3, 12, indexedAt, int64(5), document.StatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkIndexed(context.Background(), 5, 3, 12, indexedAt))
	})

	t.Run("NotProcessingAnymore", func(t *testing.T) {
		mock.ExpectExec("UPDATE documents SET status").
			WithArgs(document.StatusIndexed, 3, 12, indexedAt, int64(5), document.StatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkIndexed(context.Background(), 5, 3, 12, indexedAt)
		assert.ErrorIs(t, err, apperr.ErrPersistence)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ClearIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	// Chunks go first, then pages.
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chunks WHERE document_id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pages WHERE document_id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, repo.ClearIndex(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_InsertChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	chunks := []document.ChunkRow{
		{DocumentID: 5, PageNumber: 1, ChunkIndex: 0, Text: "first", TokenCount: 2},
		{DocumentID: 5, PageNumber: 1, ChunkIndex: 1, Text: "second", TokenCount: 2},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO chunks")
	prep.ExpectExec().WithArgs(int64(5), 1, 0, "first", 2).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(int64(5), 1, 1, "second", 2).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.InsertChunks(context.Background(), chunks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_InsertPages_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	pages := []document.PageRow{
		{DocumentID: 5, PageNumber: 1, Text: "page one", CharacterCount: 8},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO pages")
	prep.ExpectExec().WithArgs(int64(5), 1, "page one", 8).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	assert.Error(t, repo.InsertPages(context.Background(), pages))
	assert.NoError(t, mock.ExpectationsWereMet())
}
