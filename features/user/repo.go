package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"docuchat/backend/internal/apperr"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetByExternalUID(ctx context.Context, uid string) (*User, error) {
	u := &User{}
	query := `SELECT id, external_uid, email, COALESCE(display_name, ''), created_at FROM users WHERE external_uid = $1`
	err := r.db.QueryRowContext(ctx, query, uid).Scan(&u.ID, &u.ExternalUID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetOrCreate upserts on external_uid so concurrent first requests from the
// same user cannot race into duplicate rows.
func (r *PostgresRepo) GetOrCreate(ctx context.Context, uid, email string) (*User, error) {
	display := ""
	if at := strings.Index(email, "@"); at > 0 {
		display = email[:at]
	}

	u := &User{}
	query := `INSERT INTO users (external_uid, email, display_name) VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (external_uid) DO UPDATE SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)
		RETURNING id, external_uid, email, COALESCE(display_name, ''), created_at`
	err := r.db.QueryRowContext(ctx, query, uid, email, display).Scan(&u.ID, &u.ExternalUID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
