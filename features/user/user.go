// Package user stores the application-side user rows keyed by the external
// identity provider's uid. Token verification is upstream; this package
// only maps verified uids to local ids for ownership checks.
package user

import (
	"context"
	"time"
)

type User struct {
	ID          int64     `json:"id"`
	ExternalUID string    `json:"external_uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repository interface {
	GetByExternalUID(ctx context.Context, uid string) (*User, error)
	GetOrCreate(ctx context.Context, uid, email string) (*User, error)
}
