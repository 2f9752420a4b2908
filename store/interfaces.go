package store

import (
	"context"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// VersionStore defines persistence operations for the version ledger.
// Insert is the only mutation: version records have no update or delete.
type VersionStore interface {
	// Insert writes a new record. It returns ErrDuplicate when a record
	// with the same name already exists. On success the record's ID and
	// CreatedAt fields are populated.
	Insert(ctx context.Context, v *VersionRecord) error

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*VersionRecord, error)

	// GetByName returns the record with the given name, or ErrNotFound.
	GetByName(ctx context.Context, name string) (*VersionRecord, error)

	// List returns every record ordered newest first (created_at
	// descending, ties broken by descending id).
	List(ctx context.Context) ([]*VersionRecord, error)
}
