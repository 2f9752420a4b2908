package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role represents a role granted to a user account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ValidRoles is the set of valid role values.
var ValidRoles = map[Role]bool{
	RoleAdmin: true,
	RoleUser:  true,
}

// User represents a registry user account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Disabled     bool      `json:"disabled"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRole reports whether the user has been granted the given role.
func (u *User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// VersionRecord describes one uploaded artifact version. Records are
// insert-only: once written they are never updated or deleted, and
// ArtifactPath always refers to a file in the artifact archive, stored
// relative to the archive root.
type VersionRecord struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	ArtifactPath string          `json:"artifact_path"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
