package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGUserStore implements UserStore backed by PostgreSQL.
type PGUserStore struct {
	pool *pgxpool.Pool
}

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if len(u.Roles) == 0 {
		u.Roles = []Role{RoleUser}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, disabled, roles)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Disabled, roleStrings(u.Roles),
	).Scan(&u.CreatedAt)
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("%w: user with username %s", ErrDuplicate, u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PGUserStore) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.scanOne(ctx, `SELECT id, username, email, password_hash, disabled, roles, created_at
		FROM users WHERE id = $1`, id)
}

func (s *PGUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanOne(ctx, `SELECT id, username, email, password_hash, disabled, roles, created_at
		FROM users WHERE username = $1`, username)
}

func (s *PGUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email, password_hash, disabled, roles, created_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PGUserStore) scanOne(ctx context.Context, query string, args ...any) (*User, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query user: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanUser(rows)
}

func scanUser(rows pgx.Rows) (*User, error) {
	var (
		u     User
		roles []string
	)
	err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Disabled, &roles, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Roles = parseRoles(roles)
	return &u, nil
}

// roleStrings converts []Role to []string for the text[] column.
func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func parseRoles(roles []string) []Role {
	out := make([]Role, len(roles))
	for i, r := range roles {
		out[i] = Role(r)
	}
	return out
}
