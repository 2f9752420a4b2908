package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGVersionStore implements VersionStore backed by PostgreSQL. The
// uniqueness of version names is enforced by the UNIQUE constraint on
// the name column, so concurrent inserts with the same name race safely:
// exactly one succeeds and the rest observe ErrDuplicate.
type PGVersionStore struct {
	pool *pgxpool.Pool
}

func (s *PGVersionStore) Insert(ctx context.Context, v *VersionRecord) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO versions (id, name, description, artifact_path, metadata)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		v.ID, v.Name, v.Description, v.ArtifactPath, v.Metadata,
	).Scan(&v.CreatedAt)
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("%w: version with name %s", ErrDuplicate, v.Name)
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s *PGVersionStore) Get(ctx context.Context, id uuid.UUID) (*VersionRecord, error) {
	return s.scanOne(ctx, `SELECT id, name, description, artifact_path, metadata, created_at
		FROM versions WHERE id = $1`, id)
}

func (s *PGVersionStore) GetByName(ctx context.Context, name string) (*VersionRecord, error) {
	return s.scanOne(ctx, `SELECT id, name, description, artifact_path, metadata, created_at
		FROM versions WHERE name = $1`, name)
}

func (s *PGVersionStore) List(ctx context.Context) ([]*VersionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, artifact_path, metadata, created_at
		FROM versions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []*VersionRecord
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *PGVersionStore) scanOne(ctx context.Context, query string, args ...any) (*VersionRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query version: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query version: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanVersion(rows)
}

func scanVersion(rows pgx.Rows) (*VersionRecord, error) {
	var v VersionRecord
	err := rows.Scan(&v.ID, &v.Name, &v.Description, &v.ArtifactPath, &v.Metadata, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return &v, nil
}
