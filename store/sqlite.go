package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/001_initial.sql
var sqliteMigration string

// SQLiteStore provides the registry stores backed by an SQLite database.
// It is suitable for single-node deployments and local development; the
// PostgreSQL stores are the production path.
type SQLiteStore struct {
	db *sql.DB

	users    *SQLiteUserStore
	versions *SQLiteVersionStore
}

// NewSQLiteStore creates a new SQLite-backed store. The dsn parameter is
// the path to the SQLite database file. Use ":memory:" for an in-memory
// database (useful for testing).
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Append pragmas to the DSN so they apply to every connection in the pool.
	if dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Limit to one open connection to serialize writes and avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{
		db:       db,
		users:    &SQLiteUserStore{db: db},
		versions: &SQLiteVersionStore{db: db},
	}, nil
}

// Users returns the user store.
func (s *SQLiteStore) Users() UserStore { return s.users }

// Versions returns the version ledger store.
func (s *SQLiteStore) Versions() VersionStore { return s.versions }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteDuplicate checks for a UNIQUE constraint violation.
func isSQLiteDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// SQLiteUserStore implements UserStore over SQLite. Roles are stored as
// a JSON array in a TEXT column.
type SQLiteUserStore struct {
	db *sql.DB
}

func (s *SQLiteUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if len(u.Roles) == 0 {
		u.Roles = []Role{RoleUser}
	}
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}
	u.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, disabled, roles, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		u.ID.String(), u.Username, u.Email, u.PasswordHash, u.Disabled, string(roles), u.CreatedAt.UnixNano())
	if err != nil {
		if isSQLiteDuplicate(err) {
			return fmt.Errorf("%w: user with username %s", ErrDuplicate, u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteUserStore) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, disabled, roles, created_at
		FROM users WHERE id = ?`, id.String())
	return scanSQLiteUser(row)
}

func (s *SQLiteUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, disabled, roles, created_at
		FROM users WHERE username = ?`, username)
	return scanSQLiteUser(row)
}

func (s *SQLiteUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, disabled, roles, created_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*User, error) {
	var (
		u       User
		id      string
		roles   string
		created int64
	)
	err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &u.Disabled, &roles, &created)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

// SQLiteVersionStore implements VersionStore over SQLite.
type SQLiteVersionStore struct {
	db *sql.DB
}

func (s *SQLiteVersionStore) Insert(ctx context.Context, v *VersionRecord) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now().UTC()

	var metadata any
	if len(v.Metadata) > 0 {
		metadata = string(v.Metadata)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO versions (id, name, description, artifact_path, metadata, created_at)
		VALUES (?,?,?,?,?,?)`,
		v.ID.String(), v.Name, v.Description, v.ArtifactPath, metadata, v.CreatedAt.UnixNano())
	if err != nil {
		if isSQLiteDuplicate(err) {
			return fmt.Errorf("%w: version with name %s", ErrDuplicate, v.Name)
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s *SQLiteVersionStore) Get(ctx context.Context, id uuid.UUID) (*VersionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, artifact_path, metadata, created_at
		FROM versions WHERE id = ?`, id.String())
	return scanSQLiteVersion(row)
}

func (s *SQLiteVersionStore) GetByName(ctx context.Context, name string) (*VersionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, artifact_path, metadata, created_at
		FROM versions WHERE name = ?`, name)
	return scanSQLiteVersion(row)
}

func (s *SQLiteVersionStore) List(ctx context.Context) ([]*VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, artifact_path, metadata, created_at
		FROM versions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []*VersionRecord
	for rows.Next() {
		v, err := scanSQLiteVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanSQLiteVersion(row rowScanner) (*VersionRecord, error) {
	var (
		v        VersionRecord
		id       string
		metadata sql.NullString
		created  int64
	)
	err := row.Scan(&id, &v.Name, &v.Description, &v.ArtifactPath, &metadata, &created)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan version: %w", err)
	}
	v.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse version id: %w", err)
	}
	if metadata.Valid {
		v.Metadata = json.RawMessage(metadata.String)
	}
	v.CreatedAt = time.Unix(0, created).UTC()
	return &v, nil
}
