// Package version implements the orchestration core of the registry: it
// ties the version ledger and the artifact store together so that the
// two-resource create (file + row) and the destructive restore behave
// predictably under failure.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/registry/artifact"
	"github.com/GoCodeAlone/registry/store"
	"github.com/google/uuid"
)

// Validation errors reported before any storage is touched.
var (
	ErrEmptyName       = errors.New("version name is required")
	ErrInvalidMetadata = errors.New("metadata is not valid JSON")
)

// Service orchestrates create, read, list and restore operations over the
// version ledger and the artifact store.
type Service struct {
	ledger    store.VersionStore
	artifacts artifact.Store
	logger    *slog.Logger
}

// NewService creates a Service. A nil logger falls back to slog.Default.
func NewService(ledger store.VersionStore, artifacts artifact.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, artifacts: artifacts, logger: logger}
}

// CreateRequest carries the inputs for creating a new version.
type CreateRequest struct {
	Name        string
	Description string
	// Metadata is an optional JSON document supplied as text.
	Metadata string
	// Filename is the client-supplied file name; only its extension is
	// used, the stored name is always a fresh random token.
	Filename string
	Content  io.Reader
}

// Create validates the request, writes the artifact file, then inserts the
// ledger record. The file write strictly precedes the insert, so a record
// never becomes visible without its backing file. If the insert fails after
// a successful save the archived file is left behind as an orphan: cleaning
// it up here would introduce its own partial-failure modes without a
// transaction spanning both resources, so the leak is logged and accepted.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.VersionRecord, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var metadata json.RawMessage
	if req.Metadata != "" {
		if !json.Valid([]byte(req.Metadata)) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMetadata, req.Metadata)
		}
		metadata = json.RawMessage(req.Metadata)
	}

	archivePath, err := s.artifacts.Save(ctx, req.Content, filepath.Ext(req.Filename))
	if err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	rec := &store.VersionRecord{
		Name:         name,
		Description:  req.Description,
		ArtifactPath: archivePath,
		Metadata:     metadata,
	}
	if err := s.ledger.Insert(ctx, rec); err != nil {
		s.logger.Warn("ledger insert failed, archived file orphaned",
			"name", name, "artifact_path", archivePath, "error", err)
		return nil, err
	}

	s.logger.Info("version created", "id", rec.ID, "name", rec.Name, "artifact_path", rec.ArtifactPath)
	return rec, nil
}

// Get returns the version with the given id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.VersionRecord, error) {
	return s.ledger.Get(ctx, id)
}

// List returns all versions, newest first.
func (s *Service) List(ctx context.Context) ([]*store.VersionRecord, error) {
	return s.ledger.List(ctx)
}

// Restore copies the artifact for the given version into the active slot
// and returns the resulting path. An unknown id aborts with no side
// effects. Restore is idempotent: repeating it with the same id leaves the
// slot with the same single file.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := s.ledger.Get(ctx, id)
	if err != nil {
		return "", err
	}

	activePath, err := s.artifacts.RestoreToActive(ctx, rec.ArtifactPath)
	if err != nil {
		return "", fmt.Errorf("restore artifact: %w", err)
	}

	s.logger.Info("version restored", "id", rec.ID, "name", rec.Name, "active_path", activePath)
	return activePath, nil
}
