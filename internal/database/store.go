// Package database provides storage backends for the learned-state map.
package database

import (
	"context"
	"fmt"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/model"
)

// Backend names accepted by Open.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Store defines the learned-state persistence contract.
// JSON, SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	// Load reads the whole mapping. A missing or corrupt backing store
	// fails with apperrors.ErrStorageUnavailable.
	Load(ctx context.Context) (model.LearnedState, error)

	// Save replaces the whole persisted mapping with m. There is no merge
	// and no locking: concurrent savers overwrite each other.
	Save(ctx context.Context, m model.LearnedState) error

	// Backend returns the backend name ("json", "sqlite" or "postgres").
	Backend() string

	Close() error
}

// Open returns the store for backend. path is used by the file backends,
// dsn by postgres.
func Open(backend, path, dsn string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONFile(path), nil
	case BackendSQLite:
		return New(path)
	case BackendPostgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("%w: unknown learned-state backend %q", apperrors.ErrInvalidInput, backend)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrStorageUnavailable, op, err)
}
