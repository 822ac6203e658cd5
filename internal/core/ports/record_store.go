package ports

import (
	"context"

	"go.trai.ch/reactor/internal/core/domain"
)

// RecordStore persists per-module build records.
//
//go:generate mockgen -source=record_store.go -destination=mocks/mock_record_store.go -package=mocks
type RecordStore interface {
	// Put inserts or replaces the record of one module within one build.
	Put(ctx context.Context, root string, record *domain.ModuleRecord) error
	// List returns the records of a build ordered by start time.
	List(ctx context.Context, root, buildID string) ([]domain.ModuleRecord, error)
	// Close releases any open databases.
	Close() error
}
