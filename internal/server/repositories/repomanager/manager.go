// Package repomanager opens the configured identity store backend and vends
// its repositories together with a schema migration hook.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
)

type RepositoryManager interface {
	// RunMigrations brings the store schema (tables or indexes) up to date.
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// New opens the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StorageBackend {
	case config.StorageMongo:
		return NewMongoRepositoryManager(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StoragePostgres:
		return OpenPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	case config.StorageMemory:
		return NewInMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
