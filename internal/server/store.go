package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/tagged-todos/internal/config"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/repository/memory"
	mongoRepo "github.com/sakif/tagged-todos/internal/repository/mongo"
	sqliteRepo "github.com/sakif/tagged-todos/internal/repository/sqlite"
)

// OpenStore connects to the backend named by cfg.Driver. Opening a store
// also brings its schema up to date: SQLite runs its migrations, MongoDB
// creates its indexes.
//
// IMPORT ALIASES:
// repository/sqlite and repository/mongo are imported as sqliteRepo and
// mongoRepo so they are not confused with the driver packages of the same
// name.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.DriverMongo:
		store, err := mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverMemory:
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
