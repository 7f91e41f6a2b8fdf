// Package backend opens the storage.Storage implementation named in the
// configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/aanand-mishra/alunos-api/internal/config"
	"github.com/aanand-mishra/alunos-api/internal/storage"
	"github.com/aanand-mishra/alunos-api/internal/storage/bolt"
	"github.com/aanand-mishra/alunos-api/internal/storage/mongo"
	"github.com/aanand-mishra/alunos-api/internal/storage/sqlite"
)

// Open returns the store for cfg.Driver. The caller owns it and must
// Close it on shutdown.
func Open(ctx context.Context, cfg config.Storage) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return sqlite.New(cfg.Path)
	case config.DriverBolt:
		return bolt.New(cfg.Path, bolt.Options{})
	case config.DriverMongo:
		return mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("backend.Open: unknown storage driver %q", cfg.Driver)
	}
}
