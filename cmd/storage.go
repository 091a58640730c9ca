package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/database/jsonfile"
	"github.com/kozaktomas/face-registry/internal/database/mariadb"
	"github.com/kozaktomas/face-registry/internal/database/postgres"
	"github.com/kozaktomas/face-registry/internal/database/redisstore"
	"github.com/kozaktomas/face-registry/internal/database/s3store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func init() {
	registerBackends()
}

// registerBackends makes every storage backend available to database.OpenStorage.
func registerBackends() {
	database.RegisterBackend("file", func(ctx context.Context, cfg *config.Config) (database.Storage, error) {
		if cfg.Storage.DataFile == "" {
			return nil, errors.New("DATA_FILE is required for the file backend")
		}
		return jsonfile.New(cfg.Storage.DataFile), nil
	})

	database.RegisterBackend("postgres", func(ctx context.Context, cfg *config.Config) (database.Storage, error) {
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required")
		}
		repo, err := postgres.Open(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return repo, nil
	})

	database.RegisterBackend("mariadb", func(ctx context.Context, cfg *config.Config) (database.Storage, error) {
		if cfg.MariaDB.DSN == "" {
			return nil, errors.New("MARIADB_DSN environment variable is required")
		}
		repo, err := mariadb.Open(cfg.MariaDB.DSN)
		if err != nil {
			return nil, err
		}
		return repo, nil
	})

	database.RegisterBackend("redis", func(ctx context.Context, cfg *config.Config) (database.Storage, error) {
		if cfg.Redis.URL == "" {
			return nil, errors.New("REDIS_URL environment variable is required")
		}
		s, err := redisstore.Open(ctx, cfg.Redis.URL, cfg.Redis.Key)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	database.RegisterBackend("s3", func(ctx context.Context, cfg *config.Config) (database.Storage, error) {
		if cfg.S3.Bucket == "" {
			return nil, errors.New("S3_BUCKET environment variable is required")
		}
		s, err := s3store.Open(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// openStore opens and initializes the named backend. The returned close
// function releases the backend's connections.
func openStore(ctx context.Context, cfg *config.Config, backend string) (*database.RecordStore, func() error, error) {
	storage, err := database.OpenStorage(ctx, backend, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return database.CloseStorage(storage) }

	store := database.NewRecordStore(storage)
	if err := store.Initialize(ctx); err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("initializing %s storage: %w", backend, err), closeFn())
	}

	logger.Debug("storage ready", zap.String("backend", backend), zap.String("storage", database.Describe(storage)))
	return store, closeFn, nil
}
