package main

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/file"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/memory"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/mongo"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/redis"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/sqlite"
	"github.com/BrandonDHaskell/Carguard/server/internal/config"
)

// openBackend connects the persistence adapter named by cfg.Backend.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendFile:
		return file.Open(cfg.DataDir)
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.DBPath)
	case config.BackendRedis:
		return redis.Open(ctx, cfg.RedisURL)
	case config.BackendMongo:
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
