package core

import (
	"context"
	"fmt"

	"milkbank/internal/config"
	"milkbank/internal/infra/persistence/memory"
	"milkbank/internal/infra/persistence/mongo"
	"milkbank/internal/infra/persistence/postgres"
	"milkbank/internal/infra/persistence/redis"
	"milkbank/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.StorageMemory   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = config.StorageSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.StoragePostgres // PostgreSQL server
	StorageRedis    StorageDriver = config.StorageRedis    // Redis hash
	StorageMongo    StorageDriver = config.StorageMongo    // MongoDB collection
)

// OpenPersistentStore selects a backend from cfg. An empty driver means
// sqlite. Durable stores implement io.Closer.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine) (PersistentStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return opened(sqlite.NewStore(ctx, cfg.SQLitePath, engine))
	case StoragePostgres:
		return opened(postgres.NewStore(ctx, cfg.PostgresDSN, engine))
	case StorageRedis:
		return opened(redis.NewStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, engine))
	case StorageMongo:
		return opened(mongo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB, engine))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// opened keeps a failed constructor from yielding a non-nil interface holding
// a nil pointer.
func opened[T PersistentStore](store T, err error) (PersistentStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

// StateSnapshot is a point-in-time copy of every record a store holds.
type StateSnapshot = memory.Snapshot

// StateArchiver is implemented by stores that can export and replace their
// full state. The memory store and every durable backend satisfy it.
type StateArchiver interface {
	ExportState() StateSnapshot
	RestoreState(ctx context.Context, snap StateSnapshot) error
}
