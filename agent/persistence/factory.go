package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/internal/database"
)

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `yaml:"type" json:"type" env:"TYPE"`

	Redis    RedisConfig     `yaml:"redis" json:"redis"`
	Database database.Config `yaml:"database" json:"database"`
	Mongo    MongoConfig     `yaml:"mongo" json:"mongo"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "superfast:store:",
		},
		Database: database.Config{
			Driver: database.DriverSQLite,
			DSN:    "file:superfast.db",
			Pool:   database.DefaultPoolConfig(),
		},
		Mongo: DefaultMongoConfig(),
	}
}

// NewStore creates a Store based on the configuration
func NewStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger, opts ...Option) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]Option{WithLogger(logger)}, opts...)

	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case StoreTypeMemory, "":
		store = NewMemoryStore(opts...)
	case StoreTypeRedis:
		store, err = DialRedisStore(ctx, cfg.Redis, opts...)
	case StoreTypeSQL:
		store, err = OpenSQLStore(ctx, cfg.Database, opts...)
	case StoreTypeMongo:
		store, err = DialMongoStore(ctx, cfg.Mongo, opts...)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("record store ready", zap.String("type", string(cfg.Type)))
	return store, nil
}
