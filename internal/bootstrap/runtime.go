// Package bootstrap wires the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"bazaar/internal/cache"
	"bazaar/internal/config"
	"bazaar/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database, applies the schema and initializes
// Redis. The returned Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return db, cache.GetClient(), nil
}

// Close releases what InitRuntime opened.
func Close(db *gorm.DB) error {
	cacheErr := cache.Close()
	if err := database.Close(db); err != nil {
		return err
	}
	return cacheErr
}
