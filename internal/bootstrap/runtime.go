// Package bootstrap connects runtime dependencies and assembles the
// application's components from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/cache"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs the configured schema policy after connecting.
	ApplySchema bool
}

// InitRuntime connects to the database and Redis. A nil Redis client means
// Redis is unreachable and every Redis-backed feature degrades to a no-op.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: opts.ApplySchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()
	if r == nil {
		slog.Warn("redis unavailable; leases, cache and notifications are disabled", "redis_url", cfg.RedisURL)
	}

	return db, r, nil
}
