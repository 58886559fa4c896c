// Package bootstrap connects the runtime dependencies shared by the server and CLIs.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"chainhire/internal/cache"
	"chainhire/internal/config"
	"chainhire/internal/database"
	"chainhire/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedPlan, when set, fills an empty development database with demo data.
	SeedPlan *seed.Plan
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedPlan != nil {
		if err := seedIfEmpty(cfg, db, *opts.SeedPlan); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func seedIfEmpty(cfg *config.Config, db *gorm.DB, plan seed.Plan) error {
	if cfg.IsProduction() {
		log.Println("skipping demo seed in production")
		return nil
	}
	empty, err := seed.IsEmpty(db)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	_, err = seed.New(db, plan).Run(context.Background())
	return err
}
