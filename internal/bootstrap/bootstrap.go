// Package bootstrap wires the pieces both binaries share: logging and the
// store backend.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/cache"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/cloud"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/config"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/database"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

// Logging configures the global logger from LOG_LEVEL.
func Logging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(config.LogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// OpenStore connects the backend named by STORE_BACKEND.
func OpenStore(ctx context.Context) (repository.Store, error) {
	switch backend := config.StoreBackend(); backend {
	case "postgres", "":
		db, err := database.Connect(config.DBDSN())
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.New(db), nil
	case "dynamodb":
		return cloud.NewDynamoStore(ctx, config.AWSRegion(), config.DeviceID(),
			config.DynamoReadingsTable(), config.DynamoAlertsTable())
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

// OpenCache returns nil when REDIS_ADDR is unset. An unreachable Redis is
// logged and skipped; queries then always hit the store.
func OpenCache(ctx context.Context) cache.Cache {
	addr := config.RedisAddr()
	if addr == "" {
		return nil
	}
	r := cache.NewRedis(addr)
	if err := r.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis unavailable; aggregate cache disabled")
		r.Close()
		return nil
	}
	return r
}
