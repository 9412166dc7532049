package bootstrap

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/availability"
	"github.com/wolfman30/ayurwell-scheduler/internal/booking"
	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Stores groups the persistence backends selected by STORE_BACKEND.
type Stores struct {
	Backend      string
	Directory    directory.Repository
	Appointments appointments.Store
	Processed    events.ProcessedEvents
}

// BuildStores picks memory or Postgres persistence. The postgres backend
// requires a pool.
func BuildStores(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.Default()
	}
	backend := "memory"
	if cfg != nil && cfg.StoreBackend != "" {
		backend = cfg.StoreBackend
	}

	switch backend {
	case "memory":
		logger.Warn("using in-memory stores; data is lost on restart")
		return &Stores{
			Backend:      backend,
			Directory:    directory.NewInMemoryRepository(),
			Appointments: appointments.NewMemoryStore(),
			Processed:    events.NewMemoryProcessedStore(),
		}, nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: STORE_BACKEND=postgres requires DATABASE_URL")
		}
		return &Stores{
			Backend:   backend,
			Directory: directory.NewPostgresRepository(pool),
			Appointments: appointments.NewPostgresStore(pool,
				appointments.WithRetry(cfg.StoreCreateRetries, cfg.StoreRetryBaseDelay),
				appointments.WithStoreLogger(logger),
			),
			Processed: events.NewProcessedStore(pool),
		}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown STORE_BACKEND %q", backend)
	}
}

// BuildAvailabilityCache prefers Redis so every API replica sees the same
// invalidations; without Redis it falls back to a per-process cache.
func BuildAvailabilityCache(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) availability.Cache {
	ttl := cfg.AvailabilityCacheTTL
	if redisClient != nil {
		return availability.NewRedisCache(redisClient, ttl)
	}
	if logger != nil {
		logger.Info("redis not configured, availability cache is per-process")
	}
	return availability.NewMemoryCache(ttl)
}

// BuildBookingLimiter returns the hourly velocity limiter, or nil when the
// limit is disabled or Redis is unavailable.
func BuildBookingLimiter(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) booking.Limiter {
	if cfg == nil || cfg.BookingRateLimitPerHour <= 0 {
		return nil
	}
	if redisClient == nil {
		if logger != nil {
			logger.Warn("booking rate limit configured without redis; limit disabled")
		}
		return nil
	}
	return booking.NewVelocityLimiter(redisClient, cfg.BookingRateLimitPerHour, time.Hour, logger)
}
