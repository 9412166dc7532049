package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Limiter decides whether a patient may attempt another booking.
type Limiter interface {
	Allow(ctx context.Context, patientID string) (bool, error)
}

// VelocityLimiter caps booking attempts per patient in a rolling window
// using a Redis counter. When Redis is unreachable it fails open.
type VelocityLimiter struct {
	redis  *redis.Client
	logger *logging.Logger
	max    int
	window time.Duration
}

// NewVelocityLimiter allows max attempts per window. max <= 0 disables the check.
func NewVelocityLimiter(client *redis.Client, max int, window time.Duration, logger *logging.Logger) *VelocityLimiter {
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = time.Hour
	}
	return &VelocityLimiter{redis: client, logger: logger, max: max, window: window}
}

func (v *VelocityLimiter) Allow(ctx context.Context, patientID string) (bool, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.velocity_check")
	defer span.End()
	span.SetAttributes(attribute.String("ayurwell.patient_id", patientID))

	if v == nil || v.redis == nil || v.max <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("velocity:booking:%s", patientID)
	count, err := v.increment(ctx, key)
	if err != nil {
		v.logger.Error("booking velocity check failed", "error", err, "key", key)
		return true, nil
	}
	if count > int64(v.max) {
		v.logger.Warn("booking velocity exceeded", "patient_id", patientID, "count", count, "max", v.max)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
		return false, nil
	}
	return true, nil
}

func (v *VelocityLimiter) increment(ctx context.Context, key string) (int64, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// Set expiry on first attempt
	if count == 1 {
		v.redis.Expire(ctx, key, v.window)
	}
	return count, nil
}
