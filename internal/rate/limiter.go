package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures. The engine
// decides whether a limiter outage fails open or closed.
var ErrRedisUnavailable = errors.New("rate limiter redis unavailable")

// Config holds brute-force guard tuning parameters.
type Config struct {
	MaxFailures int
	Window      time.Duration
}

// Limiter tracks failed-authentication counters per client identifier
// (normally an IP address) in Redis. Counters use fixed windows:
// INCR plus a conditional EXPIRE on the first failure, so concurrent
// failures from the same identifier are never undercounted.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: client, config: cfg}
}

// IsLimited reports whether the identifier has reached the failure
// threshold within the current window. Missing counters read as zero.
func (l *Limiter) IsLimited(ctx context.Context, identifier string) (bool, error) {
	count, err := l.Failures(ctx, identifier)
	if err != nil {
		return false, err
	}
	return count >= l.config.MaxFailures, nil
}

// RecordFailure increments the failure counter for the identifier,
// starting a fresh window when this is the first failure.
func (l *Limiter) RecordFailure(ctx context.Context, identifier string) error {
	count, err := l.redis.Incr(ctx, failureKey(identifier)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, failureKey(identifier), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Clear removes the failure counter entirely. Called after a
// successful authentication so a legitimate user is not penalized for
// earlier failures.
func (l *Limiter) Clear(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, failureKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Failures returns the current failure count for an identifier.
func (l *Limiter) Failures(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, failureKey(identifier)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func failureKey(identifier string) string {
	return "fla:" + identifier
}
