package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked_token:"

// ErrUnavailable wraps Redis transport failures so callers can apply
// their fail-secure or fail-open policy.
var ErrUnavailable = errors.New("revocation store unavailable")

// Store is a Redis-backed revocation list. Entries self-expire through
// Redis TTLs; there is no explicit delete path in normal operation.
type Store struct {
	redis redis.UniversalClient
}

// NewStore creates a [Store] backed by the given Redis client. The
// client must be configured with bounded dial/read timeouts so a hung
// store surfaces as a denial within bounded time under fail-secure
// verification.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

// Put records a revoked jti with the given reason. The TTL must equal
// the remaining lifetime of the token: longer would grow the store
// without bound, shorter would resurrect a revoked token before its
// natural expiry. Non-positive TTLs are a no-op.
func (s *Store) Put(ctx context.Context, jti, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, keyPrefix+jti, reason, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Contains reports whether jti is currently revoked.
func (s *Store) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Reason returns the stored revocation reason for a jti, with ok=false
// when the jti is not revoked.
func (s *Store) Reason(ctx context.Context, jti string) (string, bool, error) {
	reason, err := s.redis.Get(ctx, keyPrefix+jti).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reason, true, nil
}
