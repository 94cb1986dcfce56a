package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookly/authcore/internal/rate"
	"github.com/bookly/authcore/password"
	"github.com/bookly/authcore/token"
)

// Engine is the authentication core. All methods are safe for
// concurrent use once built.
type Engine struct {
	config  Config
	users   UserStore
	hasher  *password.Hasher
	codec   *token.Codec
	limiter *rate.Limiter
	logger  zerolog.Logger
	audit   *auditDispatcher
	metrics *Metrics
}

// Metrics exposes the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Close flushes the audit dispatcher. Call during shutdown.
func (e *Engine) Close() {
	e.audit.Close()
}

func (e *Engine) emit(ctx context.Context, eventType, userID string, success bool, err error, metadata map[string]string) {
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)
}

// checkLoginLimit applies the per-IP failed-login gate. Limiter outages
// are logged and fail open: only the revocation store is fail-secure.
func (e *Engine) checkLoginLimit(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	limited, err := e.limiter.IsLimited(ctx, ip)
	if err != nil {
		e.logger.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable, allowing request")
		return nil
	}
	if limited {
		e.metrics.inc(MetricLoginRateLimited)
		return ErrLoginRateLimited
	}
	return nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, ip string) {
	if ip == "" {
		return
	}
	if err := e.limiter.RecordFailure(ctx, ip); err != nil {
		e.logger.Warn().Err(err).Str("ip", ip).Msg("failed to record login failure")
	}
}

func (e *Engine) clearLoginFailures(ctx context.Context, ip string) {
	if ip == "" {
		return
	}
	if err := e.limiter.Clear(ctx, ip); err != nil {
		e.logger.Warn().Err(err).Str("ip", ip).Msg("failed to clear login failures")
	}
}

// activeUserByID fetches a user and rejects deactivated accounts.
func (e *Engine) activeUserByID(ctx context.Context, id string) (UserRecord, error) {
	user, err := e.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, err
	}
	if !user.IsActive {
		return UserRecord{}, ErrInactiveUser
	}
	return user, nil
}
