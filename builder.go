package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bookly/authcore/internal/rate"
	"github.com/bookly/authcore/password"
	"github.com/bookly/authcore/revocation"
	"github.com/bookly/authcore/token"
)

// Builder assembles an [Engine]. Configure during initialization, call
// Build once, then treat the engine as immutable.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	users  UserStore
	logger zerolog.Logger
	sink   AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration. Call before other
// With* methods that touch config fields.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the JWT signing secret.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.JWT.Secret = cloneBytes(secret)
	return b
}

// WithRedis sets the Redis client backing revocation and rate limiting.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the persistence port.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the subsystems, and returns
// the engine. A builder can only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	revocationStore := revocation.NewStore(b.redis)

	codec, err := token.NewCodec(token.Config{
		Secret:            cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
		AccessTTL:         cfg.JWT.AccessTTL,
		RefreshTTL:        cfg.JWT.RefreshTTL,
		DefaultTTL:        cfg.JWT.DefaultTTL,
		Leeway:            cfg.JWT.Leeway,
		RevocationEnabled: cfg.Security.RevocationEnabled,
		FailSecure:        cfg.Security.FailSecure,
	}, revocationStore, b.logger)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		users:   b.users,
		hasher:  hasher,
		codec:   codec,
		logger:  b.logger,
		audit:   newAuditDispatcher(cfg.Audit, b.sink),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.limiter = rate.New(b.redis, rate.Config{
		MaxFailures: cfg.Security.MaxLoginFailures,
		Window:      cfg.Security.LoginFailureWindow,
	})

	b.built = true

	return engine, nil
}
