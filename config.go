package authcore

import (
	"errors"
	"fmt"
	"time"
)

// JWTConfig holds token-signing settings.
type JWTConfig struct {
	// Secret signs HS256 tokens and must be at least 32 bytes.
	Secret   []byte
	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// DefaultTTL applies to email-verification, password-reset, and
	// email-change tokens.
	DefaultTTL time.Duration
	// Leeway tolerates clock skew during expiry checks, capped at 2m.
	Leeway time.Duration
}

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityConfig holds brute-force and revocation policy.
type SecurityConfig struct {
	// MaxLoginFailures is the per-IP failed-attempt threshold.
	MaxLoginFailures int
	// LoginFailureWindow is the fixed counting window.
	LoginFailureWindow time.Duration

	RevocationEnabled bool
	// FailSecure denies verification when the revocation store is
	// unreachable. Disable only where availability outranks the
	// revocation guarantee.
	FailSecure bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the caller when the
	// buffer is saturated.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// Config is the engine configuration. Fixed once the engine is built.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "bookly-api",
			Audience:   "bookly-api:users",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			DefaultTTL: time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			MaxLoginFailures:   5,
			LoginFailureWindow: time.Hour,
			RevocationEnabled:  true,
			FailSecure:         true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot run
// with. Password parameters are validated separately by the hasher.
func (c Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("config: JWT secret must be at least 32 bytes")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		return errors.New("config: JWT issuer and audience required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.DefaultTTL <= 0 {
		return errors.New("config: token TTLs must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("config: JWT leeway must be between 0 and 2m")
	}
	if c.Security.MaxLoginFailures <= 0 {
		return errors.New("config: max login failures must be > 0")
	}
	if c.Security.LoginFailureWindow <= 0 {
		return errors.New("config: login failure window must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return fmt.Errorf("config: audit buffer size %d is negative", c.Audit.BufferSize)
	}
	return nil
}

// cloneConfig deep-copies the secret so later mutation of the caller's
// slice cannot change signing behavior.
func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
