package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type is the declared purpose of a token. Verification always checks
// the declared type against the expected one so that, for example, a
// password-reset token can never be presented as an access token.
type Type string

const (
	// TypeAccess is a short-lived bearer token for API access.
	TypeAccess Type = "access"
	// TypeRefresh is a long-lived token exchanged for new token pairs.
	TypeRefresh Type = "refresh"
	// TypeEmailVerification proves ownership of a registered address.
	TypeEmailVerification Type = "email_verification"
	// TypePasswordReset authorizes a single password reset.
	TypePasswordReset Type = "password_reset"
	// TypeEmailChange authorizes changing the account email address.
	TypeEmailChange Type = "email_change"
)

// Valid reports whether t is a known token type.
func (t Type) Valid() bool {
	switch t {
	case TypeAccess, TypeRefresh, TypeEmailVerification, TypePasswordReset, TypeEmailChange:
		return true
	}
	return false
}

var (
	// ErrInvalid covers structurally broken tokens, bad signatures, and
	// wrong issuer/audience claims.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned for tokens past their expiry, distinct from
	// ErrInvalid so callers can prompt a re-login instead of rejecting
	// the request as malformed.
	ErrExpired = errors.New("token expired")
	// ErrTypeMismatch is returned when the declared token type does not
	// match the expected one.
	ErrTypeMismatch = errors.New("token type invalid")
	// ErrRevoked is returned for blacklisted tokens.
	ErrRevoked = errors.New("token revoked")
	// ErrRevocationUnavailable is returned under fail-secure policy when
	// the revocation store cannot be reached.
	ErrRevocationUnavailable = errors.New("token revocation store unavailable")
)

// RevocationStore tracks revoked token identifiers. Entries carry a TTL
// equal to the remaining lifetime of the token they protect.
type RevocationStore interface {
	Put(ctx context.Context, jti, reason string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// Config holds codec settings. A Config is fixed at construction time.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	DefaultTTL time.Duration
	Leeway     time.Duration

	RevocationEnabled bool
	// FailSecure controls behavior when the revocation store is down
	// during verification: true denies access, false logs and treats the
	// token as not revoked. Failing open trades a revocation gap for
	// availability and must be an explicit choice.
	FailSecure bool
}

// Codec creates and verifies signed tokens. Tokens are stateless; a
// token is valid when its signature and registered claims check out and
// its jti is absent from the revocation store.
type Codec struct {
	config Config
	store  RevocationStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewCodec validates cfg and returns a [Codec]. A revocation store is
// required when revocation is enabled.
func NewCodec(cfg Config, store RevocationStore, logger zerolog.Logger) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.DefaultTTL <= 0 {
		return nil, errors.New("token TTLs must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token leeway must be between 0 and 2m")
	}
	if cfg.RevocationEnabled && store == nil {
		return nil, errors.New("revocation enabled without a revocation store")
	}

	return &Codec{
		config: cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Claims is the decoded claim set of a token.
type Claims struct {
	Subject   string
	Type      Type
	ID        string // jti
	Issuer    string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// reservedClaims are never overridable by caller-supplied extra claims.
var reservedClaims = map[string]struct{}{
	"sub": {}, "exp": {}, "iat": {}, "nbf": {},
	"iss": {}, "aud": {}, "jti": {}, "type": {},
}

// Create signs a token for subject with the given type. A zero
// ttlOverride selects the configured default for the type (negative
// values are honored, which produces an already-expired token). Extra
// claims are merged in; reserved claim names are silently dropped.
func (c *Codec) Create(subject string, typ Type, ttlOverride time.Duration, extra map[string]any) (string, error) {
	if subject == "" {
		return "", errors.New("token subject required")
	}
	if !typ.Valid() {
		return "", fmt.Errorf("unknown token type %q", typ)
	}

	ttl := ttlOverride
	if ttl == 0 {
		switch typ {
		case TypeAccess:
			ttl = c.config.AccessTTL
		case TypeRefresh:
			ttl = c.config.RefreshTTL
		default:
			ttl = c.config.DefaultTTL
		}
	}

	now := c.now().UTC()
	claims := jwt.MapClaims{
		"sub":  subject,
		"exp":  jwt.NewNumericDate(now.Add(ttl)),
		"iat":  jwt.NewNumericDate(now),
		"nbf":  jwt.NewNumericDate(now),
		"iss":  c.config.Issuer,
		"aud":  c.config.Audience,
		"jti":  uuid.NewString(),
		"type": string(typ),
	}
	for k, v := range extra {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		claims[k] = v
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
}

// Verify decodes and validates a token, expecting the given type.
// Failure modes, in order: structurally invalid, bad signature, or
// wrong issuer/audience tokens return [ErrInvalid]; expired tokens
// return [ErrExpired]; a type mismatch returns [ErrTypeMismatch]; with
// revocation enabled, a missing jti returns [ErrInvalid] and a
// blacklisted jti returns [ErrRevoked]. Timestamps are compared in UTC
// with the configured leeway (none by default).
func (c *Codec) Verify(ctx context.Context, tokenStr string, expected Type) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalid)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithAudience(c.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	}
	if c.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(c.config.Leeway))
	}

	parsed, err := jwt.NewParser(opts...).Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}

	claims := claimsFromMap(mapClaims)
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrTypeMismatch, expected, claims.Type)
	}

	if c.config.RevocationEnabled {
		if claims.ID == "" {
			return nil, fmt.Errorf("%w: missing jti claim", ErrInvalid)
		}
		revoked, err := c.store.Contains(ctx, claims.ID)
		if err != nil {
			if c.config.FailSecure {
				return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
			}
			c.logger.Warn().Err(err).
				Str("jti", claims.ID).
				Msg("revocation check failed, treating token as not revoked")
		} else if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// Revoke blacklists a token for the remainder of its lifetime. The
// token is decoded without signature or expiry verification: revoking
// an already-expired token is a successful no-op, and a token that
// cannot be decoded or lacks jti/exp claims returns false. Revocation
// is best-effort cleanup, so store failures also return false rather
// than an error.
func (c *Codec) Revoke(ctx context.Context, tokenStr, reason string) bool {
	if !c.config.RevocationEnabled {
		return false
	}

	claims := c.DecodeUnsafe(tokenStr)
	if claims == nil || claims.ID == "" || claims.ExpiresAt.IsZero() {
		return false
	}

	remaining := claims.ExpiresAt.Sub(c.now().UTC())
	if remaining <= 0 {
		return true // nothing left to revoke
	}

	if err := c.store.Put(ctx, claims.ID, reason, remaining); err != nil {
		c.logger.Error().Err(err).
			Str("jti", claims.ID).
			Msg("failed to write revocation entry")
		return false
	}

	c.logger.Info().Str("jti", claims.ID).Str("reason", reason).Msg("token revoked")
	return true
}

// IsRevoked checks the revocation store for a jti, applying the
// configured fail-secure policy on store failure.
func (c *Codec) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if !c.config.RevocationEnabled {
		return false, nil
	}

	revoked, err := c.store.Contains(ctx, jti)
	if err != nil {
		if c.config.FailSecure {
			return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		c.logger.Warn().Err(err).Str("jti", jti).Msg("revocation check failed")
		return false, nil
	}
	return revoked, nil
}

// DecodeUnsafe decodes a token without verifying its signature or
// expiry, returning nil on any decode failure. For diagnostics and
// logging only; it must never gate an authorization decision.
func (c *Codec) DecodeUnsafe(tokenStr string) *Claims {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	return claimsFromMap(mapClaims)
}

func claimsFromMap(mc jwt.MapClaims) *Claims {
	out := &Claims{Extra: make(map[string]any)}

	out.Subject, _ = mc["sub"].(string)
	out.ID, _ = mc["jti"].(string)
	out.Issuer, _ = mc["iss"].(string)
	if typ, ok := mc["type"].(string); ok {
		out.Type = Type(typ)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}
	if nbf, err := mc.GetNotBefore(); err == nil && nbf != nil {
		out.NotBefore = nbf.Time.UTC()
	}

	for k, v := range mc {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		out.Extra[k] = v
	}

	return out
}
