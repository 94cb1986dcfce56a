package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/bookly/authcore/token"
)

// countsAsAuthFailure reports whether a verification error represents a
// bad token presented by the caller rather than an infrastructure
// failure. Only caller mistakes count toward the brute-force threshold.
func countsAsAuthFailure(err error) bool {
	return !errors.Is(err, ErrRevocationUnavailable)
}

// VerifyAccess verifies a bearer token as an access token, including
// the revocation check. Errors follow the codec taxonomy: ErrInvalid,
// ErrExpired, ErrTypeMismatch, ErrRevoked, ErrRevocationUnavailable.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*token.Claims, error) {
	claims, err := e.codec.Verify(ctx, accessToken, token.TypeAccess)
	if err != nil {
		e.metrics.inc(MetricVerifyFailure)
		return nil, err
	}
	return claims, nil
}

// CurrentUser resolves a bearer token to its live user record. Invalid
// tokens count against the caller's IP the same way failed logins do,
// so token guessing hits the same wall as password guessing.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (UserRecord, error) {
	ip := clientIPFromContext(ctx)

	if err := e.checkLoginLimit(ctx, ip); err != nil {
		return UserRecord{}, err
	}

	claims, err := e.VerifyAccess(ctx, accessToken)
	if err != nil {
		if countsAsAuthFailure(err) {
			e.recordLoginFailure(ctx, ip)
		}
		return UserRecord{}, err
	}

	user, err := e.activeUserByID(ctx, claims.Subject)
	if err != nil {
		return UserRecord{}, err
	}

	e.clearLoginFailures(ctx, ip)

	return user, nil
}

// Logout revokes both tokens of a pair. Best-effort: an expired or
// already-revoked token does not fail the logout.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) {
	userID := ""
	if claims := e.codec.DecodeUnsafe(accessToken); claims != nil {
		userID = claims.Subject
	}

	success := true
	metadata := make(map[string]string, 2)
	if accessToken != "" {
		ok := e.codec.Revoke(ctx, accessToken, "logout")
		if ok {
			e.metrics.inc(MetricTokensRevoked)
		} else {
			success = false
		}
		metadata["access_revoked"] = strconv.FormatBool(ok)
	}
	if refreshToken != "" {
		ok := e.codec.Revoke(ctx, refreshToken, "logout")
		if ok {
			e.metrics.inc(MetricTokensRevoked)
		} else {
			success = false
		}
		metadata["refresh_revoked"] = strconv.FormatBool(ok)
	}

	e.emit(ctx, EventLogout, userID, success, nil, metadata)
}

// Refresh exchanges a valid refresh token for a new pair. The used
// refresh token is revoked, so each refresh token works exactly once.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := e.codec.Verify(ctx, refreshToken, token.TypeRefresh)
	if err != nil {
		e.metrics.inc(MetricVerifyFailure)
		e.emit(ctx, EventRefresh, "", false, err, nil)
		return TokenPair{}, err
	}

	user, err := e.activeUserByID(ctx, claims.Subject)
	if err != nil {
		e.emit(ctx, EventRefresh, claims.Subject, false, err, nil)
		return TokenPair{}, err
	}

	if e.codec.Revoke(ctx, refreshToken, "refresh_rotation") {
		e.metrics.inc(MetricTokensRevoked)
	}

	return e.issuePair(ctx, user, EventRefresh)
}

// RevokeToken blacklists an arbitrary token for the rest of its
// lifetime. Returns false when the token cannot be decoded or the
// revocation entry cannot be written.
func (e *Engine) RevokeToken(ctx context.Context, tokenStr, reason string) bool {
	ok := e.codec.Revoke(ctx, tokenStr, reason)
	if ok {
		e.metrics.inc(MetricTokensRevoked)
		userID := ""
		if claims := e.codec.DecodeUnsafe(tokenStr); claims != nil {
			userID = claims.Subject
		}
		e.emit(ctx, EventTokenRevoked, userID, true, nil, map[string]string{"reason": reason})
	}
	return ok
}

// IsRevoked checks the revocation store for a jti.
func (e *Engine) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return e.codec.IsRevoked(ctx, jti)
}
