package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookly/authcore/authz"
	"github.com/bookly/authcore/token"
)

// Register creates a new account with the user role, active and
// unverified, and returns the record together with an
// email-verification token. Delivering the token is the caller's
// concern.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (UserRecord, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)

	if in.Email == "" || in.Username == "" {
		return UserRecord{}, "", errors.New("email and username required")
	}
	if len(in.Password) < 8 {
		return UserRecord{}, "", errors.New("password must be at least 8 characters")
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return UserRecord{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := e.users.Create(ctx, CreateUserInput{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         authz.RoleUser,
		IsActive:     true,
		IsVerified:   false,
	})
	if err != nil {
		e.emit(ctx, EventRegister, "", false, err, nil)
		return UserRecord{}, "", err
	}

	verifyToken, err := e.codec.Create(user.ID, token.TypeEmailVerification, 0, nil)
	if err != nil {
		return UserRecord{}, "", err
	}

	e.metrics.inc(MetricRegistrations)
	e.emit(ctx, EventRegister, user.ID, true, nil, nil)

	return user, verifyToken, nil
}

// RequestPasswordReset issues a password-reset token for the account,
// if one exists and is active. The boolean result tells the caller
// whether to actually send anything; callers must answer the request
// generically either way so the endpoint cannot enumerate accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, bool) {
	user, err := e.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || !user.IsActive {
		return "", false
	}

	resetToken, err := e.codec.Create(user.ID, token.TypePasswordReset, 0, nil)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to create reset token")
		return "", false
	}

	e.emit(ctx, EventPasswordReset, user.ID, true, nil, map[string]string{"stage": "requested"})
	return resetToken, true
}

// ResetPassword consumes a password-reset token and stores the new
// password. The token is revoked on success so it cannot be replayed.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := e.codec.Verify(ctx, resetToken, token.TypePasswordReset)
	if err != nil {
		e.emit(ctx, EventPasswordReset, "", false, err, nil)
		return err
	}

	user, err := e.activeUserByID(ctx, claims.Subject)
	if err != nil {
		return err
	}

	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	e.codec.Revoke(ctx, resetToken, "password_reset_used")
	e.emit(ctx, EventPasswordReset, user.ID, true, nil, map[string]string{"stage": "completed"})
	return nil
}

// ChangePassword updates the password of an authenticated user after
// re-verifying the current one. Reusing the current password is
// rejected.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, current, next string) error {
	user, err := e.CurrentUser(ctx, accessToken)
	if err != nil {
		return err
	}

	if !e.hasher.Verify(current, user.PasswordHash) {
		e.emit(ctx, EventPasswordChange, user.ID, false, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if current == next {
		return ErrPasswordReuse
	}
	if len(next) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	e.emit(ctx, EventPasswordChange, user.ID, true, nil, nil)
	return nil
}

// VerifyEmail consumes an email-verification token and marks the
// account verified. Verifying an already-verified account is a no-op.
func (e *Engine) VerifyEmail(ctx context.Context, verifyToken string) error {
	claims, err := e.codec.Verify(ctx, verifyToken, token.TypeEmailVerification)
	if err != nil {
		e.emit(ctx, EventEmailVerified, "", false, err, nil)
		return err
	}

	user, err := e.activeUserByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if !user.IsVerified {
		if err := e.users.SetVerified(ctx, user.ID, true); err != nil {
			return err
		}
	}

	e.codec.Revoke(ctx, verifyToken, "email_verification_used")
	e.emit(ctx, EventEmailVerified, user.ID, true, nil, nil)
	return nil
}

// RequestEmailChange issues an email-change token for the
// authenticated user. The new address travels in the token's claims,
// so nothing changes until the token is confirmed from the new
// mailbox.
func (e *Engine) RequestEmailChange(ctx context.Context, accessToken, newEmail string) (string, error) {
	user, err := e.CurrentUser(ctx, accessToken)
	if err != nil {
		return "", err
	}

	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" || newEmail == user.Email {
		return "", errors.New("a different email address is required")
	}

	changeToken, err := e.codec.Create(user.ID, token.TypeEmailChange, 0, map[string]any{
		"new_email": newEmail,
	})
	if err != nil {
		return "", err
	}

	e.emit(ctx, EventEmailChange, user.ID, true, nil, map[string]string{"stage": "requested"})
	return changeToken, nil
}

// ConfirmEmailChange consumes an email-change token and applies the
// address it carries. The account drops back to unverified until the
// new address passes verification.
func (e *Engine) ConfirmEmailChange(ctx context.Context, changeToken string) error {
	claims, err := e.codec.Verify(ctx, changeToken, token.TypeEmailChange)
	if err != nil {
		e.emit(ctx, EventEmailChange, "", false, err, nil)
		return err
	}

	newEmail, _ := claims.Extra["new_email"].(string)
	if newEmail == "" {
		return fmt.Errorf("%w: missing new_email claim", ErrInvalidToken)
	}

	user, err := e.activeUserByID(ctx, claims.Subject)
	if err != nil {
		return err
	}

	if err := e.users.UpdateEmail(ctx, user.ID, newEmail); err != nil {
		return err
	}
	if err := e.users.SetVerified(ctx, user.ID, false); err != nil {
		return err
	}

	e.codec.Revoke(ctx, changeToken, "email_change_used")
	e.emit(ctx, EventEmailChange, user.ID, true, nil, map[string]string{"stage": "completed"})
	return nil
}
