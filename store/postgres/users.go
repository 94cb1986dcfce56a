// Package postgres implements the engine's user persistence port on
// PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookly/authcore"
	"github.com/bookly/authcore/authz"
)

const uniqueViolation = "23505"

// UserStore persists users in the users table. Soft-deleted rows are
// invisible to every query.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, username, email, first_name, last_name, role,
	password_hash, is_active, is_verified, last_login_at, created_at, updated_at`

func (s *UserStore) scanUser(row pgx.Row) (authcore.UserRecord, error) {
	var (
		u         authcore.UserRecord
		role      string
		lastLogin *time.Time
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &role,
		&u.PasswordHash, &u.IsActive, &u.IsVerified, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, fmt.Errorf("scan user: %w", err)
	}

	u.Role, err = authz.ParseRole(role)
	if err != nil {
		return authcore.UserRecord{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if lastLogin != nil {
		u.LastLoginAt = *lastLogin
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (authcore.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+`
		FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email)
	return s.scanUser(row)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (authcore.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+`
		FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return s.scanUser(row)
}

func (s *UserStore) Create(ctx context.Context, in authcore.CreateUserInput) (authcore.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `INSERT INTO users
		(username, email, first_name, last_name, role, password_hash, is_active, is_verified)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		in.Username, in.Email, in.FirstName, in.LastName, in.Role.String(),
		in.PasswordHash, in.IsActive, in.IsVerified)

	user, err := s.scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authcore.UserRecord{}, authcore.ErrUserExists
		}
		return authcore.UserRecord{}, err
	}
	return user, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, hash)
}

func (s *UserStore) UpdateEmail(ctx context.Context, id, email string) error {
	err := s.exec(ctx, `UPDATE users SET email = lower($2), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, email)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return authcore.ErrUserExists
	}
	return err
}

func (s *UserStore) SetVerified(ctx context.Context, id string, verified bool) error {
	return s.exec(ctx, `UPDATE users SET is_verified = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, verified)
}

func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.exec(ctx, `UPDATE users SET is_active = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, active)
}

func (s *UserStore) UpdateRole(ctx context.Context, id string, role authz.Role) error {
	return s.exec(ctx, `UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, role.String())
}

func (s *UserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, `UPDATE users SET last_login_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, at)
}

func (s *UserStore) SoftDelete(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE users SET deleted_at = now(), is_active = false
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (s *UserStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users
		WHERE role = 'admin' AND is_active AND deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func (s *UserStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}
