package authcore

import (
	"context"
	"time"

	"github.com/bookly/authcore/authz"
)

// UserRecord is the engine's view of a stored user account.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Role         authz.Role
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	LastLoginAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor converts the record into the minimal view authorization
// decisions operate on.
func (u UserRecord) Actor() authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Role, Active: u.IsActive}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput carries the fields a new registration supplies.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// CreateUserInput is the persisted shape of a new account: the engine
// has already hashed the password and fixed role and status flags.
type CreateUserInput struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         authz.Role
	IsActive     bool
	IsVerified   bool
}

// UserStore is the persistence port the engine drives. Implementations
// must return ErrUserNotFound for unknown IDs/emails and ErrUserExists
// for unique-constraint violations on create and email update.
// GetByEmail is case-insensitive.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (UserRecord, error)
	GetByID(ctx context.Context, id string) (UserRecord, error)
	Create(ctx context.Context, in CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	SetVerified(ctx context.Context, id string, verified bool) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateRole(ctx context.Context, id string, role authz.Role) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string) error
	CountAdmins(ctx context.Context) (int, error)
}
