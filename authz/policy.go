package authz

import "errors"

// Authorization failures are deliberately uniform: callers map every
// one of them to the same forbidden response, so the errors carry no
// detail about which gate rejected the request beyond the composite
// rules that need their own client messaging.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrLastAdmin     = errors.New("cannot remove the last admin")
	ErrOwnAccount    = errors.New("cannot target own account through admin path")
	ErrOwnReview     = errors.New("cannot vote on own review")
)

// Actor is the minimal view of an authenticated user that
// authorization decisions need.
type Actor struct {
	ID     string
	Role   Role
	Active bool
}

// RequireRole gates an action on the role hierarchy. Inactive actors
// never pass, regardless of role.
func RequireRole(actor Actor, required Role) error {
	if !actor.Active || !actor.Role.Valid() {
		return ErrNotAuthorized
	}
	if !actor.Role.AtLeast(required) {
		return ErrNotAuthorized
	}
	return nil
}

// RequireOwnerOrAdmin gates mutations on owned resources: the resource
// owner may proceed, admins bypass the ownership check.
func RequireOwnerOrAdmin(actor Actor, ownerID string) error {
	if !actor.Active || !actor.Role.Valid() {
		return ErrNotAuthorized
	}
	if actor.Role == RoleAdmin {
		return nil
	}
	if actor.ID != ownerID {
		return ErrNotAuthorized
	}
	return nil
}

// CanDeactivateUser checks the admin-only user-deactivation path. The
// last remaining admin cannot be deactivated.
func CanDeactivateUser(actor Actor, target Actor, adminCount int) error {
	if err := RequireRole(actor, RoleAdmin); err != nil {
		return err
	}
	if target.Role == RoleAdmin && adminCount <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// CanDeleteUser checks the admin-only user-deletion path. Admins must
// use the self-service path for their own account, and the last admin
// cannot be deleted.
func CanDeleteUser(actor Actor, target Actor, adminCount int) error {
	if err := RequireRole(actor, RoleAdmin); err != nil {
		return err
	}
	if actor.ID == target.ID {
		return ErrOwnAccount
	}
	if target.Role == RoleAdmin && adminCount <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// CanChangeRole checks role changes. Demoting the last admin would
// leave the system without one.
func CanChangeRole(actor Actor, target Actor, newRole Role, adminCount int) error {
	if err := RequireRole(actor, RoleAdmin); err != nil {
		return err
	}
	if !newRole.Valid() {
		return ErrNotAuthorized
	}
	if target.Role == RoleAdmin && newRole != RoleAdmin && adminCount <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// CanVoteOnReview rejects votes cast by the review's author.
func CanVoteOnReview(actor Actor, reviewAuthorID string) error {
	if !actor.Active || !actor.Role.Valid() {
		return ErrNotAuthorized
	}
	if actor.ID == reviewAuthorID {
		return ErrOwnReview
	}
	return nil
}
