package authcore

import (
	"context"

	"github.com/bookly/authcore/authz"
)

// User administration. Every operation here is gated by the composite
// rules in package authz, which consult the live admin count so the
// system can never lose its last admin.

// DeactivateUser disables the target account. Admin only; the last
// remaining admin cannot be deactivated.
func (e *Engine) DeactivateUser(ctx context.Context, actor UserRecord, targetID string) error {
	target, err := e.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	adminCount, err := e.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if err := authz.CanDeactivateUser(actor.Actor(), target.Actor(), adminCount); err != nil {
		e.emit(ctx, EventUserDeactivated, target.ID, false, err, nil)
		return err
	}

	if err := e.users.SetActive(ctx, target.ID, false); err != nil {
		return err
	}

	e.emit(ctx, EventUserDeactivated, target.ID, true, nil, map[string]string{"actor_id": actor.ID})
	return nil
}

// DeleteUser soft-deletes the target account. Admin only; admins must
// use the self-service path for their own account, and the last admin
// cannot be deleted.
func (e *Engine) DeleteUser(ctx context.Context, actor UserRecord, targetID string) error {
	target, err := e.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	adminCount, err := e.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if err := authz.CanDeleteUser(actor.Actor(), target.Actor(), adminCount); err != nil {
		e.emit(ctx, EventUserDeleted, target.ID, false, err, nil)
		return err
	}

	if err := e.users.SoftDelete(ctx, target.ID); err != nil {
		return err
	}

	e.emit(ctx, EventUserDeleted, target.ID, true, nil, map[string]string{"actor_id": actor.ID})
	return nil
}

// ChangeUserRole moves the target to a new role. Admin only; demoting
// the last admin is rejected.
func (e *Engine) ChangeUserRole(ctx context.Context, actor UserRecord, targetID string, newRole authz.Role) error {
	target, err := e.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	adminCount, err := e.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if err := authz.CanChangeRole(actor.Actor(), target.Actor(), newRole, adminCount); err != nil {
		e.emit(ctx, EventRoleChanged, target.ID, false, err, nil)
		return err
	}

	if err := e.users.UpdateRole(ctx, target.ID, newRole); err != nil {
		return err
	}

	e.emit(ctx, EventRoleChanged, target.ID, true, nil, map[string]string{
		"actor_id": actor.ID,
		"new_role": newRole.String(),
	})
	return nil
}
