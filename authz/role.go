package authz

import "fmt"

// Role is the ordered role hierarchy. The zero value is invalid so a
// forgotten assignment never silently grants access.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleModerator
	RoleAdmin
)

// Priority returns the role's position in the hierarchy. Comparisons
// always go through Priority rather than the raw enum values.
func (r Role) Priority() int {
	switch r {
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r.Priority() > 0
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	return r.Priority() >= required.Priority()
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole maps the wire/storage representation back to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "moderator":
		return RoleModerator, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
