package rbac

// Role is the closed set of admin privilege levels. Roles are fixed at
// compile time and are not extensible at runtime.
type Role int

const (
	// RoleNone means no admin privileges (regular investor or no selection).
	RoleNone Role = iota
	RoleCreator
	RolePlatformAdmin
	RoleOwner
)

const (
	roleNoneStr          = "none"
	roleCreatorStr       = "creator"
	rolePlatformAdminStr = "platform_admin"
	roleOwnerStr         = "owner"

	// Historical alias: super_admin was merged into platform_admin.
	roleSuperAdminStr = "super_admin"
)

// String returns the wire/storage representation of the role.
func (r Role) String() string {
	switch r {
	case RoleCreator:
		return roleCreatorStr
	case RolePlatformAdmin:
		return rolePlatformAdminStr
	case RoleOwner:
		return roleOwnerStr
	default:
		return roleNoneStr
	}
}

// IsAdmin reports whether the role carries any admin privileges.
func (r Role) IsAdmin() bool {
	return r == RoleCreator || r == RolePlatformAdmin || r == RoleOwner
}

// ParseRole maps a wire/storage string to a Role. Unknown strings and the
// investor pseudo-role resolve to RoleNone (fail-closed).
func ParseRole(s string) Role {
	switch s {
	case roleCreatorStr:
		return RoleCreator
	case rolePlatformAdminStr, roleSuperAdminStr:
		return RolePlatformAdmin
	case roleOwnerStr:
		return RoleOwner
	default:
		return RoleNone
	}
}

// MarshalText implements encoding.TextMarshaler so roles serialize as their
// string form inside persisted sessions and API payloads.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
