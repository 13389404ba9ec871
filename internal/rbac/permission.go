package rbac

import "sort"

// Permission is an opaque capability token. Permissions are granted through
// role membership, never inferred from naming.
type Permission string

const (
	// Creator surface
	PermAccessCreatorAdmin   Permission = "access_creator_admin"
	PermViewProposals        Permission = "view_proposals"
	PermCreateProposals      Permission = "create_proposals"
	PermManageOwnProposals   Permission = "manage_own_proposals"
	PermViewCreatorAnalytics Permission = "view_creator_analytics"
	PermManageAssetUpdates   Permission = "manage_asset_updates"

	// Platform surface
	PermAccessPlatformAdmin   Permission = "access_platform_admin"
	PermApproveProposals      Permission = "approve_proposals"
	PermManageUsers           Permission = "manage_users"
	PermManageCompliance      Permission = "manage_compliance"
	PermManageLaunchpad       Permission = "manage_launchpad"
	PermViewPlatformAnalytics Permission = "view_platform_analytics"
	PermManagePlatformConfig  Permission = "manage_platform_config"
	PermManageFeatureToggles  Permission = "manage_feature_toggles"

	// Owner surface
	PermManageSuperAdmins Permission = "manage_super_admins"
	PermManageAdminRoles  Permission = "manage_admin_roles"
	PermViewAuditLog      Permission = "view_audit_log"
	PermEmergencyControls Permission = "emergency_controls"
)

// PermissionSet is a set of granted permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// PermissionSetFromStrings builds a set from raw permission strings, e.g.
// the permission list returned by the remote authority.
func PermissionSetFromStrings(perms []string) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[Permission(p)] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set. Safe on a nil set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// SubsetOf reports whether every permission in s is also in other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// List returns the permissions in sorted order, for stable serialization.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}
