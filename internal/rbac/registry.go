package rbac

// Permission groups composed into role sets. Composition is explicit rather
// than inherited so each role's grant list is auditable on its own.

var creatorPerms = []Permission{
	PermAccessCreatorAdmin,
	PermViewProposals,
	PermCreateProposals,
	PermManageOwnProposals,
	PermViewCreatorAnalytics,
	PermManageAssetUpdates,
}

// creatorOversightPerms is the creator surface visible to platform operators.
// It deliberately excludes PermAccessCreatorAdmin; see the carve-out below.
var creatorOversightPerms = []Permission{
	PermViewProposals,
	PermCreateProposals,
	PermManageOwnProposals,
	PermViewCreatorAnalytics,
	PermManageAssetUpdates,
}

var platformPerms = []Permission{
	PermAccessPlatformAdmin,
	PermApproveProposals,
	PermManageUsers,
	PermManageCompliance,
	PermManageLaunchpad,
	PermViewPlatformAnalytics,
	PermManagePlatformConfig,
	PermManageFeatureToggles,
}

var ownerPerms = []Permission{
	PermManageSuperAdmins,
	PermManageAdminRoles,
	PermViewAuditLog,
	PermEmergencyControls,
}

// rolePermissions maps each role to its full grant list.
//
// platform_admin carries access_creator_admin as an explicit, intentional
// carve-out: it is not implied by the oversight group and product confirmed
// platform operators must be able to enter the creator admin area. Do not
// remove it to "clean up" the hierarchy.
var rolePermissions = map[Role]PermissionSet{
	RoleCreator: NewPermissionSet(creatorPerms...),
	RolePlatformAdmin: NewPermissionSet(append(
		compose(creatorOversightPerms, platformPerms),
		PermAccessCreatorAdmin, // carve-out, see above
	)...),
	RoleOwner: NewPermissionSet(append(
		compose(creatorOversightPerms, platformPerms, ownerPerms),
		PermAccessCreatorAdmin,
	)...),
}

func compose(groups ...[]Permission) []Permission {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	out := make([]Permission, 0, total)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// PermissionsFor resolves the grant set for a role. Pure and total: unknown
// or non-admin roles resolve to the empty set, never an error.
func PermissionsFor(role Role) PermissionSet {
	set, ok := rolePermissions[role]
	if !ok {
		return PermissionSet{}
	}
	return set.Clone()
}

// RoleHas reports whether role's resolved set grants p.
func RoleHas(role Role, p Permission) bool {
	return rolePermissions[role].Has(p)
}
