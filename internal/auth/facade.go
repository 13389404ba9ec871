// Package auth is the public surface of the admin authentication subsystem.
// The rest of the application consumes admin identity and permissions
// exclusively through the Facade; it never touches the synchronizer, the
// store, or a strategy directly.
package auth

import (
	"context"

	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/session"
)

// Facade exposes the current admin snapshot, derived role checks, and the
// login/logout/refresh operations.
type Facade struct {
	manager *session.Manager
}

// NewFacade wraps a synchronizer.
func NewFacade(manager *session.Manager) *Facade {
	return &Facade{manager: manager}
}

// CurrentAdmin returns a snapshot of the current admin, or nil when no admin
// is authenticated.
func (f *Facade) CurrentAdmin() *identity.AdminUser {
	return f.manager.CurrentAdmin()
}

// IsAdmin reports whether any admin is currently authenticated.
func (f *Facade) IsAdmin() bool {
	return f.CurrentAdmin() != nil
}

// IsCreatorAdmin reports whether the current admin holds the creator role.
func (f *Facade) IsCreatorAdmin() bool {
	return f.currentRole() == rbac.RoleCreator
}

// IsPlatformAdmin reports whether the current admin holds the platform_admin
// role (which historically absorbed super_admin).
func (f *Facade) IsPlatformAdmin() bool {
	return f.currentRole() == rbac.RolePlatformAdmin
}

// IsOwner reports whether the current admin holds the owner role.
func (f *Facade) IsOwner() bool {
	return f.currentRole() == rbac.RoleOwner
}

// CheckPermission reports whether the current admin holds the permission.
// Always false when no admin is authenticated.
func (f *Facade) CheckPermission(p rbac.Permission) bool {
	return f.CurrentAdmin().Can(p)
}

// HasAccessToCreatorAdmin reports access to the creator admin area. Note
// that platform_admin holds this through an intentional carve-out grant.
func (f *Facade) HasAccessToCreatorAdmin() bool {
	return f.CheckPermission(rbac.PermAccessCreatorAdmin)
}

// HasAccessToPlatformAdmin reports access to the platform admin area.
func (f *Facade) HasAccessToPlatformAdmin() bool {
	return f.CheckPermission(rbac.PermAccessPlatformAdmin)
}

// Login authenticates the connected wallet for the requested role.
// Authentication strategy errors are returned to the caller unchanged.
func (f *Facade) Login(ctx context.Context, role rbac.Role, credentials string) error {
	return f.manager.Login(ctx, role, credentials)
}

// Logout clears the admin session. Remote revocation is best-effort; local
// state is always cleared, and calling with no session is not an error.
func (f *Facade) Logout(ctx context.Context) error {
	return f.manager.Logout(ctx)
}

// RefreshAdminData refreshes LastActiveAt and persists the session. No-op
// when no admin is authenticated.
func (f *Facade) RefreshAdminData(ctx context.Context) error {
	return f.manager.Refresh(ctx)
}

// Loading reports whether an authentication is in flight.
func (f *Facade) Loading() bool {
	return f.manager.Loading()
}

// Subscribe registers an observer of currentAdmin changes.
func (f *Facade) Subscribe(fn func(*identity.AdminUser)) func() {
	return f.manager.Subscribe(fn)
}

func (f *Facade) currentRole() rbac.Role {
	admin := f.CurrentAdmin()
	if admin == nil {
		return rbac.RoleNone
	}
	return admin.Role
}
