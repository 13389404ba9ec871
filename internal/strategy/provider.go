// Package strategy defines the two interchangeable authentication providers.
// The provider is selected once, at construction time; nothing in the rest
// of the system branches on deployment environment per call.
package strategy

import (
	"context"

	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
)

// Provider issues, validates, and revokes admin sessions. Both
// implementations produce identically shaped sessions so callers stay
// strategy-agnostic.
type Provider interface {
	// Name identifies the provider in logs and audit events.
	Name() string

	// Authenticate derives a fresh session for the connected wallet and the
	// requested role. credentials may be required depending on the provider.
	Authenticate(ctx context.Context, walletAddress string, role rbac.Role, credentials string) (*identity.Session, error)

	// Verify re-validates an existing session (e.g. one restored from
	// storage) and returns the refreshed admin identity, or an error if the
	// session is no longer acceptable.
	Verify(ctx context.Context, session *identity.Session) (*identity.AdminUser, error)

	// Revoke invalidates the token. Best-effort; callers clear local state
	// regardless of the result.
	Revoke(ctx context.Context, token string) error
}
