package identity

import (
	"errors"
	"fmt"

	"admin-auth/internal/rbac"
)

var (
	// ErrWalletNotConnected is returned when a login is attempted with no
	// connected wallet.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrCredentialsRequired is returned by the verified strategy when a
	// login is attempted without credentials.
	ErrCredentialsRequired = errors.New("credentials required")

	// ErrSessionIntegrity marks a stored session that failed its tamper
	// check. Handled internally by the session layer; never surfaced to
	// facade callers.
	ErrSessionIntegrity = errors.New("session integrity check failed")

	// ErrLoginSuperseded is returned to a login caller whose in-flight
	// authentication was overtaken by a newer wallet/role change or login.
	// The synchronizer state is untouched when this is returned.
	ErrLoginSuperseded = errors.New("login superseded by a newer request")
)

// AuthenticationFailedError carries the remote authority's rejection message.
type AuthenticationFailedError struct {
	Message string
}

func (e *AuthenticationFailedError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Message
}

// RoleNotPermittedError is returned when the requested role is not grantable
// to this identity.
type RoleNotPermittedError struct {
	Role rbac.Role
}

func (e *RoleNotPermittedError) Error() string {
	return fmt.Sprintf("role %q not permitted for this identity", e.Role)
}
