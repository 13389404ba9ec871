package strategy

import (
	"context"
	"time"

	"admin-auth/internal/authority"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/util"

	"go.uber.org/zap"
)

// Verified authenticates against the remote authority. The authority's
// permission list always wins over the local registry: the two may diverge
// and the remote answer is the source of truth.
type Verified struct {
	client *authority.Client
}

// NewVerified builds the production strategy.
func NewVerified(client *authority.Client) *Verified {
	return &Verified{client: client}
}

func (v *Verified) Name() string { return "verified" }

// Authenticate requires non-empty credentials and exchanges them with the
// authority for a token and the authority-resolved identity.
func (v *Verified) Authenticate(ctx context.Context, walletAddress string, role rbac.Role, credentials string) (*identity.Session, error) {
	if credentials == "" {
		return nil, identity.ErrCredentialsRequired
	}

	walletAddress = util.NormalizeAddress(walletAddress)
	resp, err := v.client.Login(ctx, credentials, walletAddress, role)
	if err != nil {
		return nil, err
	}

	user := userFromPayload(&resp.User, walletAddress)
	util.Info("Admin authenticated by remote authority",
		zap.String("address", user.Address),
		zap.String("role", user.Role.String()))

	return &identity.Session{
		User:     user,
		Token:    resp.Token,
		IssuedAt: time.Now().UTC(),
	}, nil
}

// Verify introspects the token remotely and rejects on any non-2xx answer
// or on an address mismatch against the session being revalidated.
func (v *Verified) Verify(ctx context.Context, session *identity.Session) (*identity.AdminUser, error) {
	payload, err := v.client.Verify(ctx, session.Token)
	if err != nil {
		return nil, err
	}

	addr := util.NormalizeAddress(session.User.Address)
	if payload.Address != "" && util.NormalizeAddress(payload.Address) != addr {
		return nil, &identity.AuthenticationFailedError{Message: "token is bound to a different wallet address"}
	}
	return userFromPayload(payload, addr), nil
}

// Revoke notifies the authority. Best-effort by contract.
func (v *Verified) Revoke(ctx context.Context, token string) error {
	return v.client.Logout(ctx, token)
}

func userFromPayload(p *authority.UserPayload, fallbackAddr string) *identity.AdminUser {
	addr := util.NormalizeAddress(p.Address)
	if addr == "" {
		addr = fallbackAddr
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &identity.AdminUser{
		Address:      addr,
		Role:         rbac.ParseRole(p.Role),
		Permissions:  rbac.PermissionSetFromStrings(p.Permissions),
		DisplayName:  p.Name,
		Email:        p.Email,
		CreatedAt:    createdAt,
		LastActiveAt: time.Now().UTC(),
		IsActive:     true,
	}
}
