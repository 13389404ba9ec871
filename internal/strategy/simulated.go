package strategy

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mrand "math/rand"
	"strings"
	"time"

	"admin-auth/internal/config"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/util"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const simTokenPrefix = "sim_"

// Simulated issues sessions locally, without any remote verification.
// Permissions come from the local registry. The constructor refuses to build
// in production, making this path structurally unselectable there.
type Simulated struct{}

// NewSimulated builds the development-only strategy. It fails when the
// deployment is production-grade or simulation was not explicitly enabled.
func NewSimulated(cfg *config.Config) (*Simulated, error) {
	if cfg.IsProduction() {
		return nil, fmt.Errorf("simulated authentication is not available in production")
	}
	if !cfg.Auth.SimulationEnabled {
		return nil, fmt.Errorf("simulated authentication requires AUTH_SIMULATION_ENABLED=true")
	}
	util.Warn("Simulated authentication enabled; admin sessions are NOT verified remotely")
	return &Simulated{}, nil
}

func (s *Simulated) Name() string { return "simulated" }

// Authenticate ignores credentials, resolves permissions from the local
// registry, and mints a pseudo-random opaque token.
func (s *Simulated) Authenticate(_ context.Context, walletAddress string, role rbac.Role, _ string) (*identity.Session, error) {
	if !role.IsAdmin() {
		return nil, &identity.RoleNotPermittedError{Role: role}
	}

	token, err := newSimToken()
	if err != nil {
		return nil, fmt.Errorf("generate simulated token: %w", err)
	}

	now := time.Now().UTC()
	addr := util.NormalizeAddress(walletAddress)
	user := &identity.AdminUser{
		Address:      addr,
		Role:         role,
		Permissions:  rbac.PermissionsFor(role),
		DisplayName:  simDisplayName(role),
		CreatedAt:    now,
		LastActiveAt: now,
		IsActive:     true,
	}

	util.Info("Simulated admin session issued",
		zap.String("address", addr),
		zap.String("role", role.String()))

	return &identity.Session{User: user, Token: token, IssuedAt: now}, nil
}

// Verify accepts any well-formed simulated token and re-resolves the
// permissions from the local registry, picking up registry changes between
// runs.
func (s *Simulated) Verify(_ context.Context, session *identity.Session) (*identity.AdminUser, error) {
	if !strings.HasPrefix(session.Token, simTokenPrefix) {
		return nil, &identity.AuthenticationFailedError{Message: "not a simulated session token"}
	}
	if session.User == nil || !session.User.Role.IsAdmin() {
		return nil, &identity.AuthenticationFailedError{Message: "simulated session has no admin role"}
	}

	user := session.User.Clone()
	user.Permissions = rbac.PermissionsFor(user.Role)
	user.LastActiveAt = time.Now().UTC()
	user.IsActive = true
	return user, nil
}

// Revoke is a no-op; there is nothing to notify.
func (s *Simulated) Revoke(context.Context, string) error { return nil }

func newSimToken() (string, error) {
	entropy := ulid.Monotonic(mrand.New(mrand.NewSource(time.Now().UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)

	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return simTokenPrefix + id.String() + "." + base64.RawURLEncoding.EncodeToString(b), nil
}

func simDisplayName(role rbac.Role) string {
	switch role {
	case rbac.RoleCreator:
		return "Dev Creator Admin"
	case rbac.RolePlatformAdmin:
		return "Dev Platform Admin"
	case rbac.RoleOwner:
		return "Dev Owner"
	default:
		return "Dev Admin"
	}
}
