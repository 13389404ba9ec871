package strategy

import (
	"context"
	"strings"
	"testing"

	"admin-auth/internal/config"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Auth: config.AuthConfig{
			Mode:              config.AuthModeSimulated,
			SimulationEnabled: true,
		},
	}
}

func TestNewSimulated_RefusesProduction(t *testing.T) {
	cfg := simConfig()
	cfg.Environment = "production"
	_, err := NewSimulated(cfg)
	assert.Error(t, err, "simulated strategy must be unconstructible in production")
}

func TestNewSimulated_RequiresExplicitEnable(t *testing.T) {
	cfg := simConfig()
	cfg.Auth.SimulationEnabled = false
	_, err := NewSimulated(cfg)
	assert.Error(t, err)
}

func TestSimulated_Authenticate(t *testing.T) {
	s, err := NewSimulated(simConfig())
	require.NoError(t, err)

	sess, err := s.Authenticate(context.Background(), "Neutron1ABC", rbac.RoleCreator, "")
	require.NoError(t, err)

	assert.Equal(t, "neutron1abc", sess.User.Address, "address is normalized")
	assert.Equal(t, rbac.RoleCreator, sess.User.Role)
	assert.Equal(t, rbac.PermissionsFor(rbac.RoleCreator), sess.User.Permissions)
	assert.True(t, strings.HasPrefix(sess.Token, "sim_"))
	assert.True(t, sess.User.IsActive)
	assert.False(t, sess.IssuedAt.IsZero())
}

func TestSimulated_Authenticate_TokensAreUnique(t *testing.T) {
	s, err := NewSimulated(simConfig())
	require.NoError(t, err)

	a, err := s.Authenticate(context.Background(), "neutron1abc", rbac.RoleOwner, "")
	require.NoError(t, err)
	b, err := s.Authenticate(context.Background(), "neutron1abc", rbac.RoleOwner, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestSimulated_Authenticate_RejectsNonAdminRole(t *testing.T) {
	s, err := NewSimulated(simConfig())
	require.NoError(t, err)

	_, err = s.Authenticate(context.Background(), "neutron1abc", rbac.RoleNone, "")
	var notPermitted *identity.RoleNotPermittedError
	assert.ErrorAs(t, err, &notPermitted)
}

func TestSimulated_Verify(t *testing.T) {
	s, err := NewSimulated(simConfig())
	require.NoError(t, err)

	sess, err := s.Authenticate(context.Background(), "neutron1abc", rbac.RolePlatformAdmin, "")
	require.NoError(t, err)

	user, err := s.Verify(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, rbac.RolePlatformAdmin, user.Role)
	assert.Equal(t, rbac.PermissionsFor(rbac.RolePlatformAdmin), user.Permissions)
}

func TestSimulated_Verify_RejectsForeignToken(t *testing.T) {
	s, err := NewSimulated(simConfig())
	require.NoError(t, err)

	sess := &identity.Session{
		User:  &identity.AdminUser{Role: rbac.RoleCreator, IsActive: true},
		Token: "real-authority-token",
	}
	_, err = s.Verify(context.Background(), sess)
	assert.Error(t, err)
}
