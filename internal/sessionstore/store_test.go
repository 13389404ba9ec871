package sessionstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"admin-auth/internal/config"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/seal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	cfg := &config.Config{
		Environment: "test",
		Session: config.SessionConfig{
			MasterKey: base64.StdEncoding.EncodeToString(key),
		},
	}
	sealer, err := seal.NewManager(cfg, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "session.blob")
	return NewStore(NewFileMedium(path), sealer), path
}

func testSession(role rbac.Role) *identity.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &identity.Session{
		User: &identity.AdminUser{
			Address:      "neutron1abc",
			Role:         role,
			Permissions:  rbac.PermissionsFor(role),
			DisplayName:  "Test Admin",
			CreatedAt:    now,
			LastActiveAt: now,
			IsActive:     true,
		},
		Token:    "tok_test",
		IssuedAt: now,
	}
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	want := testSession(rbac.RoleCreator)
	require.NoError(t, store.Save(ctx, want))

	got, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, want.User.Address, got.User.Address)
	assert.Equal(t, want.User.Role, got.User.Role)
	assert.Equal(t, want.User.Permissions, got.User.Permissions)
	assert.Equal(t, want.Token, got.Token)
	assert.True(t, want.IssuedAt.Equal(got.IssuedAt))
}

func TestStore_Load_EmptyIsAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	_, ok := store.Load(context.Background())
	assert.False(t, ok)
}

func TestStore_Load_TamperYieldsAbsent(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testSession(rbac.RoleOwner)))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one byte somewhere inside the sealed envelope.
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)/2] ^= 0x01
	require.NoError(t, os.WriteFile(path, tampered, 0o600))

	_, ok := store.Load(ctx)
	assert.False(t, ok, "tampered blob must load as absent, not as a session")
}

func TestStore_Load_GarbageYieldsAbsent(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o600))
	_, ok := store.Load(context.Background())
	assert.False(t, ok)
}

func TestStore_Save_ReplacesWhole(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession(rbac.RoleCreator)))
	second := testSession(rbac.RolePlatformAdmin)
	second.Token = "tok_second"
	require.NoError(t, store.Save(ctx, second))

	got, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, rbac.RolePlatformAdmin, got.User.Role)
	assert.Equal(t, "tok_second", got.Token)
}

func TestStore_Clear_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx), "clearing an empty store succeeds")

	require.NoError(t, store.Save(ctx, testSession(rbac.RoleCreator)))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	_, ok := store.Load(ctx)
	assert.False(t, ok)
}
