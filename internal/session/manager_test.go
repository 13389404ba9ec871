package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"admin-auth/internal/config"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/seal"
	"admin-auth/internal/sessionstore"
	"admin-auth/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a controllable strategy.Provider. A non-nil gate makes
// Authenticate block until the gate is closed, which lets tests order
// completions against wallet and role changes.
type fakeProvider struct {
	mu        sync.Mutex
	authErr   error
	verifyErr error
	gate      chan struct{}
	started   chan struct{}
	revoked   []string
	authCalls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Authenticate(ctx context.Context, walletAddress string, role rbac.Role, credentials string) (*identity.Session, error) {
	f.mu.Lock()
	f.authCalls++
	n := f.authCalls
	gate, started, err := f.gate, f.started, f.authErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &identity.Session{
		User: &identity.AdminUser{
			Address:     walletAddress,
			Role:        role,
			Permissions: rbac.PermissionsFor(role),
			DisplayName: "Fake Admin",
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
		},
		Token:    fmt.Sprintf("tok_%d", n),
		IssuedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeProvider) Verify(ctx context.Context, session *identity.Session) (*identity.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return session.User.Clone(), nil
}

func (f *fakeProvider) Revoke(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeProvider) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func newTestStore(t *testing.T) *sessionstore.Store {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	cfg := &config.Config{
		Session: config.SessionConfig{MasterKey: base64.StdEncoding.EncodeToString(key)},
	}
	sealer, err := seal.NewManager(cfg, nil)
	require.NoError(t, err)

	medium := sessionstore.NewFileMedium(filepath.Join(t.TempDir(), "session.bin"))
	return sessionstore.NewStore(medium, sealer)
}

type fixture struct {
	provider *fakeProvider
	store    *sessionstore.Store
	manager  *Manager
	wallet   *wallet.Wallet
	roles    *RoleSelection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &fakeProvider{}
	st := newTestStore(t)
	m := NewManager(p, st, nil)
	w := wallet.New()
	rs := NewRoleSelection()
	unbind := m.Bind(w, rs)
	t.Cleanup(unbind)
	return &fixture{provider: p, store: st, manager: m, wallet: w, roles: rs}
}

func TestManager_Login_RequiresConnectedWallet(t *testing.T) {
	f := newFixture(t)

	err := f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd")
	assert.ErrorIs(t, err, identity.ErrWalletNotConnected)
	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Equal(t, StateNoAdmin, f.manager.State())
}

func TestManager_Login_RejectsNonAdminRole(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")

	var notPermitted *identity.RoleNotPermittedError
	err := f.manager.Login(context.Background(), rbac.RoleNone, "passw0rd")
	require.ErrorAs(t, err, &notPermitted)
	assert.Nil(t, f.manager.CurrentAdmin())
}

func TestManager_Login_Success(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("Neutron1ABC")

	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))

	admin := f.manager.CurrentAdmin()
	require.NotNil(t, admin)
	assert.Equal(t, "neutron1abc", admin.Address)
	assert.Equal(t, rbac.RoleCreator, admin.Role)
	assert.True(t, admin.Can(rbac.PermViewProposals))
	assert.False(t, admin.Can(rbac.PermManagePlatformConfig))
	assert.Equal(t, StateAuthenticated, f.manager.State())
	assert.False(t, f.manager.Loading())

	// The session must have been persisted for later restore.
	stored, ok := f.store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "neutron1abc", stored.User.Address)
}

func TestManager_Login_FailureLeavesNoAdmin(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	f.provider.authErr = &identity.AuthenticationFailedError{Message: "bad credentials"}

	err := f.manager.Login(context.Background(), rbac.RoleCreator, "wrong")
	var authFailed *identity.AuthenticationFailedError
	require.ErrorAs(t, err, &authFailed)

	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Equal(t, StateRejected, f.manager.State())
	_, ok := f.store.Load(context.Background())
	assert.False(t, ok)
}

func TestManager_WalletDisconnect_ClearsSynchronously(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))

	f.wallet.Disconnect()

	// Observers run synchronously, so the admin is gone before this returns.
	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Equal(t, StateNoAdmin, f.manager.State())
	_, ok := f.store.Load(context.Background())
	assert.False(t, ok)
}

func TestManager_WalletAddressChange_ReauthenticatesForSelectedRole(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))
	// Selecting the already-authenticated role is a no-op.
	f.roles.Select(rbac.RoleCreator)

	f.wallet.Connect("neutron1xyz")

	require.Eventually(t, func() bool {
		admin := f.manager.CurrentAdmin()
		return admin != nil && admin.Address == "neutron1xyz"
	}, 2*time.Second, 10*time.Millisecond,
		"expected a fresh session for the new address")

	admin := f.manager.CurrentAdmin()
	assert.Equal(t, rbac.RoleCreator, admin.Role)
}

func TestManager_RoleChange_SupersedesSession(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))
	f.roles.Select(rbac.RoleCreator)

	f.roles.Select(rbac.RolePlatformAdmin)

	require.Eventually(t, func() bool {
		admin := f.manager.CurrentAdmin()
		return admin != nil && admin.Role == rbac.RolePlatformAdmin
	}, 2*time.Second, 10*time.Millisecond)

	admin := f.manager.CurrentAdmin()
	assert.True(t, admin.Can(rbac.PermManagePlatformConfig))
	assert.True(t, admin.Can(rbac.PermAccessCreatorAdmin))
	assert.False(t, admin.Can(rbac.PermManageSuperAdmins))
}

func TestManager_RoleCleared_DropsSession(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))
	f.roles.Select(rbac.RoleCreator)

	f.roles.Clear()

	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Equal(t, StateNoAdmin, f.manager.State())
	_, ok := f.store.Load(context.Background())
	assert.False(t, ok)
}

func TestManager_Logout_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))

	require.NoError(t, f.manager.Logout(context.Background()))
	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Contains(t, f.provider.revokedTokens(), "tok_1")
	_, ok := f.store.Load(context.Background())
	assert.False(t, ok)

	// A second logout with nothing to clear still succeeds.
	require.NoError(t, f.manager.Logout(context.Background()))
}

func TestManager_LastRequestWins(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	f.provider.gate = make(chan struct{})
	f.provider.started = make(chan struct{}, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd")
	}()
	<-f.provider.started
	assert.True(t, f.manager.Loading())

	// The wallet disconnects while the authentication is still in flight.
	f.wallet.Disconnect()
	close(f.provider.gate)

	assert.ErrorIs(t, <-errCh, identity.ErrLoginSuperseded)
	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Equal(t, StateNoAdmin, f.manager.State())

	// The token the stale login obtained must not stay valid remotely.
	require.Eventually(t, func() bool {
		for _, tok := range f.provider.revokedTokens() {
			if tok == "tok_1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

// The session handed to the store must be a snapshot: Refresh mutates the
// committed user under the lock while a login's best-effort save marshals
// its own copy outside it.
func TestManager_ConcurrentRefreshAndLogin(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = f.manager.Refresh(context.Background())
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 25; j++ {
			_ = f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd")
		}
	}()
	wg.Wait()

	stored, ok := f.store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "neutron1abc", stored.User.Address)
	assert.Equal(t, rbac.RoleCreator, stored.User.Role)
}

func TestManager_Restore_WaitsForWalletConnect(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), storedSession("neutron1abc", rbac.RoleCreator)))

	// Boot-time restore runs before any wallet event can have arrived.
	// Nothing is adopted yet, and nothing is destroyed.
	f.manager.Restore(context.Background())
	assert.Nil(t, f.manager.CurrentAdmin())
	_, ok := f.store.Load(context.Background())
	require.True(t, ok, "stored session must survive a restore with no wallet connected")

	// The connect event retries the restore and adopts the session.
	f.wallet.Connect("neutron1abc")
	require.Eventually(t, func() bool {
		admin := f.manager.CurrentAdmin()
		return admin != nil && admin.Address == "neutron1abc"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateAuthenticated, f.manager.State())
}

func TestManager_Restore_AdoptsMatchingSession(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.store.Save(context.Background(), storedSession("neutron1abc", rbac.RoleCreator)))

	f.manager.Restore(context.Background())

	admin := f.manager.CurrentAdmin()
	require.NotNil(t, admin)
	assert.Equal(t, "neutron1abc", admin.Address)
	assert.Equal(t, StateAuthenticated, f.manager.State())
}

func TestManager_Restore_DropsMismatchedAddress(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	require.NoError(t, f.store.Save(context.Background(), storedSession("neutron1other", rbac.RoleCreator)))

	f.manager.Restore(context.Background())

	assert.Nil(t, f.manager.CurrentAdmin())
	assert.Equal(t, StateNoAdmin, f.manager.State())
	_, ok := f.store.Load(context.Background())
	assert.False(t, ok, "mismatched session must be purged, not kept for later")
}

func TestManager_Restore_DropsRejectedToken(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")
	f.provider.verifyErr = &identity.AuthenticationFailedError{Message: "token expired"}
	require.NoError(t, f.store.Save(context.Background(), storedSession("neutron1abc", rbac.RoleCreator)))

	f.manager.Restore(context.Background())

	assert.Nil(t, f.manager.CurrentAdmin())
	_, ok := f.store.Load(context.Background())
	assert.False(t, ok)
}

func TestManager_SubscribersSeeChanges(t *testing.T) {
	f := newFixture(t)
	f.wallet.Connect("neutron1abc")

	var got []*identity.AdminUser
	unsub := f.manager.Subscribe(func(a *identity.AdminUser) { got = append(got, a) })
	defer unsub()

	require.NoError(t, f.manager.Login(context.Background(), rbac.RoleCreator, "passw0rd"))
	require.NoError(t, f.manager.Logout(context.Background()))

	require.Len(t, got, 2)
	require.NotNil(t, got[0])
	assert.Equal(t, rbac.RoleCreator, got[0].Role)
	assert.Nil(t, got[1])
}

func storedSession(addr string, role rbac.Role) *identity.Session {
	return &identity.Session{
		User: &identity.AdminUser{
			Address:     addr,
			Role:        role,
			Permissions: rbac.PermissionsFor(role),
			DisplayName: "Stored Admin",
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
		},
		Token:    "tok_stored",
		IssuedAt: time.Now().UTC(),
	}
}
