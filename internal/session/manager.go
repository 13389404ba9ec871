// Package session keeps the current admin identity consistent with the
// externally owned wallet connection and role selection. It is the only
// writer of the secure session store.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"admin-auth/internal/audit"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/sessionstore"
	"admin-auth/internal/strategy"
	"admin-auth/internal/util"
	"admin-auth/internal/wallet"

	"go.uber.org/zap"
)

const backgroundAuthTimeout = 30 * time.Second

// Manager is the session synchronizer. All state changes are applied in
// order under one mutex; asynchronous authentication results carry a
// generation number and are dropped when a newer input superseded them
// (last request wins, keyed by generation + address + role, not by
// completion order).
type Manager struct {
	provider strategy.Provider
	store    *sessionstore.Store
	auditor  audit.Emitter

	mu           sync.Mutex
	state        State
	current      *identity.AdminUser
	session      *identity.Session
	walletOK     bool
	walletAddr   string
	selectedRole rbac.Role
	credentials  string // retained for role-change re-authentication
	gen          uint64
	inflight     int
	subs         map[int]func(*identity.AdminUser)
	nextSub      int
}

// NewManager builds a synchronizer. auditor may be nil, in which case events
// go to the application log.
func NewManager(provider strategy.Provider, store *sessionstore.Store, auditor audit.Emitter) *Manager {
	if auditor == nil {
		auditor = audit.LogEmitter{}
	}
	return &Manager{
		provider: provider,
		store:    store,
		auditor:  auditor,
		subs:     make(map[int]func(*identity.AdminUser)),
	}
}

// Bind subscribes the manager to the wallet and role-selection observables
// and seeds it with their current values. The returned func unsubscribes.
func (m *Manager) Bind(w *wallet.Wallet, rs *RoleSelection) func() {
	m.mu.Lock()
	ws := w.State()
	m.walletOK = ws.Connected
	m.walletAddr = util.NormalizeAddress(ws.Address)
	m.selectedRole = rs.Selected()
	m.mu.Unlock()

	unsubWallet := w.Subscribe(m.OnWalletChange)
	unsubRole := rs.Subscribe(m.OnRoleChange)
	return func() {
		unsubWallet()
		unsubRole()
	}
}

// Login authenticates the connected wallet for the requested role. Strategy
// errors propagate to the caller; on failure currentAdmin is left untouched.
func (m *Manager) Login(ctx context.Context, role rbac.Role, credentials string) error {
	if !role.IsAdmin() {
		return &identity.RoleNotPermittedError{Role: role}
	}

	m.mu.Lock()
	if !m.walletOK {
		m.mu.Unlock()
		return identity.ErrWalletNotConnected
	}
	addr := m.walletAddr
	m.gen++
	gen := m.gen
	m.inflight++
	m.state = nextState(m.state, evLoginStarted)
	m.mu.Unlock()

	sess, authErr := m.provider.Authenticate(ctx, addr, role, credentials)

	m.mu.Lock()
	m.inflight--
	if m.gen != gen || !m.walletOK || m.walletAddr != addr ||
		(m.selectedRole.IsAdmin() && m.selectedRole != role) {
		m.mu.Unlock()
		// A newer input won the race; this result must not be applied.
		if authErr == nil {
			go m.revokeQuietly(sess.Token)
		}
		return identity.ErrLoginSuperseded
	}

	if authErr != nil {
		m.state = nextState(m.state, evLoginFailed)
		m.mu.Unlock()
		m.auditor.Emit(ctx, audit.Event{
			Type:     audit.EventLoginFailed,
			Address:  addr,
			Role:     role.String(),
			Strategy: m.provider.Name(),
			Detail:   authErr.Error(),
		})
		return authErr
	}

	now := time.Now().UTC()
	sess.User.LastActiveAt = now
	m.current = sess.User
	m.session = sess
	m.credentials = credentials
	m.state = nextState(m.state, evLoginSucceeded)
	// Snapshot while still holding the lock: the committed user stays
	// mutable under the mutex (Refresh touches it), so the save must not
	// alias it.
	saveSess := &identity.Session{
		User:     sess.User.Clone(),
		Token:    sess.Token,
		IssuedAt: sess.IssuedAt,
	}
	subs, snap := m.observersLocked()
	m.mu.Unlock()

	// Persistence is best-effort; a failed save only costs the reload
	// convenience.
	_ = m.store.Save(ctx, saveSess)
	m.auditor.Emit(ctx, audit.Event{
		Type:     audit.EventLoginSucceeded,
		Address:  saveSess.User.Address,
		Role:     saveSess.User.Role.String(),
		Strategy: m.provider.Name(),
	})
	notifyAll(subs, snap)
	return nil
}

// Logout clears local state unconditionally and notifies the authority on a
// best-effort basis. Safe to call when no session exists.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	prev := m.current
	var token string
	if m.session != nil {
		token = m.session.Token
	}
	m.current = nil
	m.session = nil
	m.credentials = ""
	m.state = nextState(m.state, evLoggedOut)
	subs, _ := m.observersLocked()
	m.mu.Unlock()

	if token != "" {
		if err := m.provider.Revoke(ctx, token); err != nil {
			util.Warn("Remote revoke failed; local state cleared anyway", zap.Error(err))
		}
	}
	_ = m.store.Clear(ctx)

	if prev != nil {
		m.auditor.Emit(ctx, audit.Event{
			Type:     audit.EventLogout,
			Address:  prev.Address,
			Role:     prev.Role.String(),
			Strategy: m.provider.Name(),
		})
		notifyAll(subs, nil)
	}
	return nil
}

// Refresh updates LastActiveAt and persists it. No-op without a current
// admin.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return nil
	}
	m.current.LastActiveAt = time.Now().UTC()
	sess := &identity.Session{
		User:     m.current.Clone(),
		Token:    m.session.Token,
		IssuedAt: m.session.IssuedAt,
	}
	m.mu.Unlock()

	return m.store.Save(ctx, sess)
}

// Restore loads a persisted session, at startup and again on wallet connect.
// The session is adopted only if its address matches the currently connected
// wallet and the provider still accepts its token. With no wallet connected
// the blob is left in place for a later attempt; a genuine mismatch or a
// rejected token purges it. Every failure degrades silently to NoAdmin,
// since a fresh login is always available.
func (m *Manager) Restore(ctx context.Context) {
	sess, ok := m.store.Load(ctx)
	if !ok {
		return
	}

	m.mu.Lock()
	if m.state != StateNoAdmin {
		m.mu.Unlock()
		return
	}
	walletOK, addr, gen := m.walletOK, m.walletAddr, m.gen
	m.mu.Unlock()

	storedAddr := util.NormalizeAddress(sess.User.Address)
	if !walletOK {
		// Not a mismatch, the wallet just has not connected yet. Keep the
		// blob; adoption is retried on the wallet-connect event.
		return
	}
	if storedAddr != addr {
		_ = m.store.Clear(ctx)
		m.auditor.Emit(ctx, audit.Event{
			Type:    audit.EventStaleSessionDrop,
			Address: storedAddr,
			Role:    sess.User.Role.String(),
			Detail:  "stored session does not match connected wallet",
		})
		return
	}

	user, err := m.provider.Verify(ctx, sess)
	if err != nil {
		_ = m.store.Clear(ctx)
		m.auditor.Emit(ctx, audit.Event{
			Type:     audit.EventVerifyRejected,
			Address:  storedAddr,
			Role:     sess.User.Role.String(),
			Strategy: m.provider.Name(),
			Detail:   err.Error(),
		})
		return
	}

	m.mu.Lock()
	if m.gen != gen || !m.walletOK || m.walletAddr != addr || m.state != StateNoAdmin {
		m.mu.Unlock()
		return
	}
	user.LastActiveAt = time.Now().UTC()
	sess.User = user
	m.current = user
	m.session = sess
	m.state = nextState(m.state, evSessionRestored)
	saveSess := &identity.Session{
		User:     user.Clone(),
		Token:    sess.Token,
		IssuedAt: sess.IssuedAt,
	}
	subs, snap := m.observersLocked()
	m.mu.Unlock()

	_ = m.store.Save(ctx, saveSess)
	m.auditor.Emit(ctx, audit.Event{
		Type:     audit.EventSessionRestored,
		Address:  saveSess.User.Address,
		Role:     saveSess.User.Role.String(),
		Strategy: m.provider.Name(),
	})
	notifyAll(subs, snap)
}

// OnWalletChange applies a wallet connection change. Disconnecting (or
// switching address) clears the current admin immediately and
// unconditionally; any in-flight authentication for the old address is
// invalidated by the generation bump.
func (m *Manager) OnWalletChange(ws wallet.State) {
	addr := util.NormalizeAddress(ws.Address)

	m.mu.Lock()
	if ws.Connected == m.walletOK && addr == m.walletAddr {
		m.mu.Unlock()
		return
	}
	m.gen++
	prev := m.current
	m.walletOK = ws.Connected
	m.walletAddr = addr
	if !ws.Connected {
		m.credentials = ""
	}
	cleared := prev != nil
	if cleared || !ws.Connected {
		m.current = nil
		m.session = nil
		m.state = nextState(m.state, evWalletDisconnected)
	}
	role := m.selectedRole
	creds := m.credentials
	subs, _ := m.observersLocked()
	m.mu.Unlock()

	if cleared {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.store.Clear(ctx)

		detail := "wallet disconnected"
		if ws.Connected {
			detail = "wallet address changed"
		}
		m.auditor.Emit(ctx, audit.Event{
			Type:    audit.EventWalletDisconnect,
			Address: prev.Address,
			Role:    prev.Role.String(),
			Detail:  detail,
		})
		notifyAll(subs, nil)
	}

	if ws.Connected {
		if role.IsAdmin() {
			go m.reauthenticate(role, creds)
		} else {
			// A session persisted for this wallet may be waiting; the
			// startup restore cannot adopt it before the wallet connects.
			go m.restoreAsync()
		}
	}
}

// OnRoleChange applies a role-selection change. Selecting a different admin
// role supersedes the previous session entirely; clearing the selection (or
// returning to the investor view) drops the admin session.
func (m *Manager) OnRoleChange(role rbac.Role) {
	m.mu.Lock()
	if m.selectedRole == role {
		m.mu.Unlock()
		return
	}
	m.selectedRole = role
	m.gen++

	if !role.IsAdmin() {
		prev := m.current
		m.current = nil
		m.session = nil
		m.credentials = ""
		m.state = nextState(m.state, evRoleCleared)
		subs, _ := m.observersLocked()
		m.mu.Unlock()

		if prev != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = m.store.Clear(ctx)
			m.auditor.Emit(ctx, audit.Event{
				Type:    audit.EventLogout,
				Address: prev.Address,
				Role:    prev.Role.String(),
				Detail:  "role selection cleared",
			})
			notifyAll(subs, nil)
		}
		return
	}

	sameRole := m.current != nil && m.current.Role == role
	walletOK := m.walletOK
	creds := m.credentials
	prev := m.current
	m.mu.Unlock()

	if sameRole || !walletOK {
		return
	}
	if prev != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.auditor.Emit(ctx, audit.Event{
			Type:    audit.EventRoleSuperseded,
			Address: prev.Address,
			Role:    prev.Role.String(),
			Detail:  "re-authenticating as " + role.String(),
		})
		cancel()
	}
	go m.reauthenticate(role, creds)
}

// CurrentAdmin returns a snapshot of the current admin, or nil.
func (m *Manager) CurrentAdmin() *identity.AdminUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// State returns the machine's current phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loading reports whether an authentication is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight > 0 || m.state == StateAuthenticating
}

// Subscribe registers an observer of currentAdmin changes. The observer
// receives a snapshot (nil when the admin was cleared).
func (m *Manager) Subscribe(fn func(*identity.AdminUser)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) restoreAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.Restore(ctx)
}

func (m *Manager) reauthenticate(role rbac.Role, credentials string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundAuthTimeout)
	defer cancel()

	err := m.Login(ctx, role, credentials)
	switch {
	case err == nil, errors.Is(err, identity.ErrLoginSuperseded):
	case errors.Is(err, identity.ErrWalletNotConnected):
		util.Debug("Skipped re-authentication; wallet no longer connected")
	default:
		util.Warn("Background re-authentication failed",
			zap.String("role", role.String()),
			zap.Error(err))
	}
}

func (m *Manager) revokeQuietly(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.provider.Revoke(ctx, token); err != nil {
		util.Debug("Failed to revoke superseded token", zap.Error(err))
	}
}

func (m *Manager) observersLocked() ([]func(*identity.AdminUser), *identity.AdminUser) {
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(*identity.AdminUser), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	return subs, m.current.Clone()
}

func notifyAll(subs []func(*identity.AdminUser), snap *identity.AdminUser) {
	for _, fn := range subs {
		fn(snap)
	}
}
