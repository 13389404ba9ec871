package session

import (
	"sort"
	"sync"

	"admin-auth/internal/rbac"
)

// RoleSelection mirrors the externally owned role-selection store. Selecting
// RoleNone (the investor view) counts as clearing the selection.
type RoleSelection struct {
	mu   sync.RWMutex
	role rbac.Role
	subs map[int]func(rbac.Role)
	next int
}

// NewRoleSelection returns an empty selection.
func NewRoleSelection() *RoleSelection {
	return &RoleSelection{subs: make(map[int]func(rbac.Role))}
}

// Select records the chosen role and notifies observers on change.
func (r *RoleSelection) Select(role rbac.Role) {
	r.mu.Lock()
	if r.role == role {
		r.mu.Unlock()
		return
	}
	r.role = role
	subs := r.snapshotLocked()
	r.mu.Unlock()
	for _, fn := range subs {
		fn(role)
	}
}

// Clear resets the selection to none.
func (r *RoleSelection) Clear() {
	r.Select(rbac.RoleNone)
}

// Selected returns the current selection.
func (r *RoleSelection) Selected() rbac.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.role
}

// IsRoleSelected reports whether an admin role is selected.
func (r *RoleSelection) IsRoleSelected() bool {
	return r.Selected().IsAdmin()
}

// Subscribe registers an observer and returns its unsubscribe func.
func (r *RoleSelection) Subscribe(fn func(rbac.Role)) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *RoleSelection) snapshotLocked() []func(rbac.Role) {
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(rbac.Role), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, r.subs[id])
	}
	return subs
}
