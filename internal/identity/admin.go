package identity

import (
	"encoding/json"
	"time"

	"admin-auth/internal/rbac"
)

// AdminUser is the current administrator identity. Address is the connected
// wallet address and the primary correlation key against the externally
// owned wallet session; exactly one AdminUser is current at a time.
type AdminUser struct {
	Address      string
	Role         rbac.Role
	Permissions  rbac.PermissionSet
	DisplayName  string
	Email        string
	CreatedAt    time.Time
	LastActiveAt time.Time
	IsActive     bool
}

// adminUserJSON is the persisted/wire shape; permissions travel as a sorted
// string list rather than a set.
type adminUserJSON struct {
	Address      string    `json:"address"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions"`
	DisplayName  string    `json:"display_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	IsActive     bool      `json:"is_active"`
}

// MarshalJSON implements json.Marshaler.
func (u AdminUser) MarshalJSON() ([]byte, error) {
	return json.Marshal(adminUserJSON{
		Address:      u.Address,
		Role:         u.Role.String(),
		Permissions:  u.Permissions.List(),
		DisplayName:  u.DisplayName,
		Email:        u.Email,
		CreatedAt:    u.CreatedAt,
		LastActiveAt: u.LastActiveAt,
		IsActive:     u.IsActive,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *AdminUser) UnmarshalJSON(b []byte) error {
	var raw adminUserJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	u.Address = raw.Address
	u.Role = rbac.ParseRole(raw.Role)
	u.Permissions = rbac.PermissionSetFromStrings(raw.Permissions)
	u.DisplayName = raw.DisplayName
	u.Email = raw.Email
	u.CreatedAt = raw.CreatedAt
	u.LastActiveAt = raw.LastActiveAt
	u.IsActive = raw.IsActive
	return nil
}

// Can reports whether the user holds the permission. Nil users and inactive
// users hold nothing (fail-closed).
func (u *AdminUser) Can(p rbac.Permission) bool {
	if u == nil || !u.IsActive {
		return false
	}
	return u.Permissions.Has(p)
}

// Clone returns an independent copy so callers cannot mutate the
// synchronizer's current identity through a snapshot.
func (u *AdminUser) Clone() *AdminUser {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Permissions = u.Permissions.Clone()
	return &cp
}

// Session is one authenticated interval: the identity plus the opaque token
// issued by the authentication strategy.
type Session struct {
	User     *AdminUser `json:"user"`
	Token    string     `json:"token"`
	IssuedAt time.Time  `json:"issued_at"`
}
