// Package sessionstore persists the current admin session as one sealed,
// integrity-checked blob. A stored session is a convenience, not a
// correctness requirement: every failure path degrades to "absent" and the
// identity is re-derivable from a fresh login.
package sessionstore

import (
	"context"
	"encoding/json"
	"sync"

	"admin-auth/internal/identity"
	"admin-auth/internal/seal"
	"admin-auth/internal/util"

	"go.uber.org/zap"
)

const sealPurpose = "admin-session"

// Store seals sessions into a Medium.
type Store struct {
	medium Medium
	sealer *seal.Manager
	mu     sync.Mutex
}

// NewStore builds a session store over the given medium.
func NewStore(medium Medium, sealer *seal.Manager) *Store {
	return &Store{medium: medium, sealer: sealer}
}

// Save seals and writes the session, replacing any prior value entirely.
func (s *Store) Save(ctx context.Context, session *identity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(session)
	if err != nil {
		util.Error("Failed to serialize session", zap.Error(err))
		return err
	}

	env, err := s.sealer.Seal(ctx, sealPurpose, plaintext)
	if err != nil {
		util.Error("Failed to seal session", zap.Error(err))
		return err
	}

	blob, err := json.Marshal(env)
	if err != nil {
		util.Error("Failed to serialize session envelope", zap.Error(err))
		return err
	}

	if err := s.medium.Write(ctx, blob); err != nil {
		util.Error("Failed to persist session", zap.Error(err))
		return err
	}

	util.Debug("Session persisted",
		zap.String("address", session.User.Address),
		zap.String("role", session.User.Role.String()))
	return nil
}

// Load reads and verifies the stored session. Absence, tampering,
// corruption, and schema mismatch all yield (nil, false); the caller never
// sees an error from a passive load.
func (s *Store) Load(ctx context.Context) (*identity.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok, err := s.medium.Read(ctx)
	if err != nil {
		util.Warn("Failed to read stored session", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var env seal.Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		util.Warn("Stored session envelope is corrupt; discarding", zap.Error(err))
		return nil, false
	}

	plaintext, err := s.sealer.Open(ctx, sealPurpose, &env)
	if err != nil {
		// Tamper or key mismatch. Logged, never surfaced.
		util.Warn("Stored session failed integrity check; discarding",
			zap.Error(identity.ErrSessionIntegrity),
			zap.NamedError("cause", err))
		return nil, false
	}

	var session identity.Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		util.Warn("Stored session payload is corrupt; discarding", zap.Error(err))
		return nil, false
	}
	if session.User == nil || session.Token == "" {
		util.Warn("Stored session is incomplete; discarding")
		return nil, false
	}
	return &session, true
}

// Clear removes any stored session. Idempotent: clearing an empty store
// succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.medium.Clear(ctx); err != nil {
		util.Warn("Failed to clear stored session", zap.Error(err))
		return err
	}
	return nil
}
