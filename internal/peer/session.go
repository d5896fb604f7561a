// Package peer implements spec.md §4.6: the auth state machine, the
// stream roster, backfill coordination and reconnection, plus the
// write path (sendEvent/sendEventBatch) that resolves once a write is
// durable locally. Grounded on the teacher's internal/rooms.Manager
// (one owning struct holding a map of live connections behind a
// mutex, driven by a Start(ctx) event loop) generalized from "chat
// rooms" to "subscribed streams", per spec.md §9's "model as owned by
// an explicit Runtime object… avoid process-wide mutables".
package peer

import (
	"context"
	"sync"

	"github.com/roomyhq/spacepeer/internal/identity"
	"github.com/roomyhq/spacepeer/internal/schema"
)

// AuthState is spec.md §4.6's authentication status machine.
type AuthState int

const (
	Loading AuthState = iota
	Unauthenticated
	Authenticated
	AuthError
)

func (s AuthState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case AuthError:
		return "error"
	default:
		return "unknown"
	}
}

// Session owns the auth state machine and the authenticated user's
// identity, independent of any stream connection state (which Roster
// owns instead).
type Session struct {
	mu       sync.RWMutex
	state    AuthState
	userDID  schema.UserDID
	identity identity.Provider
}

// NewSession constructs a Session in the Loading state.
func NewSession(idp identity.Provider) *Session {
	return &Session{state: Loading, identity: idp}
}

// State returns the current auth state.
func (s *Session) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UserDID returns the authenticated user's DID, or "" if not
// authenticated.
func (s *Session) UserDID() schema.UserDID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userDID
}

// RestoreOrUnauthenticated attempts to restore a persisted session for
// userDID (spec.md §4.6 path (b): "restore from the persisted DID").
// On failure the session moves to Unauthenticated rather than Error,
// since "no prior session" is an expected outcome, not a fault.
func (s *Session) RestoreOrUnauthenticated(ctx context.Context, userDID schema.UserDID) error {
	if userDID == "" {
		s.mu.Lock()
		s.state = Unauthenticated
		s.mu.Unlock()
		return nil
	}
	if err := s.identity.Restore(ctx, userDID); err != nil {
		s.mu.Lock()
		s.state = Unauthenticated
		s.mu.Unlock()
		return nil
	}
	s.mu.Lock()
	s.state = Authenticated
	s.userDID = userDID
	s.mu.Unlock()
	return nil
}

// CompleteLogin consumes OAuth callback parameters (spec.md §4.6 path
// (a)) and transitions to Authenticated on success.
func (s *Session) CompleteLogin(ctx context.Context, params map[string]string) error {
	userDID, err := s.identity.Callback(ctx, params)
	if err != nil {
		s.mu.Lock()
		s.state = AuthError
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.state = Authenticated
	s.userDID = userDID
	s.mu.Unlock()
	return nil
}

// Logout clears the session back to Unauthenticated.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Unauthenticated
	s.userDID = ""
}
