// Package identity models the identity provider spec.md §6 describes
// only by named interface ("OAuth-style authorize/callback/restore…
// reading/writing two record kinds"). The real OAuth flow against an
// external provider is out of scope per spec.md §1; spacepeer ships
// this interface plus a testidentity implementation driven by the
// testingHandle/testingAppPassword config fallback, matching the
// teacher's pattern of a named, swappable auth backend (its
// internal/auth.JWTManager is itself one such swappable backend for
// session tokens).
package identity

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/schema"
)

// RecordKind is one of the two identity-provider record kinds spec.md
// §6 names.
type RecordKind string

const (
	// RecordPersonalStream points at the user's personal stream id.
	RecordPersonalStream RecordKind = "personalStream"
	// RecordSpaceHandle maps a handle to a space stream id.
	RecordSpaceHandle RecordKind = "spaceHandle"
)

// Provider is the peer's view of an external identity system:
// authorize/callback/restore for session lifecycle, plus read/write of
// the two record kinds the personal-stream and handle-resolution logic
// depend on. Concrete OAuth wiring is a named collaborator, not
// spacepeer's concern.
type Provider interface {
	// Authorize begins an OAuth-style login, returning the URL the
	// caller should redirect the user to.
	Authorize(ctx context.Context) (authURL string, err error)

	// Callback consumes the provider's redirect parameters and returns
	// the authenticated user's DID, persisting it for later Restore.
	Callback(ctx context.Context, params map[string]string) (schema.UserDID, error)

	// Restore re-establishes a session for a previously authenticated
	// user DID without a fresh OAuth round-trip.
	Restore(ctx context.Context, userDID schema.UserDID) error

	// ReadRecord reads a typed record for userDID, or ok=false if absent.
	ReadRecord(ctx context.Context, userDID schema.UserDID, kind RecordKind) (value []byte, ok bool, err error)

	// WriteRecord writes a typed record for userDID.
	WriteRecord(ctx context.Context, userDID schema.UserDID, kind RecordKind, value []byte) error

	// CheckStreamExists reports whether a stream record already exists
	// on the identity provider for streamDID (spec.md §4.6: "the peer
	// ensures this stream exists… creating a stream record… if absent").
	CheckStreamExists(ctx context.Context, streamDID schema.StreamDID) (bool, error)

	// CreateStreamRecord creates a stream record on the identity
	// provider, used when the personal stream or a new space stream has
	// no corresponding record yet.
	CreateStreamRecord(ctx context.Context, userDID schema.UserDID, streamDID schema.StreamDID) error
}

// ErrNotAuthenticated is returned by Restore when no session exists
// for the given DID.
type ErrNotAuthenticated struct {
	UserDID schema.UserDID
}

func (e *ErrNotAuthenticated) Error() string {
	return "identity: no session for " + string(e.UserDID)
}
