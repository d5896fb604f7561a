package schema

import "regexp"

// DID is an opaque decentralized identifier string. spacepeer never
// parses or validates its internal structure beyond non-emptiness; the
// identity provider is the authority on DID syntax.
type DID string

// UserDID brands a DID as identifying a user (the personal-stream
// owner), as distinct from a StreamDID.
type UserDID DID

// StreamDID brands a DID as a stream root identity, distinct from a
// StreamID (the event id of the stream's genesis event). Some log
// server protocols address a stream by an event id, others by a
// separately issued DID; spacepeer carries both.
type StreamDID DID

// handlePattern is the handle syntax from spec.md §3.
var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}(\.[a-z0-9-]+)+$`)

// Handle is a human-readable domain-like name, validated against
// spec.md's regex.
type Handle string

// Valid reports whether h matches the handle syntax.
func (h Handle) Valid() bool {
	return handlePattern.MatchString(string(h))
}
