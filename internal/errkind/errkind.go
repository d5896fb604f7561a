// Package errkind gives the error taxonomy of the synchronization engine
// a closed set of typed constants instead of ad-hoc error strings, so
// callers that need to decide retry-vs-escalate don't have to match on
// error text.
package errkind

// Kind is one row of the error taxonomy.
type Kind int

const (
	// SchemaInvalid means parse/validate failed; the event is skipped,
	// the batch continues.
	SchemaInvalid Kind = iota
	// DependencyMissing means the event was parked pending a dependency.
	DependencyMissing
	// TransportTransient means a stream connection dropped; reconnect.
	TransportTransient
	// TransportFatal means a stream cannot be recovered; that stream's
	// status moves to error, other streams are unaffected.
	TransportFatal
	// StorageTransient means a store operation failed and may be retried.
	StorageTransient
	// StorageFatal means the store is unusable; the whole peer moves to
	// error.
	StorageFatal
	// AuthExpired means the session credential expired or was revoked.
	AuthExpired
	// DuplicateInteraction means a bridge command/interaction was already
	// handled; suppressed silently.
	DuplicateInteraction
	// RateLimited means bridge egress hit an external rate limit.
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case SchemaInvalid:
		return "schema_invalid"
	case DependencyMissing:
		return "dependency_missing"
	case TransportTransient:
		return "transport_transient"
	case TransportFatal:
		return "transport_fatal"
	case StorageTransient:
		return "storage_transient"
	case StorageFatal:
		return "storage_fatal"
	case AuthExpired:
		return "auth_expired"
	case DuplicateInteraction:
		return "duplicate_interaction"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Recoverable reports whether the task that hit this error kind can keep
// running (possibly after a local state change), as opposed to needing
// to invalidate a larger scope.
func (k Kind) Recoverable() bool {
	switch k {
	case TransportFatal, StorageFatal:
		return false
	default:
		return true
	}
}

// Surface names where this error kind becomes visible, per spec.md §7.
func (k Kind) Surface() string {
	switch k {
	case SchemaInvalid:
		return "log, continue batch"
	case DependencyMissing:
		return "silent until resolution"
	case TransportTransient:
		return "stream status = reconnecting"
	case TransportFatal:
		return "space status = error"
	case StorageTransient:
		return "log; escalate if persistent"
	case StorageFatal:
		return "peer status = error"
	case AuthExpired:
		return "session = unauthenticated"
	case DuplicateInteraction:
		return "silent"
	case RateLimited:
		return "log once per minute"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its taxonomy kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return k2s(e.Kind)
	}
	return k2s(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func k2s(k Kind) string { return k.String() }

// New wraps err with the given kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
