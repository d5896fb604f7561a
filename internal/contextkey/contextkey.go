// Package contextkey defines the typed context keys shared across
// spacepeer's packages. The teacher repo references an identically
// named package from its db, logger and middleware code without ever
// shipping it; spacepeer ships it so those lookups actually resolve.
package contextkey

type key int

const (
	// ContextKeyRequestID tags the request/RPC-call id for log correlation.
	ContextKeyRequestID key = iota
	// ContextKeyUserID tags the authenticated user DID for the current call.
	ContextKeyUserID
	// ContextKeyActorID tags the bridge or service identity making a call,
	// distinct from ContextKeyUserID which is always an end-user DID.
	ContextKeyActorID
)
