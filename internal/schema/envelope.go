package schema

// Event is the universal envelope every variant rides in (spec.md
// §4.1). Payload holds one of the per-variant payload structs from
// payload.go; the Variant tag is the authority on which one.
type Event struct {
	ID        ID
	Stream    StreamID
	Author    UserDID
	Variant   VariantTag
	CreatedAt int64 // unix millis, author-asserted
	Payload   any
}

// Canonicalize rewrites a legacy variant tag to its canonical form in
// place. Call after Parse, before dependency extraction or
// materialization, so downstream code only ever sees canonical tags.
func (e *Event) Canonicalize() {
	e.Variant = canonicalize(e.Variant)
}

// IsDependencyBearing reports whether e's variant declares
// dependencies per the closed set in variant.go.
func (e Event) IsDependencyBearing() bool {
	return dependencyBearing[e.Variant]
}
