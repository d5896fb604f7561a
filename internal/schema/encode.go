package schema

// FormatVersion is the single leading byte of every encoded event.
// Bumped only if the envelope's own field order changes; per-variant
// evolution happens through the NSID version suffix instead.
const FormatVersion = 1

// Encode renders ev in the canonical deterministic binary format: a
// format-version byte, then the envelope fields, then the payload
// fields in the variant's declared order. Two calls with
// field-for-field identical events always produce identical bytes
// (spec.md §8's round-trip property), which is what lets the
// content-hash dedup in the bridge and the content-addressable raw
// event store in storage use Encode's output directly as a hash
// input.
func Encode(ev Event) ([]byte, error) {
	codec, ok := codecs[ev.Variant]
	if !ok {
		return nil, newSchemaError(ev.Variant, 0, "unknown variant")
	}

	w := &wireWriter{buf: make([]byte, 0, 128)}
	w.buf = append(w.buf, FormatVersion)
	w.putString(string(ev.Variant))
	w.putID(ev.ID)
	w.putID(ID(ev.Stream))
	w.putString(string(ev.Author))
	w.putInt64(ev.CreatedAt)
	codec.marshal(w, ev.Payload)
	return w.buf, nil
}
