package schema

// Parse decodes bytes produced by Encode back into an Event. Legacy
// variant tags are canonicalized before the payload codec is looked
// up, so a legacy-tagged event parses using the canonical variant's
// field layout — safe only because every legacy alias in variant.go
// shares its canonical target's wire layout exactly; a future alias
// that doesn't would need its own codec entry instead.
func Parse(data []byte) (Event, error) {
	if len(data) == 0 {
		return Event{}, newSchemaError("", 0, "empty input")
	}
	if data[0] != FormatVersion {
		return Event{}, newSchemaError("", 0, "unsupported format version")
	}

	r := &wireReader{buf: data, pos: 1}

	rawTag, ok := r.string()
	if !ok {
		return Event{}, newSchemaError("", r.offset(), "truncated variant tag")
	}
	tag := canonicalize(VariantTag(rawTag))

	id, ok := r.id()
	if !ok {
		return Event{}, newSchemaError(tag, r.offset(), "truncated id")
	}
	streamID, ok := r.id()
	if !ok {
		return Event{}, newSchemaError(tag, r.offset(), "truncated stream id")
	}
	author, ok := r.string()
	if !ok {
		return Event{}, newSchemaError(tag, r.offset(), "truncated author")
	}
	createdAt, ok := r.int64()
	if !ok {
		return Event{}, newSchemaError(tag, r.offset(), "truncated createdAt")
	}

	codec, known := codecs[tag]
	if !known {
		return Event{}, newSchemaError(tag, r.offset(), "unknown variant")
	}
	payload, ok := codec.unmarshal(r)
	if !ok {
		return Event{}, newSchemaError(tag, r.offset(), "malformed payload")
	}
	if r.pos != len(r.buf) {
		return Event{}, newSchemaError(tag, r.offset(), "trailing bytes after payload")
	}

	return Event{
		ID:        id,
		Stream:    StreamID(streamID),
		Author:    UserDID(author),
		Variant:   tag,
		CreatedAt: createdAt,
		Payload:   payload,
	}, nil
}
