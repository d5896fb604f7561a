package schema

import (
	"encoding/binary"
	"math"
)

// wireWriter builds the canonical deterministic encoding described in
// SPEC_FULL.md §5.1: every field is length-prefixed so decode never
// needs a variant-specific grammar beyond field order, and two
// encoders given the same Event always produce byte-identical output
// (the round-trip/determinism property in spec.md §8).
type wireWriter struct {
	buf []byte
}

func (w *wireWriter) putUvarint(n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	k := binary.PutUvarint(tmp[:], n)
	w.buf = append(w.buf, tmp[:k]...)
}

func (w *wireWriter) putBytes(b []byte) {
	w.putUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *wireWriter) putString(s string) { w.putBytes([]byte(s)) }

func (w *wireWriter) putID(id ID) { w.buf = append(w.buf, id.Bytes()...) }

func (w *wireWriter) putOptionalID(id *ID) {
	if id == nil {
		w.buf = append(w.buf, 0)
		return
	}
	w.buf = append(w.buf, 1)
	w.putID(*id)
}

func (w *wireWriter) putInt64(v int64) { w.putUvarint(uint64(v)) }

func (w *wireWriter) putBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *wireWriter) putOptionalString(o OptionalString) {
	if !o.Present {
		w.buf = append(w.buf, 0)
		return
	}
	w.buf = append(w.buf, 1)
	w.putBool(o.Null)
	w.putString(o.Value)
}

// wireReader mirrors wireWriter for decode.
type wireReader struct {
	buf []byte
	pos int
}

func (r *wireReader) offset() int { return r.pos }

func (r *wireReader) uvarint() (uint64, bool) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, false
	}
	r.pos += n
	return v, true
}

func (r *wireReader) bytes() ([]byte, bool) {
	n, ok := r.uvarint()
	if !ok || n > uint64(math.MaxInt32) || r.pos+int(n) > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, true
}

func (r *wireReader) string() (string, bool) {
	b, ok := r.bytes()
	if !ok {
		return "", false
	}
	return string(b), true
}

func (r *wireReader) id() (ID, bool) {
	if r.pos+16 > len(r.buf) {
		return Zero, false
	}
	id, err := IDFromBytes(r.buf[r.pos : r.pos+16])
	if err != nil {
		return Zero, false
	}
	r.pos += 16
	return id, true
}

func (r *wireReader) optionalID() (*ID, bool) {
	if r.pos >= len(r.buf) {
		return nil, false
	}
	tag := r.buf[r.pos]
	r.pos++
	if tag == 0 {
		return nil, true
	}
	id, ok := r.id()
	if !ok {
		return nil, false
	}
	return &id, true
}

func (r *wireReader) int64() (int64, bool) {
	v, ok := r.uvarint()
	return int64(v), ok
}

func (r *wireReader) boolean() (bool, bool) {
	if r.pos >= len(r.buf) {
		return false, false
	}
	b := r.buf[r.pos] != 0
	r.pos++
	return b, true
}

func (r *wireReader) optionalString() (OptionalString, bool) {
	if r.pos >= len(r.buf) {
		return OptionalString{}, false
	}
	tag := r.buf[r.pos]
	r.pos++
	if tag == 0 {
		return OptionalString{}, true
	}
	null, ok := r.boolean()
	if !ok {
		return OptionalString{}, false
	}
	val, ok := r.string()
	if !ok {
		return OptionalString{}, false
	}
	return OptionalString{Present: true, Null: null, Value: val}, true
}
