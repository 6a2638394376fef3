package cbor

import "bytes"

// ValidateDcborSimple enforces dCBOR's restriction that major-type-7
// simple values are limited to {false, true, null}; everything else
// (including `undefined` and any reserved simple value) is rejected.
// Floats are a separate, numeric check (see reader.go/writer.go's
// existing reduced-float conformance handling) and aren't covered
// here.
func ValidateDcborSimple(v SimpleValue) error {
	switch v {
	case SimpleValueFalse, SimpleValueTrue, SimpleValueNull:
		return nil
	default:
		return ErrDcborConformance
	}
}

// mapOrderTracker enforces RFC 8949 §4.2.1's bytewise-lexicographic
// map key ordering (and, as a side effect, duplicate-key detection)
// across a single map's entries. It compares each label's *encoded*
// bytes, not its decoded value, since "sorted by encoding" is what the
// canonical form actually specifies — two labels that decode equal but
// encode differently (e.g. a non-preferred integer) are still an
// ordering violation.
type mapOrderTracker struct {
	prev []byte
	has  bool
}

// check compares encoded (the current label's raw CBOR bytes) against
// the previous label seen in this map, latching it as the new
// previous on success.
func (t *mapOrderTracker) check(encoded []byte) error {
	if t.has {
		switch bytes.Compare(encoded, t.prev) {
		case 0:
			return ErrDuplicateKey
		case 1:
			// strictly greater than the previous label: fine.
		default:
			return ErrUnsorted
		}
	}
	t.prev = append(t.prev[:0], encoded...)
	t.has = true
	return nil
}
