package cbor

import (
	"testing"

	"github.com/google/uuid"
)

func TestGetNextUnsignedIntTagRequirement(t *testing.T) {
	w := NewCborWriter()
	if err := w.WriteTag(TagDaysEpoch); err != nil {
		t.Fatalf("WriteTag failed: %v", err)
	}
	if err := w.WriteUint64(5); err != nil {
		t.Fatalf("WriteUint64 failed: %v", err)
	}

	// TagDaysEpoch is a registered tag: tagdispatch.go would normally
	// reclassify this to ItemDaysEpoch, so exercise RequireTag against a
	// custom tag number the registry doesn't know about instead.
	w2 := NewCborWriter()
	const customTag CborTag = 9000
	if err := w2.WriteTag(customTag); err != nil {
		t.Fatalf("WriteTag failed: %v", err)
	}
	if err := w2.WriteUint64(5); err != nil {
		t.Fatalf("WriteUint64 failed: %v", err)
	}

	d := NewDecoder(w2.Bytes(), WithDecoderFlags(FlagAllowUnprocessedTagNumbers))
	got, err := GetNextUnsignedInt(d, RequireTag, customTag)
	if err != nil || got != 5 {
		t.Fatalf("GetNextUnsignedInt = %d, %v, want 5, nil", got, err)
	}

	d2 := NewDecoder(w2.Bytes(), WithDecoderFlags(FlagAllowUnprocessedTagNumbers))
	if _, err := GetNextUnsignedInt(d2, NotATag, customTag); err != ErrUnexpectedTagNumber {
		t.Fatalf("expected ErrUnexpectedTagNumber, got %v", err)
	}

	plain := NewCborWriter()
	plain.WriteUint64(7)
	d3 := NewDecoder(plain.Bytes())
	if _, err := GetNextUnsignedInt(d3, RequireTag, customTag); err != ErrMissingTagNumber {
		t.Fatalf("expected ErrMissingTagNumber, got %v", err)
	}
}

func TestGetNextUnsignedIntTypeMismatch(t *testing.T) {
	w := NewCborWriter()
	w.WriteTextString("nope")
	d := NewDecoder(w.Bytes())

	_, err := GetNextUnsignedInt(d, OptionalTag, TagDaysEpoch)
	mismatch, ok := err.(*ItemTypeMismatchError)
	if !ok {
		t.Fatalf("expected *ItemTypeMismatchError, got %T (%v)", err, err)
	}
	if mismatch.Expected != ItemUnsignedInt || mismatch.Actual != ItemTextString {
		t.Fatalf("unexpected mismatch detail: %+v", mismatch)
	}
}

func TestGetNextInt64AcceptsBothMajorTypes(t *testing.T) {
	w := NewCborWriter()
	w.WriteInt64(5)
	w.WriteInt64(-5)
	d := NewDecoder(w.Bytes())

	v1, err := GetNextInt64(d, OptionalTag, TagDaysEpoch)
	if err != nil || v1 != 5 {
		t.Fatalf("expected 5, got %d, err %v", v1, err)
	}
	v2, err := GetNextInt64(d, OptionalTag, TagDaysEpoch)
	if err != nil || v2 != -5 {
		t.Fatalf("expected -5, got %d, err %v", v2, err)
	}
}

func TestGetNextInt64OverflowsOnHugeUnsigned(t *testing.T) {
	w := NewCborWriter()
	w.WriteUint64(1 << 63)
	d := NewDecoder(w.Bytes())

	if _, err := GetNextInt64(d, OptionalTag, TagDaysEpoch); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestGetNextTextStringAndByteString(t *testing.T) {
	w := NewCborWriter()
	w.WriteTextString("hi")
	w.WriteByteString([]byte{1, 2, 3})
	d := NewDecoder(w.Bytes())

	s, err := GetNextTextString(d, OptionalTag, TagURI)
	if err != nil || s != "hi" {
		t.Fatalf("expected \"hi\", got %q, err %v", s, err)
	}

	b, err := GetNextByteString(d, OptionalTag, TagUnsignedBignum)
	if err != nil || string(b) != "\x01\x02\x03" {
		t.Fatalf("expected [1 2 3], got %v, err %v", b, err)
	}
}

func TestGetNextBool(t *testing.T) {
	w := NewCborWriter()
	w.WriteBoolean(true)
	d := NewDecoder(w.Bytes())

	v, err := GetNextBool(d)
	if err != nil || !v {
		t.Fatalf("expected true, got %v, err %v", v, err)
	}
}

func TestGetNextUUID(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)
	id := uuid.New()
	if err := e.WriteUUID(id); err != nil {
		t.Fatalf("WriteUUID failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	got, err := GetNextUUID(d)
	if err != nil || got != id {
		t.Fatalf("GetNextUUID = %v, %v, want %v, nil", got, err, id)
	}
}

func TestFindInMapByString(t *testing.T) {
	w := NewCborWriter()
	if err := w.WriteStartMap(2); err != nil {
		t.Fatalf("WriteStartMap failed: %v", err)
	}
	w.WriteTextString("name")
	w.WriteTextString("alice")
	w.WriteTextString("age")
	w.WriteUint64(30)

	d := NewDecoder(w.Bytes())
	mapItem, err := d.GetNext()
	if err != nil || mapItem.Type != ItemMap {
		t.Fatalf("expected ItemMap, got %+v, err %v", mapItem, err)
	}

	value, err := FindInMap(d, mapItem, "age")
	if err != nil {
		t.Fatalf("FindInMap failed: %v", err)
	}
	if value.Type != ItemUnsignedInt || value.Uint != 30 {
		t.Fatalf("expected 30, got %+v", value)
	}
}

func TestFindInMapNotFound(t *testing.T) {
	w := NewCborWriter()
	w.WriteStartMap(1)
	w.WriteTextString("name")
	w.WriteTextString("alice")

	d := NewDecoder(w.Bytes())
	mapItem, _ := d.GetNext()

	if _, err := FindInMap(d, mapItem, "missing"); err != ErrLabelNotFound {
		t.Fatalf("expected ErrLabelNotFound, got %v", err)
	}
}

func TestFindInMapByIntLabel(t *testing.T) {
	w := NewCborWriter()
	w.WriteStartMap(2)
	w.WriteInt64(1)
	w.WriteTextString("one")
	w.WriteInt64(2)
	w.WriteTextString("two")

	d := NewDecoder(w.Bytes())
	mapItem, _ := d.GetNext()

	value, err := FindInMapByInt(d, mapItem, 2)
	if err != nil || value.Type != ItemTextString || value.Text != "two" {
		t.Fatalf("expected \"two\", got %+v, err %v", value, err)
	}
}

func TestFindInMapRejectsNonMap(t *testing.T) {
	d := NewDecoder([]byte{0x05})
	if _, err := FindInMap(d, &Item{Type: ItemUnsignedInt}, "x"); err != ErrNotAMap {
		t.Fatalf("expected ErrNotAMap, got %v", err)
	}
}

func TestFindInMapRejectsIndefiniteLength(t *testing.T) {
	d := NewDecoder([]byte{0xBF, 0xFF})
	if _, err := FindInMap(d, &Item{Type: ItemMap, Count: -1}, "x"); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
