package cbor

import (
	"io"
	"testing"
)

func TestDecoderEmptyMap(t *testing.T) {
	d := NewDecoder([]byte{0xA0})

	item, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if item.Type != ItemMap || item.Count != 0 {
		t.Fatalf("expected empty ItemMap, got %+v", item)
	}

	if _, err := d.GetNext(); err != io.EOF {
		t.Fatalf("expected io.EOF after the empty map, got %v", err)
	}
}

func TestDecoderTaggedDateEpoch(t *testing.T) {
	d := NewDecoder([]byte{0xC1, 0x00}) // tag(1) 0

	item, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if item.Type != ItemDateEpoch {
		t.Fatalf("expected ItemDateEpoch, got %v", item.Type)
	}

	when, err := ItemToTime(item)
	if err != nil {
		t.Fatalf("ItemToTime failed: %v", err)
	}
	if when.Unix() != 0 {
		t.Fatalf("expected Unix epoch, got %v", when)
	}
}

func TestDecoderIndefiniteTextStringRejectedWithoutAllocator(t *testing.T) {
	// 0x7F "a" "b" break
	data := []byte{0x7F, 0x61, 'a', 0x61, 'b', 0xFF}
	d := NewDecoder(data)

	if _, err := d.GetNext(); err != ErrNoStringAllocator {
		t.Fatalf("expected ErrNoStringAllocator, got %v", err)
	}
}

func TestDecoderIndefiniteTextStringReassembledThroughAllocator(t *testing.T) {
	data := []byte{0x7F, 0x61, 'a', 0x61, 'b', 0xFF}
	d := NewDecoder(data, WithDecoderAllocator(NewBumpAllocator(make([]byte, 16))))

	item, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if item.Type != ItemTextString || item.Text != "ab" {
		t.Fatalf("expected reassembled text \"ab\", got %+v", item)
	}
}

func TestDecoderIndefiniteByteStringReassembledThroughAllocator(t *testing.T) {
	data := []byte{0x5F, 0x42, 0x01, 0x02, 0x41, 0x03, 0xFF} // (_ h'0102', h'03')
	alloc := NewBumpAllocator(make([]byte, 16))
	d := NewDecoder(data, WithDecoderAllocator(alloc))

	item, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if item.Type != ItemByteString || string(item.Bytes) != "\x01\x02\x03" {
		t.Fatalf("expected reassembled bytes [1 2 3], got %+v", item)
	}
	if alloc.Used() != 3 {
		t.Fatalf("expected the allocator to have grown to 3 bytes used, got %d", alloc.Used())
	}
}

func TestDecoderIndefiniteStringRejectsMismatchedChunkType(t *testing.T) {
	// (_ h'01', "x") — a text-string chunk inside a byte string.
	data := []byte{0x5F, 0x41, 0x01, 0x61, 'x', 0xFF}
	d := NewDecoder(data, WithDecoderAllocator(NewBumpAllocator(make([]byte, 16))))

	if _, err := d.GetNext(); err != ErrIndefiniteStringChunk {
		t.Fatalf("expected ErrIndefiniteStringChunk, got %v", err)
	}
}

func TestDecoderIndefiniteStringRejectsNestedIndefiniteChunk(t *testing.T) {
	// (_ (_ "a")) — an indefinite-length chunk nested inside an indefinite
	// text string, which is never legal CBOR.
	data := []byte{0x7F, 0x7F, 0x61, 'a', 0xFF, 0xFF}
	d := NewDecoder(data, WithDecoderAllocator(NewBumpAllocator(make([]byte, 16))))

	if _, err := d.GetNext(); err != ErrIndefiniteStringChunk {
		t.Fatalf("expected ErrIndefiniteStringChunk, got %v", err)
	}
}

func TestDecoderIndefiniteArray(t *testing.T) {
	data := []byte{0x9F, 0x01, 0x02, 0xFF} // [_ 1, 2]
	d := NewDecoder(data)

	arr, err := d.GetNext()
	if err != nil || arr.Type != ItemArray || arr.Count != -1 {
		t.Fatalf("expected indefinite ItemArray, got %+v, err %v", arr, err)
	}

	first, err := d.GetNext()
	if err != nil || first.Type != ItemUnsignedInt || first.Uint != 1 {
		t.Fatalf("expected first element 1, got %+v, err %v", first, err)
	}

	second, err := d.GetNext()
	if err != nil || second.Type != ItemUnsignedInt || second.Uint != 2 {
		t.Fatalf("expected second element 2, got %+v, err %v", second, err)
	}

	if _, err := d.GetNext(); err != io.EOF {
		t.Fatalf("expected io.EOF after the array's break, got %v", err)
	}
}

func TestDecoderMapAsArray(t *testing.T) {
	data := []byte{0xA2, 0x01, 0x02, 0x03, 0x04} // {1: 2, 3: 4}
	d := NewDecoder(data, WithDecoderFlags(FlagMapAsArray))

	header, err := d.GetNext()
	if err != nil || header.Type != ItemMapAsArray || header.Count != 4 {
		t.Fatalf("expected ItemMapAsArray count 4, got %+v, err %v", header, err)
	}

	want := []uint64{1, 2, 3, 4}
	for _, w := range want {
		item, err := d.GetNext()
		if err != nil {
			t.Fatalf("GetNext failed: %v", err)
		}
		if item.Type != ItemUnsignedInt || item.Uint != w {
			t.Fatalf("expected %d, got %+v", w, item)
		}
		if item.Label != nil {
			t.Fatalf("map-as-array items should not carry a Label, got %+v", item.Label)
		}
	}

	if _, err := d.GetNext(); err != io.EOF {
		t.Fatalf("expected io.EOF after all four flattened entries, got %v", err)
	}
}

func TestDecoderMapCoalescesLabelAndValue(t *testing.T) {
	data := []byte{0xA1, 0x61, 'k', 0x05} // {"k": 5}
	d := NewDecoder(data)

	mapItem, err := d.GetNext()
	if err != nil || mapItem.Type != ItemMap || mapItem.Count != 1 {
		t.Fatalf("expected ItemMap count 1, got %+v, err %v", mapItem, err)
	}

	entry, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if entry.Type != ItemUnsignedInt || entry.Uint != 5 {
		t.Fatalf("expected value 5, got %+v", entry)
	}
	if entry.Label == nil || entry.Label.Type != ItemTextString || entry.Label.Text != "k" {
		t.Fatalf("expected label \"k\", got %+v", entry.Label)
	}

	if _, err := d.GetNext(); err != io.EOF {
		t.Fatalf("expected io.EOF after the map's single entry, got %v", err)
	}
}

func TestDecoderBstrWrappedCBOR(t *testing.T) {
	// tag(24) h'05' wraps a single encoded item: the integer 5.
	data := []byte{0xD8, 0x18, 0x41, 0x05}
	d := NewDecoder(data)

	wrapped, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if wrapped.Type != ItemWrappedCBOR {
		t.Fatalf("expected ItemWrappedCBOR, got %v", wrapped.Type)
	}

	if err := d.EnterBstrWrapped(wrapped); err != nil {
		t.Fatalf("EnterBstrWrapped failed: %v", err)
	}

	inner, err := d.GetNext()
	if err != nil || inner.Type != ItemUnsignedInt || inner.Uint != 5 {
		t.Fatalf("expected wrapped value 5, got %+v, err %v", inner, err)
	}

	if err := d.ExitBstrWrapped(); err != nil {
		t.Fatalf("ExitBstrWrapped failed: %v", err)
	}

	if _, err := d.GetNext(); err != io.EOF {
		t.Fatalf("expected io.EOF after exiting the wrapped region, got %v", err)
	}
}

func TestDecoderTagAccumulationOrder(t *testing.T) {
	// tag(32) tag(0) "2020-01-01T00:00:00Z" — URI wrapping a date-time
	// string tag. tag(0) is innermost (closest to the text content), so
	// dispatchTagContent applies it first and the item becomes an
	// ItemDateString; the TagURI callback then declines an item that is
	// no longer a plain text string, so TagURI is left unprocessed.
	text := "2020-01-01T00:00:00Z"
	data := []byte{0xD8, 0x20, 0xC0, byte(0x60 + len(text))}
	data = append(data, []byte(text)...)

	d := NewDecoder(data, WithDecoderFlags(FlagAllowUnprocessedTagNumbers))
	item, err := d.GetNext()
	if err != nil {
		t.Fatalf("GetNext failed: %v", err)
	}
	if item.Type != ItemDateString {
		t.Fatalf("expected ItemDateString (innermost tag wins), got %v", item.Type)
	}
	if !item.HasTag(TagURI) {
		t.Fatalf("expected TagURI to remain on the item's tag stack, got %v", item.Tags)
	}
}

func TestDecoderUnprocessedTagNumberIsAnError(t *testing.T) {
	text := "2020-01-01T00:00:00Z"
	data := []byte{0xD8, 0x20, 0xC0, byte(0x60 + len(text))}
	data = append(data, []byte(text)...)

	d := NewDecoder(data)
	if _, err := d.GetNext(); err != ErrUnprocessedTagNumber {
		t.Fatalf("expected ErrUnprocessedTagNumber without the opt-out flag, got %v", err)
	}
}

func TestDecoderNextTagNumberDoesNotConsume(t *testing.T) {
	data := []byte{0xC1, 0x00} // tag(1) 0
	d := NewDecoder(data)

	tag, ok, err := d.NextTagNumber()
	if err != nil || !ok || tag != uint64(TagUnixTime) {
		t.Fatalf("expected tag %d, got %d ok=%v err=%v", TagUnixTime, tag, ok, err)
	}

	// Calling it again at the same offset should be idempotent.
	tag2, ok2, err2 := d.NextTagNumber()
	if err2 != nil || !ok2 || tag2 != tag {
		t.Fatalf("expected repeatable peek, got %d ok=%v err=%v", tag2, ok2, err2)
	}

	item, err := d.GetNext()
	if err != nil || item.Type != ItemDateEpoch {
		t.Fatalf("cursor peek should not have consumed anything, GetNext got %+v err %v", item, err)
	}
}

func TestDecoderNextTagNumberOnUntaggedItem(t *testing.T) {
	data := []byte{0x05}
	d := NewDecoder(data)

	_, ok, err := d.NextTagNumber()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an untagged item, not an error")
	}

	item, err := d.GetNext()
	if err != nil || item.Type != ItemUnsignedInt || item.Uint != 5 {
		t.Fatalf("expected the untagged item to still be readable, got %+v err %v", item, err)
	}
}
