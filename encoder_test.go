package cbor

import (
	"math/big"
	"testing"
	"time"
)

func TestEncoderOpenArrayRoundTrip(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	if err := e.OpenArray(); err != nil {
		t.Fatalf("OpenArray failed: %v", err)
	}
	for _, v := range []uint64{1, 2, 3} {
		if err := w.WriteUint64(v); err != nil {
			t.Fatalf("WriteUint64 failed: %v", err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A definite-length array of 3 small ints encodes in 4 bytes: 0x83 01 02 03.
	want := []byte{0x83, 0x01, 0x02, 0x03}
	if string(w.Bytes()) != string(want) {
		t.Fatalf("expected minimal head %x, got %x", want, w.Bytes())
	}

	d := NewDecoder(w.Bytes())
	arr, err := d.GetNext()
	if err != nil || arr.Type != ItemArray || arr.Count != 3 {
		t.Fatalf("expected ItemArray count 3, got %+v, err %v", arr, err)
	}
	for _, want := range []uint64{1, 2, 3} {
		item, err := d.GetNext()
		if err != nil || item.Uint != want {
			t.Fatalf("expected %d, got %+v, err %v", want, item, err)
		}
	}
}

func TestEncoderOpenMapRoundTrip(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	if err := e.OpenMap(); err != nil {
		t.Fatalf("OpenMap failed: %v", err)
	}
	w.WriteTextString("a")
	w.WriteUint64(1)
	w.WriteTextString("b")
	w.WriteUint64(2)
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	mapItem, err := d.GetNext()
	if err != nil || mapItem.Type != ItemMap || mapItem.Count != 2 {
		t.Fatalf("expected ItemMap count 2, got %+v, err %v", mapItem, err)
	}

	value, err := FindInMap(d, mapItem, "b")
	if err != nil || value.Uint != 2 {
		t.Fatalf("expected 2, got %+v, err %v", value, err)
	}
}

func TestEncoderNestedOpens(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	if err := e.OpenArray(); err != nil {
		t.Fatalf("outer OpenArray failed: %v", err)
	}
	if err := e.OpenArray(); err != nil {
		t.Fatalf("inner OpenArray failed: %v", err)
	}
	w.WriteUint64(9)
	if err := e.Close(); err != nil {
		t.Fatalf("inner Close failed: %v", err)
	}
	w.WriteUint64(10)
	if err := e.Close(); err != nil {
		t.Fatalf("outer Close failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	outer, err := d.GetNext()
	if err != nil || outer.Type != ItemArray || outer.Count != 2 {
		t.Fatalf("expected outer array count 2, got %+v, err %v", outer, err)
	}
	inner, err := d.GetNext()
	if err != nil || inner.Type != ItemArray || inner.Count != 1 {
		t.Fatalf("expected inner array count 1, got %+v, err %v", inner, err)
	}
	nine, err := d.GetNext()
	if err != nil || nine.Uint != 9 {
		t.Fatalf("expected 9, got %+v, err %v", nine, err)
	}
	ten, err := d.GetNext()
	if err != nil || ten.Uint != 10 {
		t.Fatalf("expected 10, got %+v, err %v", ten, err)
	}
}

func TestEncoderCloseWithDanglingKeyFails(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	if err := e.OpenMap(); err != nil {
		t.Fatalf("OpenMap failed: %v", err)
	}
	w.WriteTextString("k") // label written, value missing

	if err := e.Close(); err != ErrArrayOrMapUnconsumed {
		t.Fatalf("expected ErrArrayOrMapUnconsumed, got %v", err)
	}
}

func TestEncoderCloseWithoutOpenFails(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	if err := e.Close(); err != ErrTooManyCloses {
		t.Fatalf("expected ErrTooManyCloses, got %v", err)
	}
}

func TestEncoderOpenArrayRejectedWhenIndefiniteDisabled(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w, WithEncoderFlags(FlagEncodeNoIndefiniteLength))

	if err := e.OpenArray(); err != ErrIndefiniteArraysDisabled {
		t.Fatalf("expected ErrIndefiniteArraysDisabled, got %v", err)
	}
}

func TestEncoderWritePosBignumFallsBackToFixedWidth(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	if err := e.WritePosBignum(big.NewInt(42)); err != nil {
		t.Fatalf("WritePosBignum failed: %v", err)
	}
	if string(w.Bytes()) != string([]byte{0x18, 42}) {
		t.Fatalf("expected fixed-width encoding, got %x", w.Bytes())
	}

	d := NewDecoder(w.Bytes())
	item, err := d.GetNext()
	if err != nil || item.Type != ItemUnsignedInt || item.Uint != 42 {
		t.Fatalf("expected plain unsigned int 42, got %+v, err %v", item, err)
	}
}

func TestEncoderWritePosBignumUsesTagWhenTooLarge(t *testing.T) {
	huge, ok := new(big.Int).SetString("99999999999999999999999999999999", 10)
	if !ok {
		t.Fatal("failed to parse test bignum")
	}

	w := NewCborWriter()
	e := NewEncoder(w)
	if err := e.WritePosBignum(huge); err != nil {
		t.Fatalf("WritePosBignum failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	item, err := d.GetNext()
	if err != nil || item.Type != ItemPosBignum {
		t.Fatalf("expected ItemPosBignum, got %+v, err %v", item, err)
	}
	got := new(big.Int).SetBytes(item.Bytes)
	if got.Cmp(huge) != 0 {
		t.Fatalf("expected %v, got %v", huge, got)
	}
}

func TestEncoderWriteNegBignum(t *testing.T) {
	huge, ok := new(big.Int).SetString("-99999999999999999999999999999999", 10)
	if !ok {
		t.Fatal("failed to parse test bignum")
	}

	w := NewCborWriter()
	e := NewEncoder(w)
	if err := e.WriteNegBignum(huge); err != nil {
		t.Fatalf("WriteNegBignum failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	item, err := d.GetNext()
	if err != nil || item.Type != ItemNegBignum {
		t.Fatalf("expected ItemNegBignum, got %+v, err %v", item, err)
	}

	magnitude := new(big.Int).SetBytes(item.Bytes)
	got := new(big.Int).Neg(magnitude)
	got.Sub(got, big.NewInt(1))
	if got.Cmp(huge) != 0 {
		t.Fatalf("expected %v, got %v", huge, got)
	}
}

func TestEncoderWriteNegBignumRejectsNonNegative(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)
	if err := e.WriteNegBignum(big.NewInt(5)); err != ErrNumberSignConversion {
		t.Fatalf("expected ErrNumberSignConversion, got %v", err)
	}
}

func TestEncoderWriteDaysEpochRoundTrip(t *testing.T) {
	w := NewCborWriter()
	e := NewEncoder(w)

	when := time.Date(2021, 1, 3, 15, 30, 0, 0, time.UTC)
	if err := e.WriteDaysEpoch(when); err != nil {
		t.Fatalf("WriteDaysEpoch failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	item, err := d.GetNext()
	if err != nil || item.Type != ItemDaysEpoch {
		t.Fatalf("expected ItemDaysEpoch, got %+v, err %v", item, err)
	}

	got, err := ItemToTime(item)
	if err != nil {
		t.Fatalf("ItemToTime failed: %v", err)
	}
	want := time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEncoderWriteWrappedCBOR(t *testing.T) {
	inner := NewCborWriter()
	inner.WriteUint64(99)

	w := NewCborWriter()
	e := NewEncoder(w)
	if err := e.WriteWrappedCBOR(inner.Bytes()); err != nil {
		t.Fatalf("WriteWrappedCBOR failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	wrapped, err := d.GetNext()
	if err != nil || wrapped.Type != ItemWrappedCBOR {
		t.Fatalf("expected ItemWrappedCBOR, got %+v, err %v", wrapped, err)
	}

	if err := d.EnterBstrWrapped(wrapped); err != nil {
		t.Fatalf("EnterBstrWrapped failed: %v", err)
	}
	value, err := d.GetNext()
	if err != nil || value.Uint != 99 {
		t.Fatalf("expected 99, got %+v, err %v", value, err)
	}
	if err := d.ExitBstrWrapped(); err != nil {
		t.Fatalf("ExitBstrWrapped failed: %v", err)
	}
}

func TestEncoderWriteWrappedCBORSequence(t *testing.T) {
	seq := NewCborWriter()
	seq.WriteUint64(1)
	seq.WriteUint64(2)

	w := NewCborWriter()
	e := NewEncoder(w)
	if err := e.WriteWrappedCBORSequence(seq.Bytes()); err != nil {
		t.Fatalf("WriteWrappedCBORSequence failed: %v", err)
	}

	d := NewDecoder(w.Bytes())
	wrapped, err := d.GetNext()
	if err != nil || wrapped.Type != ItemWrappedCBORSequence {
		t.Fatalf("expected ItemWrappedCBORSequence, got %+v, err %v", wrapped, err)
	}

	if err := d.EnterBstrWrapped(wrapped); err != nil {
		t.Fatalf("EnterBstrWrapped failed: %v", err)
	}
	first, err := d.GetNext()
	if err != nil || first.Uint != 1 {
		t.Fatalf("expected 1, got %+v, err %v", first, err)
	}
	second, err := d.GetNext()
	if err != nil || second.Uint != 2 {
		t.Fatalf("expected 2, got %+v, err %v", second, err)
	}
	if d.Reader().BytesRemaining() != 0 {
		t.Fatalf("expected the sequence to be fully consumed")
	}
}
