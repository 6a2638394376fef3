package cbor

import (
	"math/big"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
)

// Encoder builds a CBOR document on top of a CborWriter, adding the
// layer the atomic writer doesn't have on its own: open-ended arrays
// and maps whose item count isn't known until the caller is done
// appending to them, plus typed tagged writers for the
// shapes tagdispatch.go knows how to read back.
//
// Unlike CborWriter's WriteStartArray(length), which must be told the
// final count up front, Encoder.OpenArray/OpenMap let the caller write
// items first and supply the count on Close. This costs a buffer
// splice on Close (the worst-case 9-byte head reserved at Open time is
// shrunk to the minimal encoding once the true count is known), which
// is why CborWriter's direct API remains the cheaper choice whenever
// the count is known ahead of time.
type Encoder struct {
	w      *CborWriter
	flags  EncoderFlags
	opens  []openFrame
	logger log.Logger
}

type openFrame struct {
	headOffset int // offset in w.buffer where the reserved head begins
	isMap      bool
	count      int64
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderFlags sets the EncoderFlags governing sorted-map,
// dCBOR-simple, and indefinite-length policy on OpenArray/OpenMap and
// the typed tagged writers.
func WithEncoderFlags(flags EncoderFlags) EncoderOption {
	return func(e *Encoder) { e.flags = flags }
}

// NewEncoder wraps w for open-ended aggregate support. w should be
// freshly constructed or at least not have any aggregates open already.
func NewEncoder(w *CborWriter, opts ...EncoderOption) *Encoder {
	e := &Encoder{w: w, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// logEncodeError emits a debug-level log line for err, then returns it
// unchanged so call sites can wrap fallible operations with
// `return e.logEncodeError(op, err)`.
func (e *Encoder) logEncodeError(op string, err error) error {
	if err == nil || e.logger == nil {
		return err
	}
	level.Debug(e.logger).Log("msg", "cbor encode error", "op", op, "err", err)
	return err
}

// Writer returns the underlying CborWriter, for callers that want to
// mix direct Write* calls with OpenArray/OpenMap.
func (e *Encoder) Writer() *CborWriter {
	return e.w
}

// reservedHeadSize is the number of bytes writeReservedHead always
// spends on the initial byte plus (conservatively) a 64-bit length
// argument, regardless of how small the eventual count turns out to
// be. Close() shrinks this down to the minimal encoding.
const reservedHeadSize = 9

// writeReservedHead appends a 9-byte placeholder head (major type mt,
// AdditionalInfo64Bit, eight zero length bytes) so the true count can
// be patched in later without having shifted any content that follows
// it during the open aggregate's lifetime.
func (e *Encoder) writeReservedHead(mt MajorType) {
	e.w.buffer = append(e.w.buffer, encodeInitialByte(mt, byte(AdditionalInfo64Bit)))
	e.w.buffer = append(e.w.buffer, 0, 0, 0, 0, 0, 0, 0, 0)
	e.w.currentOffset = len(e.w.buffer)
}

// OpenArray begins an array whose length will be supplied on Close.
func (e *Encoder) OpenArray() error {
	if e.flags.Has(FlagEncodeNoIndefiniteLength) {
		return e.logEncodeError("OpenArray", ErrIndefiniteArraysDisabled)
	}
	if err := e.w.checkNestingDepth(); err != nil {
		return e.logEncodeError("OpenArray", err)
	}
	head := len(e.w.buffer)
	e.writeReservedHead(MajorTypeArray)
	e.w.nestingStack = append(e.w.nestingStack, nestingInfo{majorType: MajorTypeArray})
	e.opens = append(e.opens, openFrame{headOffset: head, isMap: false})
	return nil
}

// OpenMap begins a map whose entry count will be supplied on Close.
// The caller must write labels and values in strict alternation, same
// as CborWriter.WriteStartMap.
func (e *Encoder) OpenMap() error {
	if e.flags.Has(FlagEncodeNoIndefiniteLength) {
		return e.logEncodeError("OpenMap", ErrIndefiniteArraysDisabled)
	}
	if err := e.w.checkNestingDepth(); err != nil {
		return e.logEncodeError("OpenMap", err)
	}
	head := len(e.w.buffer)
	e.writeReservedHead(MajorTypeMap)
	e.w.nestingStack = append(e.w.nestingStack, nestingInfo{majorType: MajorTypeMap, isMap: true})
	e.opens = append(e.opens, openFrame{headOffset: head, isMap: true})
	return nil
}

// Close finishes the innermost open array or map, replacing its
// reserved 9-byte head with the minimal encoding of the true item
// count and splicing the buffer to remove the now-unused placeholder
// bytes.
func (e *Encoder) Close() error {
	if len(e.opens) == 0 {
		return e.logEncodeError("Close", ErrTooManyCloses)
	}
	frame := e.opens[len(e.opens)-1]
	e.opens = e.opens[:len(e.opens)-1]

	info := e.w.nestingStack[len(e.w.nestingStack)-1]
	e.w.nestingStack = e.w.nestingStack[:len(e.w.nestingStack)-1]

	count := info.itemsWritten
	if info.isMap && info.keyWritten {
		return e.logEncodeError("Close", ErrArrayOrMapUnconsumed)
	}

	mt := MajorTypeArray
	if frame.isMap {
		mt = MajorTypeMap
	}

	tmp := NewCborWriter()
	tmp.writeMinimalInitialByte(mt, uint64(count))
	minimal := tmp.Bytes()

	tail := append([]byte(nil), e.w.buffer[frame.headOffset+reservedHeadSize:]...)
	e.w.buffer = append(e.w.buffer[:frame.headOffset], minimal...)
	e.w.buffer = append(e.w.buffer, tail...)
	e.w.currentOffset = len(e.w.buffer)

	e.w.advanceContainer()
	return nil
}

// WriteUUID encodes value as a byte string tagged TagBinaryUUID.
func (e *Encoder) WriteUUID(value uuid.UUID) error {
	if err := e.w.WriteTag(TagBinaryUUID); err != nil {
		return err
	}
	raw, _ := value.MarshalBinary()
	return e.w.WriteByteString(raw)
}

// WritePosBignum encodes a non-negative big.Int as a tagged bignum,
// using the fixed-width integer encoding when it fits instead of
// falling back to the tag per RFC 8949 §3.4.3's preferred-serialization
// note.
func (e *Encoder) WritePosBignum(value *big.Int) error {
	if value.Sign() < 0 {
		return ErrNumberSignConversion
	}
	if value.IsUint64() {
		return e.w.WriteUint64(value.Uint64())
	}
	if err := e.w.WriteTag(TagUnsignedBignum); err != nil {
		return err
	}
	return e.w.WriteByteString(value.Bytes())
}

// WriteNegBignum encodes a negative big.Int (true value n, n < 0) as a
// tagged bignum whose byte string holds the magnitude -(n+1).
func (e *Encoder) WriteNegBignum(value *big.Int) error {
	if value.Sign() >= 0 {
		return ErrNumberSignConversion
	}
	if value.IsInt64() {
		return e.w.WriteInt64(value.Int64())
	}
	magnitude := new(big.Int).Neg(value)
	magnitude.Sub(magnitude, big.NewInt(1))
	if err := e.w.WriteTag(TagNegativeBignum); err != nil {
		return err
	}
	return e.w.WriteByteString(magnitude.Bytes())
}

// WriteDaysEpoch encodes t, truncated to a UTC calendar day, as a
// TagDaysEpoch day count.
func (e *Encoder) WriteDaysEpoch(t time.Time) error {
	if err := e.w.WriteTag(TagDaysEpoch); err != nil {
		return err
	}
	days := t.UTC().Truncate(24 * time.Hour).Unix() / int64((24 * time.Hour).Seconds())
	return e.w.WriteInt64(days)
}

// WriteWrappedCBOR encodes data (itself a complete, already-encoded
// CBOR item) as a byte string tagged TagEncodedCborData.
func (e *Encoder) WriteWrappedCBOR(data []byte) error {
	if err := e.w.WriteTag(TagEncodedCborData); err != nil {
		return err
	}
	return e.w.WriteByteString(data)
}

// WriteWrappedCBORSequence encodes data (a concatenation of zero or
// more complete CBOR items) as a byte string tagged
// TagEncodedCborSequence.
func (e *Encoder) WriteWrappedCBORSequence(data []byte) error {
	if err := e.w.WriteTag(TagEncodedCborSequence); err != nil {
		return err
	}
	return e.w.WriteByteString(data)
}

// WriteExpMantissaUint encodes a decimal-fraction or bigfloat with an
// unsigned mantissa: [exponent, mantissa]. tag should be
// TagDecimalFraction or TagBigFloat.
func (e *Encoder) WriteExpMantissaUint(tag CborTag, exponent int64, mantissa uint64) error {
	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	if err := e.w.WriteStartArray(2); err != nil {
		return err
	}
	if err := e.w.WriteInt64(exponent); err != nil {
		return err
	}
	return e.w.WriteUint64(mantissa)
}

// WriteExpMantissaBig encodes a decimal-fraction or bigfloat whose
// mantissa doesn't fit a machine integer, using the positive/negative
// bignum encoding for the mantissa slot.
func (e *Encoder) WriteExpMantissaBig(tag CborTag, exponent int64, mantissa *big.Int) error {
	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	if err := e.w.WriteStartArray(2); err != nil {
		return err
	}
	if err := e.w.WriteInt64(exponent); err != nil {
		return err
	}
	if mantissa.Sign() < 0 {
		return e.WriteNegBignum(mantissa)
	}
	return e.WritePosBignum(mantissa)
}
