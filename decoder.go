package cbor

import (
	"io"
	"math"
	"unicode/utf8"

	"github.com/go-kit/kit/log"
	"github.com/x448/float16"
)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderFlags sets the DecoderFlags governing map-as-array mode,
// conformance restrictions, and unprocessed-tag-number strictness.
// The same flags are also threaded down to the wrapped CborReader so
// head-level checks (preferred numbers, indefinite length) agree with
// traversal-level checks.
func WithDecoderFlags(flags DecoderFlags) DecoderOption {
	return func(d *Decoder) { d.flags = flags }
}

// WithDecoderAllocator installs the arena used to reassemble
// indefinite-length byte/text strings. Without one, indefinite-length
// strings are rejected with ErrNoStringAllocator rather than reassembled
// on the heap; definite-length strings are always zero-copy slices of
// the input regardless and never need an allocator.
func WithDecoderAllocator(a Allocator) DecoderOption {
	return func(d *Decoder) { d.alloc = a }
}

// WithDecoderMaxNestingDepth bounds how many array/map frames may be
// open simultaneously. Byte-string-wrapped regions are not counted.
func WithDecoderMaxNestingDepth(depth int) DecoderOption {
	return func(d *Decoder) { d.maxNestingDepth = depth }
}

// WithDecoderTagCallback installs cb as the content callback for tag,
// replacing whichever standard callback (if any) is registered for it
// by default. Passing a nil cb removes the tag from the table entirely,
// so an item carrying that tag number is left unprocessed for GetNext's
// unprocessed-tag-number check to catch — the "tag present but no
// callback registered for it" case.
func WithDecoderTagCallback(tag CborTag, cb TagContentCallback) DecoderOption {
	return func(d *Decoder) {
		if d.tagHandlers == nil {
			d.tagHandlers = tagContentTable{}
		}
		if cb == nil {
			delete(d.tagHandlers, uint64(tag))
			return
		}
		d.tagHandlers[uint64(tag)] = cb
	}
}

// WithDecoderNoDefaultTagCallbacks clears the tag-content callback
// table, standard callbacks included. Options apply in the order given,
// so WithDecoderTagCallback options placed after it are kept and those
// placed before it are cleared too.
func WithDecoderNoDefaultTagCallbacks() DecoderOption {
	return func(d *Decoder) { d.tagHandlers = tagContentTable{} }
}

// Decoder walks a CBOR document one logical item at a time, building
// on top of CborReader's atomic/head layer with the traversal
// machinery spec'd for this package: tag-number accumulation across an
// item's leading tags, map label/value coalescing, map-as-array mode,
// and byte-string-wrapped CBOR (tags 24/63) entry/exit.
//
// A Decoder is single-pass and not safe for concurrent use.
type Decoder struct {
	r     *CborReader
	flags DecoderFlags
	alloc Allocator

	frames          *nestingStack
	maxNestingDepth int

	tagTable    bigTagTable
	tagStack    tagNumberStack
	tagHandlers tagContentTable

	bstr []bstrFrame

	logger log.Logger
}

// bstrFrame captures the state needed to resume the outer buffer once
// EnterBstrWrapped's inner traversal exits via ExitBstrWrapped.
type bstrFrame struct {
	outerData    []byte
	outerOffset  int
	outerNesting []readerNestingInfo // copy of the reader's container stack
	frameDepth   int                 // d.frames.depth() at the moment the wrapped region was entered
}

// NewDecoder constructs a Decoder over data. The standard tag-content
// callbacks (epoch date/days, strings, MIME, UUID, bignum, wrapped
// CBOR, decimal fraction/bigfloat) are registered by default; use
// WithDecoderTagCallback to override or remove one, or
// WithDecoderNoDefaultTagCallbacks to start from an empty table.
func NewDecoder(data []byte, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		maxNestingDepth: DefaultMaxNestingDepth,
		logger:          log.NewNopLogger(),
		tagHandlers:     defaultTagContentTable(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.r = NewCborReader(data,
		WithReaderFlags(d.flags),
		WithReaderMaxNestingDepth(d.maxNestingDepth),
	)
	d.frames = newNestingStack(d.maxNestingDepth)
	return d
}

// Reader returns the underlying CborReader, for callers that need
// atomic-layer primitives (e.g. ReadEncodedValue for a dispatch
// callback that wants the raw bytes of the current item).
func (d *Decoder) Reader() *CborReader {
	return d.r
}

// currentFrame returns the innermost open frame, or nil at the root.
func (d *Decoder) currentFrame() *decoderFrame {
	return d.frames.top()
}

// GetNext returns the next logical item in document order, or io.EOF
// once the root value is exhausted. Entering an array or map is
// itself an item (Type ItemArray/ItemMap/ItemMapAsArray, Count set);
// its children are returned by subsequent calls, and the container's
// close is consumed internally without a separate visible item —
// NestingLevel/NextNestingLevel on the surrounding items reflect the
// transition instead.
func (d *Decoder) GetNext() (*Item, error) {
	for {
		state, err := d.r.PeekState()
		if err != nil {
			return nil, d.logDecodeError("PeekState", err)
		}

		switch state {
		case StateFinished:
			return nil, io.EOF

		case StateEndArray:
			if err := d.r.ReadEndArray(); err != nil {
				return nil, d.logDecodeError("ReadEndArray", err)
			}
			if _, ok := d.frames.pop(); !ok {
				return nil, d.logDecodeError("ReadEndArray", ErrCloseMismatch)
			}
			continue

		case StateEndMap:
			if err := d.r.ReadEndMap(); err != nil {
				return nil, d.logDecodeError("ReadEndMap", err)
			}
			if _, ok := d.frames.pop(); !ok {
				return nil, d.logDecodeError("ReadEndMap", ErrCloseMismatch)
			}
			continue
		}

		item, err := d.readItem(true)
		if err != nil {
			return nil, d.logDecodeError("readItem", err)
		}
		return item, nil
	}
}

// readItem decodes one tag-prefixed item: it accumulates any leading
// tag numbers, decodes the underlying value, and applies tag-content
// dispatch. With coalesce set and a real map frame enclosing the item,
// the item is that map's label: an array or map there is
// ErrMapLabelType, and any other label is paired with the value item
// read right after it (which is itself read with coalesce unset).
func (d *Decoder) readItem(coalesce bool) (*Item, error) {
	offset := d.r.CurrentOffset()
	nestingLevel := d.frames.depth()
	parent := d.currentFrame()

	tags, err := d.readTagNumbers()
	if err != nil {
		return nil, err
	}

	item, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	item.Tags = tags
	item.Offset = offset
	item.NestingLevel = nestingLevel

	item = d.dispatchTagContent(item)

	if len(item.Tags) > 0 && !d.flags.Has(FlagAllowUnprocessedTagNumbers) {
		return nil, ErrUnprocessedTagNumber
	}

	if coalesce && parent != nil && parent.isMap() {
		if d.frames.depth() != nestingLevel {
			return nil, ErrMapLabelType
		}
		if label, value, merged, mErr := d.tryCoalesceMapEntry(parent, item); mErr != nil {
			return nil, mErr
		} else if merged {
			item = value
			item.Label = label
			item.LabelOffset = offset
		}
	}

	item.NextNestingLevel = d.frames.depth()
	return item, nil
}

// tryCoalesceMapEntry applies the label checks (FlagMapStringsOnly,
// FlagOnlySortedMaps) to label, a non-aggregate item read in frame's
// label position, and decodes the paired value item, returning both.
// merged is true whenever err is nil.
func (d *Decoder) tryCoalesceMapEntry(frame *decoderFrame, label *Item) (*Item, *Item, bool, error) {
	if d.flags.Has(FlagMapStringsOnly) && label.Type != ItemTextString && label.Type != ItemByteString {
		return nil, nil, false, ErrMapLabelType
	}
	if d.flags.Has(FlagOnlySortedMaps) {
		encoded := d.r.data[label.Offset:d.r.CurrentOffset()]
		if err := frame.order.check(encoded); err != nil {
			return nil, nil, false, err
		}
	}

	value, err := d.readItem(false)
	if err != nil {
		return nil, nil, false, err
	}
	return label, value, true, nil
}

// readTagNumbers consumes every leading StateTag item, accumulating
// tag numbers in wire order and handing back the innermost-first
// slice via tagNumberStack.finalize. When a tag number cannot be
// stored (MaxTagsPerItem or the big-tag table exceeded), the remaining
// tag numbers are still read off the wire and ErrTooManyTags is
// returned with the reader positioned on the tag content.
func (d *Decoder) readTagNumbers() ([]uint64, error) {
	d.tagStack.reset()
	tooMany := false
	for {
		state, err := d.r.PeekState()
		if err != nil {
			return nil, err
		}
		if state != StateTag {
			break
		}
		tag, err := d.r.ReadTag()
		if err != nil {
			return nil, err
		}
		if !d.tagStack.push(&d.tagTable, uint64(tag)) {
			tooMany = true
		}
	}
	if tooMany {
		return nil, ErrTooManyTags
	}
	return d.tagStack.finalize(&d.tagTable), nil
}

// decodeValue reads the single wire-level item (no tag numbers, no map
// coalescing) currently at the reader's position, pushing a frame for
// arrays/maps it opens.
func (d *Decoder) decodeValue() (*Item, error) {
	state, err := d.r.PeekState()
	if err != nil {
		return nil, err
	}

	switch state {
	case StateUnsignedInteger:
		v, err := d.r.ReadUint64()
		if err != nil {
			return nil, err
		}
		return &Item{Type: ItemUnsignedInt, Uint: v}, nil

	case StateNegativeInteger:
		raw, err := d.r.ReadNegativeIntegerRaw()
		if err != nil {
			return nil, err
		}
		if raw > maxInt64AsUint {
			return &Item{Type: ItemNegative65Bit, Uint: raw}, nil
		}
		return &Item{Type: ItemSignedInt, Int: -1 - int64(raw)}, nil

	case StateByteString:
		b, err := d.r.ReadByteString()
		if err != nil {
			return nil, err
		}
		end := d.r.offset
		return &Item{Type: ItemByteString, Bytes: d.r.data[end-len(b) : end : end]}, nil

	case StateStartIndefiniteLengthByteString:
		b, err := d.reassembleIndefiniteString(MajorTypeByteString)
		if err != nil {
			return nil, err
		}
		return &Item{Type: ItemByteString, Bytes: b}, nil

	case StateTextString:
		s, err := d.r.ReadTextString()
		if err != nil {
			return nil, err
		}
		return &Item{Type: ItemTextString, Text: s}, nil

	case StateStartIndefiniteLengthTextString:
		b, err := d.reassembleIndefiniteString(MajorTypeTextString)
		if err != nil {
			return nil, err
		}
		return &Item{Type: ItemTextString, Text: string(b)}, nil

	case StateStartArray:
		n, err := d.r.ReadStartArray()
		if err != nil {
			return nil, err
		}
		if err := d.frames.push(decoderFrame{kind: frameArray, indefinite: n < 0}); err != nil {
			return nil, err
		}
		return &Item{Type: ItemArray, Count: int64(n)}, nil

	case StateStartMap:
		n, err := d.r.ReadStartMap()
		if err != nil {
			return nil, err
		}
		if d.flags.Has(FlagMapAsArray) {
			if err := d.frames.push(decoderFrame{kind: frameMapAsArray, indefinite: n < 0}); err != nil {
				return nil, err
			}
			count := int64(n)
			if n >= 0 {
				count *= 2
			}
			return &Item{Type: ItemMapAsArray, Count: count}, nil
		}
		if err := d.frames.push(decoderFrame{kind: frameMap, indefinite: n < 0}); err != nil {
			return nil, err
		}
		return &Item{Type: ItemMap, Count: int64(n)}, nil

	case StateSimpleValue:
		v, err := d.r.ReadSimpleValue()
		if err != nil {
			return nil, err
		}
		if d.flags.Has(FlagDisallowDcborSimples) {
			if err := ValidateDcborSimple(v); err != nil {
				return nil, err
			}
		}
		return &Item{Type: ItemSimple, Uint: uint64(v)}, nil

	case StateBoolean:
		v, err := d.r.ReadBoolean()
		if err != nil {
			return nil, err
		}
		return &Item{Type: ItemBool, Bool: v}, nil

	case StateNull:
		if err := d.r.ReadNull(); err != nil {
			return nil, err
		}
		return &Item{Type: ItemNull}, nil

	case StateUndefinedValue:
		if err := d.r.ReadUndefined(); err != nil {
			return nil, err
		}
		if d.flags.Has(FlagDisallowDcborSimples) {
			return nil, ValidateDcborSimple(SimpleValueUndefined)
		}
		return &Item{Type: ItemUndefined}, nil

	case StateHalfPrecisionFloat:
		v, err := d.r.ReadFloat16()
		if err != nil {
			return nil, err
		}
		return &Item{Type: ItemFloat16, Float: float64(v)}, nil

	case StateSinglePrecisionFloat:
		v, err := d.r.ReadFloat32()
		if err != nil {
			return nil, err
		}
		if d.flags.Has(FlagOnlyReducedFloats) && !math.IsNaN(float64(v)) && float16.Fromfloat32(v).Float32() == v {
			return nil, ErrPreferredConformance
		}
		return &Item{Type: ItemFloat32, Float: float64(v)}, nil

	case StateDoublePrecisionFloat:
		v, err := d.r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		if d.flags.Has(FlagOnlyReducedFloats) && !math.IsNaN(v) && float64(float32(v)) == v {
			return nil, ErrPreferredConformance
		}
		return &Item{Type: ItemFloat64, Float: v}, nil

	default:
		return nil, ErrInvalidCbor
	}
}

// maxInt64AsUint is the raw negative-integer argument above which the
// true value -1-raw no longer fits an int64.
const maxInt64AsUint = 1<<63 - 1

// reassembleIndefiniteString reads an indefinite-length byte/text string
// (the reader's cursor sitting on its opening byte, major is
// MajorTypeByteString or MajorTypeTextString) chunk by chunk, growing a
// single arena allocation to the cumulative length as each definite-length
// chunk is appended. Without an installed Allocator this is rejected
// outright: the decoder never reassembles piecewise strings on the heap
// itself. Each chunk must be definite-length and of the same major type as
// the string being reassembled; anything else is ErrIndefiniteStringChunk.
func (d *Decoder) reassembleIndefiniteString(major MajorType) ([]byte, error) {
	if d.alloc == nil {
		return nil, ErrNoStringAllocator
	}

	r := d.r
	if r.conformanceMode >= ConformanceCanonical || r.flags.Has(FlagNoIndefiniteLength) {
		return nil, ErrIndefiniteLengthNotAllowed
	}

	r.offset++ // skip the indefinite-length initial byte
	r.invalidateState()

	var buf []byte
	for {
		if r.offset >= len(r.data) {
			return nil, ErrUnexpectedEndOfData
		}
		if r.data[r.offset] == breakByte {
			r.offset++
			break
		}

		mt, ai := decodeInitialByte(r.data[r.offset])
		if mt != major || ai == byte(AdditionalInfoIndefiniteLength) {
			return nil, ErrIndefiniteStringChunk
		}

		length, err := r.readArgumentValue(major)
		if err != nil {
			return nil, err
		}
		if r.offset+int(length) > len(r.data) {
			return nil, ErrUnexpectedEndOfData
		}
		chunk := r.data[r.offset : r.offset+int(length)]

		if major == MajorTypeTextString && r.conformanceMode >= ConformanceStrict && !utf8.Valid(chunk) {
			return nil, ErrInvalidUtf8
		}

		grown, err := d.alloc.Reallocate(buf, len(buf)+len(chunk))
		if err != nil {
			return nil, err
		}
		copy(grown[len(buf):], chunk)
		buf = grown
		r.offset += int(length)
	}

	r.advanceContainer()
	return buf, nil
}

// EnterBstrWrapped switches the Decoder's traversal onto the byte
// string carried by item, which must be tagged TagEncodedCborData (24)
// or TagEncodedCborSequence (63) and already dispatched to
// ItemWrappedCBOR/ItemWrappedCBORSequence by tagdispatch.go. Subsequent
// GetNext calls walk the wrapped bytes until ExitBstrWrapped (for a
// single wrapped item) or the wrapped bytes are exhausted (for a
// sequence, checked by the caller via BytesRemaining).
func (d *Decoder) EnterBstrWrapped(item *Item) error {
	if item.Type != ItemWrappedCBOR && item.Type != ItemWrappedCBORSequence {
		return ErrUnexpectedTagNumber
	}
	d.bstr = append(d.bstr, bstrFrame{
		outerData:    d.r.data,
		outerOffset:  d.r.offset,
		outerNesting: append([]readerNestingInfo(nil), d.r.nestingStack...),
		frameDepth:   d.frames.depth(),
	})
	d.r.ResetWithData(item.Bytes)
	return nil
}

// ExitBstrWrapped resumes traversal of the outer document after a
// single wrapped item (ItemWrappedCBOR) has been fully read. It is an
// error to call this with unconsumed bytes or open frames remaining in
// the wrapped region.
func (d *Decoder) ExitBstrWrapped() error {
	if len(d.bstr) == 0 {
		return ErrMapNotEntered
	}
	frame := d.bstr[len(d.bstr)-1]
	if d.frames.depth() != frame.frameDepth {
		return ErrArrayOrMapStillOpen
	}
	if d.r.BytesRemaining() > 0 {
		return ErrExtraItems
	}
	d.bstr = d.bstr[:len(d.bstr)-1]
	d.r.data = frame.outerData
	d.r.offset = frame.outerOffset
	d.r.nestingStack = frame.outerNesting
	d.r.invalidateState()
	return nil
}

// NextTagNumber peeks the next tag number without consuming anything
// else, resetting per the current offset: calling it again at the
// same offset (no intervening GetNext) returns the same answer. It
// returns ok=false (not an error) when the next item carries no tag
// number at all: a
// bare cursor read over an untagged item succeeds without consuming
// anything, rather than failing.
func (d *Decoder) NextTagNumber() (tag uint64, ok bool, err error) {
	state, err := d.r.PeekState()
	if err != nil {
		return 0, false, err
	}
	if state != StateTag {
		return 0, false, nil
	}
	savedOffset := d.r.offset
	savedComputed := d.r.stateComputed
	savedCached := d.r.cachedState
	t, err := d.r.ReadTag()
	d.r.offset = savedOffset
	d.r.stateComputed = savedComputed
	d.r.cachedState = savedCached
	if err != nil {
		return 0, false, err
	}
	return uint64(t), true, nil
}
