package cbor

// ItemType discriminates the decoded-item variants a Decoder can produce,
// spanning both the raw wire shapes (integers, strings, aggregates,
// floats, simple values) and the typed shapes tag-content callbacks
// promote generic items into (dates, bignums, UUIDs, wrapped CBOR, ...).
type ItemType int

const (
	ItemInvalid ItemType = iota

	// Raw wire-level shapes.
	ItemUnsignedInt
	ItemSignedInt
	ItemNegative65Bit // magnitude only fits 65 bits; true value is -(Uint+1)
	ItemByteString
	ItemTextString
	ItemArray
	ItemMap
	ItemMapAsArray
	ItemSimple
	ItemBool
	ItemNull
	ItemUndefined
	ItemFloat16
	ItemFloat32
	ItemFloat64
	ItemBreak

	// Tag-content-derived shapes (see tagdispatch.go).
	ItemDateString
	ItemDateEpoch
	ItemDaysString
	ItemDaysEpoch
	ItemURI
	ItemBase64
	ItemBase64URL
	ItemRegex
	ItemMimeText
	ItemMimeBinary
	ItemUUID
	ItemPosBignum
	ItemNegBignum
	ItemDecimalFraction
	ItemBigFloat
	ItemWrappedCBOR
	ItemWrappedCBORSequence
)

// String returns a human-readable name for the item type, used in error
// messages and test failures.
func (t ItemType) String() string {
	switch t {
	case ItemUnsignedInt:
		return "UnsignedInt"
	case ItemSignedInt:
		return "SignedInt"
	case ItemNegative65Bit:
		return "Negative65Bit"
	case ItemByteString:
		return "ByteString"
	case ItemTextString:
		return "TextString"
	case ItemArray:
		return "Array"
	case ItemMap:
		return "Map"
	case ItemMapAsArray:
		return "MapAsArray"
	case ItemSimple:
		return "Simple"
	case ItemBool:
		return "Bool"
	case ItemNull:
		return "Null"
	case ItemUndefined:
		return "Undefined"
	case ItemFloat16:
		return "Float16"
	case ItemFloat32:
		return "Float32"
	case ItemFloat64:
		return "Float64"
	case ItemBreak:
		return "Break"
	case ItemDateString:
		return "DateString"
	case ItemDateEpoch:
		return "DateEpoch"
	case ItemDaysString:
		return "DaysString"
	case ItemDaysEpoch:
		return "DaysEpoch"
	case ItemURI:
		return "URI"
	case ItemBase64:
		return "Base64"
	case ItemBase64URL:
		return "Base64URL"
	case ItemRegex:
		return "Regex"
	case ItemMimeText:
		return "MimeText"
	case ItemMimeBinary:
		return "MimeBinary"
	case ItemUUID:
		return "UUID"
	case ItemPosBignum:
		return "PosBignum"
	case ItemNegBignum:
		return "NegBignum"
	case ItemDecimalFraction:
		return "DecimalFraction"
	case ItemBigFloat:
		return "BigFloat"
	case ItemWrappedCBOR:
		return "WrappedCBOR"
	case ItemWrappedCBORSequence:
		return "WrappedCBORSequence"
	default:
		return "Invalid"
	}
}

// IsAggregate reports whether the item opens an array or map.
func (t ItemType) IsAggregate() bool {
	return t == ItemArray || t == ItemMap || t == ItemMapAsArray
}

// MantissaKind discriminates the representation of a decimal-fraction or
// bigfloat mantissa, populated by the exponent/mantissa callback.
type MantissaKind int

const (
	// MantissaUnsigned: Item.Uint holds the mantissa.
	MantissaUnsigned MantissaKind = iota
	// MantissaSigned: Item.Int holds the mantissa.
	MantissaSigned
	// MantissaNegativeOverflow: the mantissa is a 65-bit negative value
	// that doesn't fit int64; Item.Uint holds the raw argument, true
	// value is -(Uint+1). Kept distinct from MantissaNegBignum per the
	// resolution recorded in DESIGN.md.
	MantissaNegativeOverflow
	// MantissaPosBignum: Item.Bytes holds a positive bignum's big-endian
	// magnitude.
	MantissaPosBignum
	// MantissaNegBignum: Item.Bytes holds a negative bignum's big-endian
	// magnitude (true value is -(n+1) where n is the magnitude).
	MantissaNegBignum
)

// Item is the decoded-item record produced by Decoder.GetNext and the
// spiffy-decode accessors. Go has no tagged unions, so Item carries every
// payload kind behind the Type discriminator; callers read only the
// field(s) appropriate to Type.
type Item struct {
	Type ItemType

	// Scalar payloads. Uint/Int/Float are populated according to Type;
	// Bool for ItemBool.
	Uint  uint64
	Int   int64
	Float float64
	Bool  bool

	// String/byte payloads. For definite-length byte strings Bytes
	// slices directly into the decoder's input buffer (zero-copy); for
	// indefinite-length byte strings it slices into the installed
	// Allocator's arena. Text-string items carry their content only in
	// Text, a Go string copied from those bytes; Bytes is nil for them.
	Bytes []byte
	Text  string

	// Aggregate item count. -1 signals indefinite length.
	Count int64

	// Mantissa/exponent fields, populated for ItemDecimalFraction and
	// ItemBigFloat by the exponent/mantissa tag-content callback.
	Exponent     int64
	MantissaKind MantissaKind

	// Map entry label, non-nil only for items produced while traversing
	// a real map (not map-as-array). LabelOffset is the label's start
	// offset in the input, used for duplicate/order conformance checks.
	Label       *Item
	LabelOffset int

	// Tag numbers remaining on this item, innermost first (Tags[0] is
	// the tag number closest to the content; Tags[len-1] is outermost).
	// Tag-content dispatch consumes entries from the front; whatever
	// remains after dispatch is what a spiffy accessor or strict GetNext
	// checks against FlagAllowUnprocessedTagNumbers.
	Tags []uint64

	// Traversal bookkeeping.
	NestingLevel     int
	NextNestingLevel int
	Offset           int
}

// HasTag reports whether tag is still present on the item's tag stack.
func (it *Item) HasTag(tag CborTag) bool {
	for _, t := range it.Tags {
		if t == uint64(tag) {
			return true
		}
	}
	return false
}

// consumeTag removes the first occurrence of tag from the stack (used by
// tag-content callbacks once they've acted on it).
func (it *Item) consumeTag(tag uint64) bool {
	for i, t := range it.Tags {
		if t == tag {
			it.Tags = append(it.Tags[:i], it.Tags[i+1:]...)
			return true
		}
	}
	return false
}
