package cbor

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TagContentCallback inspects or mutates item for the tag number it was
// registered under, returning whether it recognized and consumed that
// tag's content. Returning false leaves the tag on item.Tags untouched,
// same as an unregistered tag number.
type TagContentCallback func(item *Item) bool

// tagContentTable is the caller-installable table of (tag number,
// callback) pairs a Decoder dispatches against, keyed by tag number
// rather than CborTag so callers can register tags this package has no
// named constant for.
type tagContentTable map[uint64]TagContentCallback

// defaultTagContentTable builds the standard callback set: RFC 8949
// §3.4's registry plus the epoch-day and binary-UUID tags the expanded
// tag set adds. Each callback leaves item untouched and returns false
// when item's shape doesn't match what the tag promises, rather than
// guessing, so GetNext's unprocessed-tag-number check (or an explicit
// FlagAllowUnprocessedTagNumbers opt-out) is what decides whether that's
// an error.
//
// TagCWT is deliberately not included: a CBOR Web Token's content
// structure depends on further profile-specific tags this package has
// no business assuming. Callers that want to unwrap one inspect
// item.Tags themselves, or install their own callback for it.
func defaultTagContentTable() tagContentTable {
	return tagContentTable{
		uint64(TagDateTimeString): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemDateString
			return true
		},
		uint64(TagUnixTime): func(item *Item) bool {
			switch item.Type {
			case ItemUnsignedInt, ItemSignedInt, ItemNegative65Bit, ItemFloat16, ItemFloat32, ItemFloat64:
				item.Type = ItemDateEpoch
				return true
			}
			return false
		},
		uint64(TagDaysString): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemDaysString
			return true
		},
		uint64(TagDaysEpoch): func(item *Item) bool {
			switch item.Type {
			case ItemUnsignedInt, ItemSignedInt:
				item.Type = ItemDaysEpoch
				return true
			}
			return false
		},
		uint64(TagURI): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemURI
			return true
		},
		uint64(TagBase64URL): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemBase64URL
			return true
		},
		// Encoding hints for an already-typed byte string: the content
		// keeps its shape, only the hint is consumed.
		uint64(TagExpectedBase64URL): func(item *Item) bool { return item.Type == ItemByteString },
		uint64(TagExpectedBase64):    func(item *Item) bool { return item.Type == ItemByteString },
		uint64(TagExpectedBase16):    func(item *Item) bool { return item.Type == ItemByteString },
		uint64(TagBase64): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemBase64
			return true
		},
		uint64(TagRegularExpression): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemRegex
			return true
		},
		uint64(TagMIMEMessage): func(item *Item) bool {
			if item.Type != ItemTextString {
				return false
			}
			item.Type = ItemMimeText
			return true
		},
		uint64(TagBinaryMIMEMessage): func(item *Item) bool {
			if item.Type != ItemByteString {
				return false
			}
			item.Type = ItemMimeBinary
			return true
		},
		uint64(TagBinaryUUID): func(item *Item) bool {
			if item.Type != ItemByteString || len(item.Bytes) != 16 {
				return false
			}
			item.Type = ItemUUID
			return true
		},
		uint64(TagUnsignedBignum): func(item *Item) bool {
			if item.Type != ItemByteString {
				return false
			}
			item.Type = ItemPosBignum
			return true
		},
		uint64(TagNegativeBignum): func(item *Item) bool {
			if item.Type != ItemByteString {
				return false
			}
			item.Type = ItemNegBignum
			return true
		},
		uint64(TagEncodedCborData): func(item *Item) bool {
			if item.Type != ItemByteString {
				return false
			}
			item.Type = ItemWrappedCBOR
			return true
		},
		uint64(TagEncodedCborSequence): func(item *Item) bool {
			if item.Type != ItemByteString {
				return false
			}
			item.Type = ItemWrappedCBORSequence
			return true
		},
		uint64(TagDecimalFraction): func(item *Item) bool {
			if item.Type != ItemArray || item.Count != 2 {
				return false
			}
			item.Type = ItemDecimalFraction
			return true
		},
		uint64(TagBigFloat): func(item *Item) bool {
			if item.Type != ItemArray || item.Count != 2 {
				return false
			}
			item.Type = ItemBigFloat
			return true
		},
		// A pure wire marker; any content shape is legal underneath it.
		uint64(TagSelfDescribedCbor): func(item *Item) bool { return true },
	}
}

// dispatchTagContent walks item's tag stack innermost first
// (item.Tags[0]), consulting d.tagHandlers for each tag number in turn.
// Dispatch stops at the first tag with no registered callback, or whose
// callback returns false; the remainder of the stack (including that
// tag) is left on item for GetNext's unprocessed-tag-number check to
// judge.
func (d *Decoder) dispatchTagContent(item *Item) *Item {
	for len(item.Tags) > 0 {
		cb, ok := d.tagHandlers[item.Tags[0]]
		if !ok || !cb(item) {
			break
		}
		item.Tags = item.Tags[1:]
	}
	return item
}

// ItemToTime converts an ItemDateString, ItemDateEpoch, ItemDaysString,
// or ItemDaysEpoch item into a time.Time. Any other item type returns
// ErrUnexpectedTagNumber.
func ItemToTime(item *Item) (time.Time, error) {
	switch item.Type {
	case ItemDateString:
		return time.Parse(time.RFC3339, item.Text)
	case ItemDaysString:
		return time.Parse("2006-01-02", item.Text)
	case ItemDateEpoch:
		switch {
		case item.Float != 0 && item.Uint == 0 && item.Int == 0:
			if math.IsNaN(item.Float) || math.IsInf(item.Float, 0) {
				return time.Time{}, ErrDateOverflow
			}
			secs := int64(item.Float)
			nsec := int64((item.Float - float64(secs)) * 1e9)
			return time.Unix(secs, nsec).UTC(), nil
		case item.Int != 0:
			return time.Unix(item.Int, 0).UTC(), nil
		default:
			if item.Uint > math.MaxInt64 {
				return time.Time{}, ErrDateOverflow
			}
			return time.Unix(int64(item.Uint), 0).UTC(), nil
		}
	case ItemDaysEpoch:
		days := item.Int
		if days == 0 {
			days = int64(item.Uint)
		}
		return time.Unix(days*int64((24*time.Hour).Seconds()), 0).UTC(), nil
	default:
		return time.Time{}, ErrUnexpectedTagNumber
	}
}

// ItemToUUID converts an ItemUUID item's 16-byte payload into a
// uuid.UUID.
func ItemToUUID(item *Item) (uuid.UUID, error) {
	if item.Type != ItemUUID {
		return uuid.UUID{}, ErrUnexpectedTagNumber
	}
	return uuid.FromBytes(item.Bytes)
}

// DecodeExpMantissa consumes the two child items of an
// ItemDecimalFraction/ItemBigFloat array (exponent, then mantissa),
// populating item.Exponent and item.MantissaKind and the matching
// mantissa field (Int, Uint, or Bytes per MantissaKind). Call it
// immediately after GetNext returns the array item itself; it leaves
// the Decoder positioned after the array's closing bytes, same as if
// both children (and the implicit close) had been read via plain
// GetNext calls.
func DecodeExpMantissa(d *Decoder, item *Item) error {
	if item.Type != ItemDecimalFraction && item.Type != ItemBigFloat {
		return ErrUnexpectedTagNumber
	}

	expItem, err := d.GetNext()
	if err != nil {
		return err
	}
	switch expItem.Type {
	case ItemUnsignedInt:
		item.Exponent = int64(expItem.Uint)
	case ItemSignedInt:
		item.Exponent = expItem.Int
	default:
		return ErrBadExpAndMantissa
	}

	mantissaItem, err := d.GetNext()
	if err != nil {
		return err
	}
	switch mantissaItem.Type {
	case ItemUnsignedInt:
		item.MantissaKind = MantissaUnsigned
		item.Uint = mantissaItem.Uint
	case ItemSignedInt:
		item.MantissaKind = MantissaSigned
		item.Int = mantissaItem.Int
	case ItemNegative65Bit:
		item.MantissaKind = MantissaNegativeOverflow
		item.Uint = mantissaItem.Uint
	case ItemPosBignum:
		item.MantissaKind = MantissaPosBignum
		item.Bytes = mantissaItem.Bytes
	case ItemNegBignum:
		item.MantissaKind = MantissaNegBignum
		item.Bytes = mantissaItem.Bytes
	default:
		return ErrBadExpAndMantissa
	}

	return nil
}
