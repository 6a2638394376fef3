package cbor

import (
	"fmt"

	"github.com/google/uuid"
)

// TagRequirement governs how a typed accessor treats a tag number that
// tagdispatch.go's automatic reclassification didn't already consume
// (custom, unregistered tags only — a registered tag like
// TagBinaryUUID is stripped by dispatch before a spiffy accessor ever
// sees the item, so accessors for those shapes don't take a
// TagRequirement at all).
type TagRequirement int

const (
	// RequireTag fails with ErrMissingTagNumber unless tag is present.
	RequireTag TagRequirement = iota
	// NotATag fails with ErrUnexpectedTagNumber if tag is present.
	NotATag
	// OptionalTag accepts the item whether or not tag is present.
	OptionalTag
	// AllowAdditional accepts the item regardless of what other tags
	// (including tag) remain; it exists to document intent at call
	// sites that deliberately don't care, rather than behaving
	// differently from OptionalTag.
	AllowAdditional
)

func checkTagRequirement(item *Item, req TagRequirement, tag CborTag) error {
	has := item.HasTag(tag)
	switch req {
	case RequireTag:
		if !has {
			return ErrMissingTagNumber
		}
	case NotATag:
		if has {
			return ErrUnexpectedTagNumber
		}
	}
	return nil
}

// ItemTypeMismatchError reports that a spiffy accessor's GetNext call
// produced an item of the wrong ItemType.
type ItemTypeMismatchError struct {
	Expected ItemType
	Actual   ItemType
}

func (e *ItemTypeMismatchError) Error() string {
	return fmt.Sprintf("cbor: expected item type %s but got %s", e.Expected, e.Actual)
}

func itemTypeError(got, want ItemType) error {
	return &ItemTypeMismatchError{Expected: want, Actual: got}
}

// GetNextUnsignedInt fetches the next item as an unsigned integer,
// applying req against tag for any custom tag number left on the item.
func GetNextUnsignedInt(d *Decoder, req TagRequirement, tag CborTag) (uint64, error) {
	item, err := d.GetNext()
	if err != nil {
		return 0, err
	}
	if item.Type != ItemUnsignedInt {
		return 0, itemTypeError(item.Type, ItemUnsignedInt)
	}
	if err := checkTagRequirement(item, req, tag); err != nil {
		return 0, err
	}
	return item.Uint, nil
}

// GetNextInt64 fetches the next item as a signed integer (either
// major-type-0 or major-type-1, as long as it fits an int64), applying
// req against tag for any custom tag number left on the item.
func GetNextInt64(d *Decoder, req TagRequirement, tag CborTag) (int64, error) {
	item, err := d.GetNext()
	if err != nil {
		return 0, err
	}
	var val int64
	switch item.Type {
	case ItemSignedInt:
		val = item.Int
	case ItemUnsignedInt:
		if item.Uint > 1<<63-1 {
			return 0, ErrOverflow
		}
		val = int64(item.Uint)
	default:
		return 0, itemTypeError(item.Type, ItemSignedInt)
	}
	if err := checkTagRequirement(item, req, tag); err != nil {
		return 0, err
	}
	return val, nil
}

// GetNextTextString fetches the next item as a text string, applying
// req against tag for any custom tag number left on the item.
func GetNextTextString(d *Decoder, req TagRequirement, tag CborTag) (string, error) {
	item, err := d.GetNext()
	if err != nil {
		return "", err
	}
	if item.Type != ItemTextString {
		return "", itemTypeError(item.Type, ItemTextString)
	}
	if err := checkTagRequirement(item, req, tag); err != nil {
		return "", err
	}
	return item.Text, nil
}

// GetNextByteString fetches the next item as a byte string, applying
// req against tag for any custom tag number left on the item.
func GetNextByteString(d *Decoder, req TagRequirement, tag CborTag) ([]byte, error) {
	item, err := d.GetNext()
	if err != nil {
		return nil, err
	}
	if item.Type != ItemByteString {
		return nil, itemTypeError(item.Type, ItemByteString)
	}
	if err := checkTagRequirement(item, req, tag); err != nil {
		return nil, err
	}
	return item.Bytes, nil
}

// GetNextBool fetches the next item as a boolean.
func GetNextBool(d *Decoder) (bool, error) {
	item, err := d.GetNext()
	if err != nil {
		return false, err
	}
	if item.Type != ItemBool {
		return false, itemTypeError(item.Type, ItemBool)
	}
	return item.Bool, nil
}

// GetNextUUID fetches the next item, which must already have been
// reclassified to ItemUUID by tag-content dispatch, as a uuid.UUID.
func GetNextUUID(d *Decoder) (uuid.UUID, error) {
	item, err := d.GetNext()
	if err != nil {
		return uuid.UUID{}, err
	}
	return ItemToUUID(item)
}

// FindInMap scans every entry of mapItem (which must be the ItemMap
// just returned by GetNext, with its children not yet consumed) for a
// text-string label equal to label, returning that entry's value item.
// It fully drains the map's entries in the process — this is a linear
// scan, not an index — and fails with ErrDuplicateLabel if more than
// one entry matches. Indefinite-length maps aren't supported by this
// accessor (ErrUnsupported): their entry count isn't known up front,
// so driving the scan would require the caller to watch for the break
// marker itself via plain GetNext instead.
func FindInMap(d *Decoder, mapItem *Item, label string) (*Item, error) {
	if mapItem.Type != ItemMap {
		return nil, ErrNotAMap
	}
	if mapItem.Count < 0 {
		return nil, ErrUnsupported
	}

	var found *Item
	for i := int64(0); i < mapItem.Count; i++ {
		item, err := d.GetNext()
		if err != nil {
			return nil, err
		}
		if item.Label == nil || item.Label.Type != ItemTextString || item.Label.Text != label {
			continue
		}
		if found != nil {
			return nil, ErrDuplicateLabel
		}
		found = item
	}
	if found == nil {
		return nil, ErrLabelNotFound
	}
	return found, nil
}

// FindInMapByInt is FindInMap's counterpart for integer labels.
func FindInMapByInt(d *Decoder, mapItem *Item, label int64) (*Item, error) {
	if mapItem.Type != ItemMap {
		return nil, ErrNotAMap
	}
	if mapItem.Count < 0 {
		return nil, ErrUnsupported
	}

	var found *Item
	for i := int64(0); i < mapItem.Count; i++ {
		item, err := d.GetNext()
		if err != nil {
			return nil, err
		}
		if item.Label == nil {
			continue
		}
		var labelVal int64
		switch item.Label.Type {
		case ItemUnsignedInt:
			labelVal = int64(item.Label.Uint)
		case ItemSignedInt:
			labelVal = item.Label.Int
		default:
			continue
		}
		if labelVal != label {
			continue
		}
		if found != nil {
			return nil, ErrDuplicateLabel
		}
		found = item
	}
	if found == nil {
		return nil, ErrLabelNotFound
	}
	return found, nil
}
