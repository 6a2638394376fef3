package cbor

import (
	"errors"
	"fmt"
)

// Well-formedness errors: the input bytes do not describe a legal CBOR
// item at all.
var (
	ErrUnexpectedEndOfData  = errors.New("cbor: unexpected end of data")
	ErrInvalidCbor          = errors.New("cbor: invalid CBOR data")
	ErrInvalidMajorType     = errors.New("cbor: invalid major type")
	ErrInvalidSimpleValue   = errors.New("cbor: invalid simple value")
	ErrInvalidUtf8          = errors.New("cbor: invalid UTF-8 in text string")
	ErrUnexpectedBreak      = errors.New("cbor: unexpected break")
	ErrIndefiniteStringChunk = errors.New("cbor: indefinite-length string chunk has wrong type or is itself indefinite")
	ErrBadInteger           = errors.New("cbor: malformed integer argument")
)

// Supportability errors: well-formed CBOR that this build/configuration
// declines to decode.
var (
	ErrUnsupported              = errors.New("cbor: unsupported additional-info value")
	ErrTagsDisabled             = errors.New("cbor: tag numbers disabled by configuration")
	ErrIndefiniteArraysDisabled = errors.New("cbor: indefinite-length arrays/maps disabled by configuration")
	ErrIndefiniteStringsDisabled = errors.New("cbor: indefinite-length strings disabled by configuration")
	ErrAllFloatDisabled         = errors.New("cbor: floating-point support disabled by configuration")
	ErrHalfPrecisionDisabled    = errors.New("cbor: half-precision float support disabled by configuration")
	ErrHardwareFloatDisabled    = errors.New("cbor: hardware float widening disabled by configuration")
)

// Structural-limit errors: well-formed CBOR that exceeds a configured
// bound.
var (
	ErrNestingDepthExceeded = errors.New("cbor: maximum nesting depth exceeded")
	ErrArrayTooLong         = errors.New("cbor: array or map item count exceeds configured maximum")
	ErrTooManyTags          = errors.New("cbor: too many tag numbers on a single item")
	ErrStringTooLong        = errors.New("cbor: string length exceeds configured maximum")
	ErrInputTooLarge        = errors.New("cbor: input buffer exceeds configured maximum")
)

// Aggregate-balance errors: the caller's sequence of enter/exit/close
// operations does not match the open aggregates.
var (
	ErrArrayOrMapStillOpen   = errors.New("cbor: array or map still open")
	ErrCloseMismatch         = errors.New("cbor: close does not match the open aggregate")
	ErrTooManyCloses         = errors.New("cbor: more closes than opens")
	ErrArrayOrMapUnconsumed  = errors.New("cbor: array or map has unconsumed items")
	ErrMissingBreak          = errors.New("cbor: missing break for indefinite-length item")
	ErrIncompleteContainer   = errors.New("cbor: incomplete container")
	ErrExtraItems            = errors.New("cbor: extra items in container")
)

// Lookup errors: map/label search failures.
var (
	ErrLabelNotFound  = errors.New("cbor: label not found in map")
	ErrDuplicateLabel = errors.New("cbor: duplicate label in map")
	ErrMapNotEntered  = errors.New("cbor: no map is currently entered")
	ErrNotAMap        = errors.New("cbor: current aggregate is not a map")
	ErrMapLabelType   = errors.New("cbor: map label has an unsupported type")
)

// Type errors: item present but of the wrong shape for the requested
// operation.
var (
	ErrUnexpectedTagNumber   = errors.New("cbor: unexpected tag number")
	ErrMissingTagNumber      = errors.New("cbor: expected tag number is missing")
	ErrUnprocessedTagNumber  = errors.New("cbor: tag number was not consumed before the tagged item")
	ErrBadExpAndMantissa     = errors.New("cbor: malformed exponent/mantissa pair")
)

// Domain errors: a value decoded correctly but is out of range for its
// semantic type.
var (
	ErrDateOverflow               = errors.New("cbor: date value overflows")
	ErrOverflow                   = errors.New("cbor: integer overflow")
	ErrConversionUnderOverflow    = errors.New("cbor: numeric conversion under/overflow")
	ErrNumberSignConversion       = errors.New("cbor: cannot represent value with requested sign")
)

// Resource errors: the caller-supplied buffers/allocator could not
// satisfy the request.
var (
	ErrBufferTooSmall     = errors.New("cbor: buffer too small")
	ErrBufferTooLarge     = errors.New("cbor: buffer too large")
	ErrStringAllocate     = errors.New("cbor: string allocator failed")
	ErrNoStringAllocator  = errors.New("cbor: indefinite-length string requires a string allocator")
	ErrMemPoolSize        = errors.New("cbor: memory pool size exceeded")
)

// Conformance errors: decoding succeeded but violates an opted-in
// conformance policy.
var (
	ErrPreferredConformance        = errors.New("cbor: not in preferred serialization")
	ErrDcborConformance             = errors.New("cbor: violates dCBOR restrictions")
	ErrUnsorted                     = errors.New("cbor: map keys are not sorted")
	ErrCantCheckFloatConformance    = errors.New("cbor: cannot check float conformance with reduced-float support compiled out")
	ErrNonCanonical                 = errors.New("cbor: non-canonical encoding")
	ErrIndefiniteLengthNotAllowed   = errors.New("cbor: indefinite length not allowed in canonical mode")
	ErrDuplicateKey                 = errors.New("cbor: duplicate key in map")
	ErrUnsortedKeys                 = ErrUnsorted
)

// Callback errors: a registered tag-content callback failed.
var (
	ErrCallbackFail            = errors.New("cbor: tag-content callback failed")
	ErrUnrecoverableTagContent = errors.New("cbor: tag-content callback left the item in an unrecoverable state")
)

// Miscellaneous, kept from the atomic reader/writer layer.
var (
	ErrInvalidState = errors.New("cbor: invalid reader state for this operation")
	ErrNotAtEnd     = errors.New("cbor: unexpected data after root value")
)

// unrecoverable lists the errors that leave traversal state invalid, so a
// LatchedDecoder must stop processing entirely rather than merely report
// and continue. Every other error is treated as recoverable: the caller
// may retry the same operation, skip the item, or otherwise keep going.
var unrecoverable = map[error]bool{
	ErrUnexpectedEndOfData:       true,
	ErrInvalidCbor:               true,
	ErrInvalidMajorType:          true,
	ErrUnexpectedBreak:           true,
	ErrIndefiniteStringChunk:     true,
	ErrBadInteger:                true,
	ErrNestingDepthExceeded:      true,
	ErrMissingBreak:              true,
	ErrCloseMismatch:             true,
	ErrTooManyCloses:             true,
	ErrArrayOrMapStillOpen:       true,
	ErrArrayOrMapUnconsumed:      true,
	ErrIncompleteContainer:       true,
	ErrExtraItems:                true,
	ErrUnsupported:               true,
}

// Recoverable reports whether err (or its deepest wrapped cause) leaves
// the decoder in a state from which traversal can continue. Label/type
// mismatches and out-of-range conversions are recoverable; truncated
// input, broken breaks, and nesting violations are not.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	cause := err
	for {
		if unrecoverable[cause] {
			return false
		}
		unwrapped := errors.Unwrap(cause)
		if unwrapped == nil {
			break
		}
		cause = unwrapped
	}
	return true
}

// CborError annotates a sentinel error with the byte offset at which it
// occurred and an optional human-readable message.
type CborError struct {
	Err     error
	Offset  int
	Message string
}

func (e *CborError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cbor error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("cbor error at offset %d: %v", e.Offset, e.Err)
}

func (e *CborError) Unwrap() error {
	return e.Err
}

// NewCborError creates a new CborError.
func NewCborError(err error, offset int, message string) *CborError {
	return &CborError{Err: err, Offset: offset, Message: message}
}

// TypeMismatchError is returned when the expected type doesn't match the
// actual type.
type TypeMismatchError struct {
	Expected CborReaderState
	Actual   CborReaderState
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cbor: expected %s but got %s", e.Expected, e.Actual)
}

// LatchedDecoder wraps a Decoder so that once an error occurs, every
// subsequent operation is a no-op returning the same latched error. This
// lets a caller chain many spiffy-decode calls and check the error once
// at the end, instead of threading it through every call site. The latch
// is set by any unrecoverable error, or by the first recoverable error of
// a sequence (it does not reset on success).
type LatchedDecoder struct {
	d   *Decoder
	err error
}

// NewLatchedDecoder wraps d for latched-error-style decoding.
func NewLatchedDecoder(d *Decoder) *LatchedDecoder {
	return &LatchedDecoder{d: d}
}

// Err returns the first error latched since construction, or nil.
func (l *LatchedDecoder) Err() error {
	return l.err
}

// latch records err if it is the first error seen (recoverable or not).
// It returns the decoder's usable state: once latched, callers should
// stop issuing further operations against the wrapped Decoder directly.
func (l *LatchedDecoder) latch(err error) error {
	if err != nil && l.err == nil {
		l.err = err
	}
	return l.err
}

// GetNext proxies Decoder.GetNext, short-circuiting once latched.
func (l *LatchedDecoder) GetNext() *Item {
	if l.err != nil {
		return nil
	}
	item, err := l.d.GetNext()
	if l.latch(err) != nil {
		return nil
	}
	return item
}
