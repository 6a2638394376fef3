package cbor

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// WithDecoderLogger installs logger on a Decoder. Every recoverable
// error the Decoder returns from GetNext is also logged at debug
// level before being returned, so a host application can enable CBOR
// tracing without threading its own wrapper around every call site.
// The zero Decoder logs nothing (logger defaults to log.NewNopLogger()).
func WithDecoderLogger(logger log.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithEncoderLogger installs logger on an Encoder, used the same way
// as WithDecoderLogger: OpenArray/OpenMap/Close failures are logged at
// debug level.
func WithEncoderLogger(logger log.Logger) EncoderOption {
	return func(e *Encoder) {
		e.logger = logger
	}
}

// logDecodeError emits a debug-level log line for err if d has a
// logger installed, then returns err unchanged so call sites can wrap
// every fallible operation with `return d.logDecodeError(op, err)`.
func (d *Decoder) logDecodeError(op string, err error) error {
	if err == nil || d.logger == nil {
		return err
	}
	level.Debug(d.logger).Log(
		"msg", "cbor decode error",
		"op", op,
		"offset", d.r.CurrentOffset(),
		"err", err,
	)
	return err
}
