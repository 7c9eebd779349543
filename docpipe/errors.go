package docpipe

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures. Callers map kinds to statuses.
type ErrorKind int

const (
	// KindInternal is an unexpected failure, such as a decoder panic.
	KindInternal ErrorKind = iota
	KindPayloadTooLarge
	KindMissingPayload
	KindUnsupportedMediaType
	KindDecodeFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindMissingPayload:
		return "missing_payload"
	case KindUnsupportedMediaType:
		return "unsupported_media_type"
	case KindDecodeFailed:
		return "decode_failed"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is. Match on kind only.
var (
	ErrPayloadTooLarge      = &Error{Kind: KindPayloadTooLarge}
	ErrMissingPayload       = &Error{Kind: KindMissingPayload}
	ErrUnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
	ErrDecodeFailed         = &Error{Kind: KindDecodeFailed}
	ErrInternal             = &Error{Kind: KindInternal}
)

// Error is the typed failure returned by Extract. It carries diagnostics
// (sizes, declared type, decoder cause) but never payload bytes.
type Error struct {
	Kind      ErrorKind
	MediaType string
	Size      int64
	Limit     int64
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPayloadTooLarge:
		return fmt.Sprintf("payload too large: %d bytes (max %d)", e.Size, e.Limit)
	case KindMissingPayload:
		return "missing payload"
	case KindUnsupportedMediaType:
		return "Unsupported mime type: " + e.MediaType
	case KindDecodeFailed:
		return fmt.Sprintf("decode failed: %v", e.Err)
	default:
		return fmt.Sprintf("internal error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
