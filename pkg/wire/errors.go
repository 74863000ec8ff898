package wire

import "fmt"

// Wire error codes, partitioned by range: 100-199 protocol, 200-299
// resource, 300-399 validation.
const (
	ErrCodeVersionMismatch = 100
	ErrCodeInvalidMessage  = 101

	ErrCodeNotFound    = 200
	ErrCodeUnavailable = 201

	ErrCodeHashMismatch = 300
	ErrCodeInvalidData  = 301
)

// ErrorCodeName returns the human-readable name for a wire error code.
func ErrorCodeName(code uint32) string {
	switch code {
	case ErrCodeVersionMismatch:
		return "VERSION_MISMATCH"
	case ErrCodeInvalidMessage:
		return "INVALID_MESSAGE"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeUnavailable:
		return "UNAVAILABLE"
	case ErrCodeHashMismatch:
		return "HASH_MISMATCH"
	case ErrCodeInvalidData:
		return "INVALID_DATA"
	default:
		return fmt.Sprintf("UNKNOWN_%d", code)
	}
}

// NewErrorResponse builds the ErrorResponseBody for code with message.
func NewErrorResponse(code uint32, message string) ErrorResponseBody {
	return ErrorResponseBody{Code: code, Message: message}
}

// InvalidMessage builds an ErrorResponseBody for a malformed or
// unrecognised request, per spec.md's seeder/index-provider dispatch.
func InvalidMessage(reason string) ErrorResponseBody {
	return NewErrorResponse(ErrCodeInvalidMessage, reason)
}

// NotFoundResponse builds an ErrorResponseBody for a missing chunk or
// entry.
func NotFoundResponse(reason string) ErrorResponseBody {
	return NewErrorResponse(ErrCodeNotFound, reason)
}
