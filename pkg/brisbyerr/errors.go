// Package brisbyerr defines the error taxonomy shared by every Brisby
// component: seeders, the index provider, the downloader and the CLI.
// Errors carry a Kind so callers can branch on category with errors.As
// instead of string matching, and a Retryable hint so request loops know
// whether to fan out to another seeder or give up.
package brisbyerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error into one of the categories a caller might want
// to branch on.
type Kind string

const (
	KindIO               Kind = "IO"
	KindHashMismatch     Kind = "HASH_MISMATCH"
	KindInvalidData      Kind = "INVALID_DATA"
	KindProtocol         Kind = "PROTOCOL"
	KindVersionMismatch  Kind = "VERSION_MISMATCH"
	KindDecode           Kind = "DECODE"
	KindNotFound         Kind = "NOT_FOUND"
	KindTransport        Kind = "TRANSPORT"
	KindConnectionFailed Kind = "CONNECTION_FAILED"
	KindSendFailed       Kind = "SEND_FAILED"
	KindReceiveFailed    Kind = "RECEIVE_FAILED"
	KindInvalidAddress   Kind = "INVALID_ADDRESS"
	KindDatabase         Kind = "DATABASE"
	KindInvalidChunk     Kind = "INVALID_CHUNK_INDEX"
)

// retryableKinds lists the categories worth retrying against a different
// seeder or after a short backoff. Everything else indicates the request
// itself is wrong and retrying would just repeat the failure.
var retryableKinds = map[Kind]bool{
	KindIO:               true,
	KindNotFound:         true,
	KindTransport:        true,
	KindConnectionFailed: true,
	KindSendFailed:       true,
	KindReceiveFailed:    true,
}

// Error is the concrete error type returned from every Brisby package.
type Error struct {
	Kind      Kind
	Message   string
	Timestamp time.Time
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the operation that produced this error is
// worth retrying, either against the same peer or a different one.
func (e *Error) Retryable() bool {
	return retryableKinds[e.Kind]
}

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Timestamp: time.Now(), Cause: cause}
}

// IO wraps a filesystem or disk-store failure.
func IO(message string, cause error) *Error {
	return newErr(KindIO, message, cause)
}

// HashMismatch reports that a chunk or whole-file hash did not match the
// expected ContentHash.
func HashMismatch(expected, actual string) *Error {
	return newErr(KindHashMismatch, fmt.Sprintf("expected %s, got %s", expected, actual), nil)
}

// InvalidChunkIndex reports a chunk index outside [0, total).
func InvalidChunkIndex(index, total uint32) *Error {
	return newErr(KindInvalidChunk, fmt.Sprintf("index %d out of range for %d chunks", index, total), nil)
}

// InvalidData reports malformed data that isn't a decode failure per se
// (wrong length, bad hex, empty field).
func InvalidData(message string) *Error {
	return newErr(KindInvalidData, message, nil)
}

// Protocol reports a generic protocol-level violation.
func Protocol(message string) *Error {
	return newErr(KindProtocol, message, nil)
}

// VersionMismatch reports a wire envelope carrying an unsupported
// protocol version.
func VersionMismatch(expected, actual uint8) *Error {
	return newErr(KindVersionMismatch, fmt.Sprintf("expected version %d, got %d", expected, actual), nil)
}

// Decode wraps a CBOR (or other wire) decode failure.
func Decode(message string, cause error) *Error {
	return newErr(KindDecode, message, cause)
}

// Database wraps a SQL-layer failure from the index provider or local
// index.
func Database(message string, cause error) *Error {
	return newErr(KindDatabase, message, cause)
}

// NotFound reports a missing chunk, content hash, or index entry.
func NotFound(message string) *Error {
	return newErr(KindNotFound, message, nil)
}

// Transport reports a generic transport-layer failure.
func Transport(message string, cause error) *Error {
	return newErr(KindTransport, message, cause)
}

// ConnectionFailed reports that connecting to the mixnet client failed.
func ConnectionFailed(message string, cause error) *Error {
	return newErr(KindConnectionFailed, message, cause)
}

// SendFailed reports that sending a message over the transport failed.
func SendFailed(message string, cause error) *Error {
	return newErr(KindSendFailed, message, cause)
}

// ReceiveFailed reports that receiving a message from the transport
// failed (distinct from a plain timeout, which is not an error).
func ReceiveFailed(message string, cause error) *Error {
	return newErr(KindReceiveFailed, message, cause)
}

// InvalidAddress reports a malformed NymAddress.
func InvalidAddress(message string) *Error {
	return newErr(KindInvalidAddress, message, nil)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether err (if it is a *Error) suggests retrying.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
