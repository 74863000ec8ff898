// Package transport defines Brisby's mixnet transport abstraction: a
// narrow, message-at-a-time interface that the seeder, downloader, and
// index provider all speak against, so none of them need to know
// anything about the concrete mixnet SDK underneath.
package transport

import (
	"context"
	"time"
)

// NymAddress is an opaque string naming an endpoint on the mixnet.
// Equality and hashing are plain string comparisons.
type NymAddress string

func (a NymAddress) String() string { return string(a) }

// SenderTag is the opaque handle to a SURB bundle delivered alongside an
// incoming message, letting the recipient reply anonymously without
// learning the sender's address.
type SenderTag []byte

// ReceivedMessage pairs inbound data with the SenderTag (if any) needed
// to reply to it. A nil SenderTag means the message cannot be replied to
// anonymously.
type ReceivedMessage struct {
	Data      []byte
	SenderTag SenderTag
}

// Config configures a Transport at connect time.
type Config struct {
	// StoragePath, if set, yields a persistent cryptographic identity
	// across restarts. Empty means an ephemeral, process-lifetime
	// identity.
	StoragePath string
	// SURBsPerMessage is the number of single-use reply blocks attached
	// to every outbound send, enforced to be at least 1.
	SURBsPerMessage uint32
	UseTestnet      bool
}

// DefaultConfig returns the configuration spec.md names as the default:
// 5 SURBs per message, no persistent identity, mainnet.
func DefaultConfig() Config {
	return Config{SURBsPerMessage: 5}
}

// Transport is the capability every Brisby component programs against.
// It presents message-at-a-time semantics: no per-message
// acknowledgement, no built-in retry. Retry and timeout policy belong to
// the caller (seeder request loop, downloader fan-out).
type Transport interface {
	Connect(ctx context.Context, cfg Config) error
	Disconnect(ctx context.Context) error

	// OurAddress returns this transport's own address, or "" if not yet
	// connected.
	OurAddress() NymAddress
	IsConnected() bool

	Send(ctx context.Context, recipient NymAddress, data []byte) error
	SendReply(ctx context.Context, tag SenderTag, data []byte) error

	// Receive suspends until a message arrives or ctx is cancelled.
	Receive(ctx context.Context) (ReceivedMessage, error)

	// ReceiveTimeout waits up to timeout for a message. ok is false on
	// timeout, which is not an error: callers treat it as a normal tick
	// of their request loop.
	ReceiveTimeout(ctx context.Context, timeout time.Duration) (msg ReceivedMessage, ok bool, err error)
}
