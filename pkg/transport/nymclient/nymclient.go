// Package nymclient is the seam where a real mixnet SDK adapter would
// live. Brisby's spec treats the concrete mixnet client as an external
// collaborator (out of scope here); this stub documents the shape that
// adapter must take and returns ErrUnimplemented for every mixnet
// operation rather than faking a network stack.
package nymclient

import (
	"context"
	"time"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
)

// ErrUnimplemented is returned by Connect, Send, SendReply, Receive and
// ReceiveTimeout; Disconnect succeeds, OurAddress is empty and
// IsConnected is false. Wiring a real mixnet SDK here is out of scope
// per the project's stated boundaries.
var ErrUnimplemented = brisbyerr.Transport("nymclient: real mixnet SDK not wired in this build", nil)

// Transport is a stub transport.Transport. It exists so callers can
// construct a client against the real interface and get a clear error
// rather than a compile-time hole, once a production deployment supplies
// an actual mixnet SDK binding.
type Transport struct {
	cfg       transport.Config
	connected bool
}

// New returns an unconnected stub transport.
func New() *Transport {
	return &Transport{}
}

func (t *Transport) Connect(ctx context.Context, cfg transport.Config) error {
	t.cfg = cfg
	return ErrUnimplemented
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.connected = false
	return nil
}

func (t *Transport) OurAddress() transport.NymAddress {
	return ""
}

func (t *Transport) IsConnected() bool {
	return t.connected
}

func (t *Transport) Send(ctx context.Context, recipient transport.NymAddress, data []byte) error {
	return ErrUnimplemented
}

func (t *Transport) SendReply(ctx context.Context, tag transport.SenderTag, data []byte) error {
	return ErrUnimplemented
}

func (t *Transport) Receive(ctx context.Context) (transport.ReceivedMessage, error) {
	return transport.ReceivedMessage{}, ErrUnimplemented
}

func (t *Transport) ReceiveTimeout(ctx context.Context, timeout time.Duration) (transport.ReceivedMessage, bool, error) {
	return transport.ReceivedMessage{}, false, ErrUnimplemented
}

var _ transport.Transport = (*Transport)(nil)
