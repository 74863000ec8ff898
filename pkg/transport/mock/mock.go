// Package mock implements an in-process Transport backed by FIFO queues,
// letting the seeder, downloader, and index provider be exercised in
// tests without a real mixnet client.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
)

// Transport is an in-memory transport.Transport. Messages queued with
// QueueMessage are returned by Receive/ReceiveTimeout in FIFO order;
// everything sent via Send/SendReply is recorded for assertions.
type Transport struct {
	mu        sync.Mutex
	address   transport.NymAddress
	connected bool

	incoming []transport.ReceivedMessage
	outgoing []SentMessage
	replies  []SentReply
}

// SentMessage records one call to Send.
type SentMessage struct {
	Recipient transport.NymAddress
	Data      []byte
}

// SentReply records one call to SendReply.
type SentReply struct {
	Tag  transport.SenderTag
	Data []byte
}


// New creates a disconnected mock transport with the given address.
func New(address transport.NymAddress) *Transport {
	return &Transport{address: address}
}

func (t *Transport) Connect(ctx context.Context, cfg transport.Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *Transport) OurAddress() transport.NymAddress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return ""
	}
	return t.address
}

func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) Send(ctx context.Context, recipient transport.NymAddress, data []byte) error {
	if !t.IsConnected() {
		return brisbyerr.ConnectionFailed("not connected", nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	t.outgoing = append(t.outgoing, SentMessage{Recipient: recipient, Data: cp})
	return nil
}

func (t *Transport) SendReply(ctx context.Context, tag transport.SenderTag, data []byte) error {
	if !t.IsConnected() {
		return brisbyerr.ConnectionFailed("not connected", nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	t.replies = append(t.replies, SentReply{Tag: tag, Data: cp})
	return nil
}

func (t *Transport) Receive(ctx context.Context) (transport.ReceivedMessage, error) {
	for {
		if msg, ok := t.pop(); ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return transport.ReceivedMessage{}, brisbyerr.ReceiveFailed("context cancelled", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (t *Transport) ReceiveTimeout(ctx context.Context, timeout time.Duration) (transport.ReceivedMessage, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if msg, ok := t.pop(); ok {
			return msg, true, nil
		}
		if time.Now().After(deadline) {
			return transport.ReceivedMessage{}, false, nil
		}
		select {
		case <-ctx.Done():
			return transport.ReceivedMessage{}, false, brisbyerr.ReceiveFailed("context cancelled", ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (t *Transport) pop() (transport.ReceivedMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.incoming) == 0 {
		return transport.ReceivedMessage{}, false
	}
	msg := t.incoming[0]
	t.incoming = t.incoming[1:]
	return msg, true
}

// QueueMessage enqueues a message for the next Receive/ReceiveTimeout
// call, simulating an inbound mixnet delivery.
func (t *Transport) QueueMessage(msg transport.ReceivedMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.incoming = append(t.incoming, msg)
}

// SentMessages returns a copy of every message passed to Send, in order.
func (t *Transport) SentMessages() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentMessage, len(t.outgoing))
	copy(out, t.outgoing)
	return out
}

// SentReplies returns a copy of every reply passed to SendReply, in
// order.
func (t *Transport) SentReplies() []SentReply {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentReply, len(t.replies))
	copy(out, t.replies)
	return out
}

var _ transport.Transport = (*Transport)(nil)
