package seeder

import (
	"context"
	"time"

	"github.com/WebFirstLanguage/brisby/internal/applog"
	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

const (
	receiveTimeout  = 30 * time.Second
	errorRetryDelay = 1 * time.Second
)

// Service runs the seeder's single-threaded request loop against a
// Store and a transport.Transport, answering ChunkRequest and
// PingRequest messages.
type Service struct {
	store     *Store
	transport transport.Transport
	log       *applog.Logger
}

// NewService builds a Service over store and t. log may be nil, in which
// case a logger that writes only error-level messages to stderr is used.
func NewService(store *Store, t transport.Transport, log *applog.Logger) *Service {
	if log == nil {
		log = applog.New(applog.LevelError, false)
	}
	return &Service{store: store, transport: t, log: log}
}

// Run loops until ctx is cancelled, calling ReceiveTimeout(30s) on every
// iteration. A timeout is a normal tick; a receive error sleeps 1s
// before retrying so a broken transport doesn't spin.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, ok, err := s.transport.ReceiveTimeout(ctx, receiveTimeout)
		if err != nil {
			s.log.Warnf("receive error: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorRetryDelay):
			}
			continue
		}
		if !ok {
			continue
		}

		s.handleMessage(ctx, msg)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg transport.ReceivedMessage) {
	env, err := wire.Unmarshal(msg.Data)
	if err != nil {
		s.log.Warnf("failed to decode envelope: %v", err)
		s.replyError(ctx, msg, 0, wire.InvalidMessage("failed to decode envelope"))
		return
	}

	var responseBody interface{}
	var responseTag uint32

	switch env.Tag {
	case wire.TagChunkRequest:
		var req wire.ChunkRequestBody
		if err := env.DecodePayload(&req); err != nil {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("malformed chunk request")
			break
		}
		responseTag, responseBody = s.handleChunkRequest(req)
	case wire.TagPingRequest:
		responseTag, responseBody = wire.TagPingResponse, wire.PingResponseBody{}
	default:
		if len(env.Payload) == 0 {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("empty payload")
		} else {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("unexpected message type")
		}
	}

	s.reply(ctx, msg, env.RequestID, responseTag, responseBody)
}

func (s *Service) handleChunkRequest(req wire.ChunkRequestBody) (uint32, interface{}) {
	hash := content.ContentHash(req.ContentHash)
	data, ok := s.store.GetChunk(hash, req.ChunkIndex)
	if !ok {
		return wire.TagErrorResponse, wire.NotFoundResponse("chunk not found")
	}

	return wire.TagChunkResponse, wire.ChunkResponseBody{
		ContentHash: req.ContentHash,
		ChunkIndex:  req.ChunkIndex,
		Data:        data,
		ChunkHash:   content.HashBytes(data),
	}
}

// reply encodes body under requestID/tag and sends it back via the
// incoming message's sender tag. Per spec.md §4.4, a message with no
// sender tag is dropped silently: there is no way to reply anonymously.
func (s *Service) reply(ctx context.Context, msg transport.ReceivedMessage, requestID uint64, tag uint32, body interface{}) {
	if msg.SenderTag == nil {
		return
	}
	env, err := wire.NewEnvelope(requestID, tag, body)
	if err != nil {
		s.log.Warnf("failed to encode reply: %v", err)
		return
	}
	data, err := env.Marshal()
	if err != nil {
		s.log.Warnf("failed to marshal reply: %v", err)
		return
	}
	if err := s.transport.SendReply(ctx, msg.SenderTag, data); err != nil {
		s.log.Warnf("failed to send reply: %v", err)
	}
}

func (s *Service) replyError(ctx context.Context, msg transport.ReceivedMessage, requestID uint64, body wire.ErrorResponseBody) {
	s.reply(ctx, msg, requestID, wire.TagErrorResponse, body)
}
