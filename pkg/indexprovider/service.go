package indexprovider

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
	cleanupInterval = 1 * time.Hour
)

// Service runs the index provider's request loop, answering
// PublishRequest and SearchRequest messages, plus an hourly TTL cleanup
// task.
type Service struct {
	store     *Store
	transport transport.Transport
	log       *applog.Logger
	now       func() uint64
}

// NewService builds a Service over store and t. log may be nil.
func NewService(store *Store, t transport.Transport, log *applog.Logger) *Service {
	if log == nil {
		log = applog.New(applog.LevelError, false)
	}
	return &Service{store: store, transport: t, log: log, now: func() uint64 { return uint64(time.Now().Unix()) }}
}

// Run loops until ctx is cancelled, answering requests exactly like
// pkg/seeder's request loop: a receive error logs and backs off 1s
// before retrying, a timeout is a normal tick.
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

// RunCleanup runs CleanupExpired once per interval until ctx is
// cancelled. Errors are logged but never stop the loop (spec.md §7
// policy: "the index provider cleanup task logs errors but never
// terminates").
func (s *Service) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.CleanupExpired(s.now())
			if err != nil {
				s.log.Errorf("cleanup_expired failed: %v", err)
				continue
			}
			if removed > 0 {
				s.log.Infof("cleanup_expired removed %d rows", removed)
			}
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, msg transport.ReceivedMessage) {
	env, err := wire.Unmarshal(msg.Data)
	if err != nil {
		s.log.Warnf("failed to decode envelope: %v", err)
		s.reply(ctx, msg, 0, wire.TagErrorResponse, wire.InvalidMessage("failed to decode envelope"))
		return
	}

	var responseTag uint32
	var responseBody interface{}

	switch env.Tag {
	case wire.TagPublishRequest:
		var req wire.PublishRequestBody
		if err := env.DecodePayload(&req); err != nil {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("malformed publish request")
			break
		}
		responseTag, responseBody = s.handlePublishRequest(req)
	case wire.TagSearchRequest:
		var req wire.SearchRequestBody
		if err := env.DecodePayload(&req); err != nil {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("malformed search request")
			break
		}
		responseTag, responseBody = s.handleSearchRequest(req)
	default:
		if len(env.Payload) == 0 {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("empty payload")
		} else {
			responseTag, responseBody = wire.TagErrorResponse, wire.InvalidMessage("unexpected message type")
		}
	}

	s.reply(ctx, msg, env.RequestID, responseTag, responseBody)
}

func (s *Service) handlePublishRequest(req wire.PublishRequestBody) (uint32, interface{}) {
	entry := IndexEntry{
		ContentHash: content.ContentHash(req.ContentHash),
		Filename:    req.Filename,
		Keywords:    req.Keywords,
		Size:        req.Size,
		ChunkCount:  req.ChunkCount,
		TTL:         DefaultTTLSeconds,
	}
	if err := s.store.Upsert(entry, req.NymAddress, s.now()); err != nil {
		return wire.TagPublishResponse, wire.PublishResponseBody{Success: false, Error: err.Error()}
	}
	return wire.TagPublishResponse, wire.PublishResponseBody{Success: true}
}

func (s *Service) handleSearchRequest(req wire.SearchRequestBody) (uint32, interface{}) {
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = 100
	} else if maxResults > 100 {
		maxResults = 100
	}
	results, err := s.store.Search(req.Query, maxResults)
	if err != nil {
		return wire.TagErrorResponse, wire.NewErrorResponse(wire.ErrCodeInvalidData, err.Error())
	}
	return wire.TagSearchResponse, wire.SearchResponseBody{Results: results}
}

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
