package indexprovider

import (
	"context"
	"testing"

	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"github.com/WebFirstLanguage/brisby/pkg/transport/mock"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

func TestHandlePublishThenSearch(t *testing.T) {
	store := mustOpen(t)
	tr := mock.New("index-addr")
	svc := NewService(store, tr, nil)
	ctx := context.Background()

	hash := content.ContentHash{7}
	publishEnv, err := wire.NewEnvelope(1, wire.TagPublishRequest, wire.PublishRequestBody{
		ContentHash: hash,
		Filename:    "document.pdf",
		Keywords:    []string{"document"},
		Size:        2048,
		ChunkCount:  2,
		NymAddress:  "seeder-1",
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := publishEnv.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	svc.handleMessage(ctx, transport.ReceivedMessage{Data: data, SenderTag: []byte("tag-1")})

	replies := tr.SentReplies()
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	respEnv, err := wire.Unmarshal(replies[0].Data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if respEnv.Tag != wire.TagPublishResponse {
		t.Fatalf("expected TagPublishResponse, got %d", respEnv.Tag)
	}
	var publishResp wire.PublishResponseBody
	if err := respEnv.DecodePayload(&publishResp); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if !publishResp.Success {
		t.Fatalf("expected publish to succeed, got error: %s", publishResp.Error)
	}

	searchEnv, err := wire.NewEnvelope(2, wire.TagSearchRequest, wire.SearchRequestBody{Query: "document", MaxResults: 10})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err = searchEnv.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	svc.handleMessage(ctx, transport.ReceivedMessage{Data: data, SenderTag: []byte("tag-2")})

	replies = tr.SentReplies()
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies total, got %d", len(replies))
	}
	searchRespEnv, err := wire.Unmarshal(replies[1].Data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if searchRespEnv.Tag != wire.TagSearchResponse {
		t.Fatalf("expected TagSearchResponse, got %d", searchRespEnv.Tag)
	}
	var searchResp wire.SearchResponseBody
	if err := searchRespEnv.DecodePayload(&searchResp); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(searchResp.Results) != 1 {
		t.Fatalf("expected 1 search result, got %d", len(searchResp.Results))
	}
	if searchResp.Results[0].ContentHash != hash {
		t.Fatal("unexpected content hash in search result")
	}
	if len(searchResp.Results[0].Seeders) != 1 || searchResp.Results[0].Seeders[0] != "seeder-1" {
		t.Fatalf("unexpected seeders: %v", searchResp.Results[0].Seeders)
	}
}

func TestHandleUnknownTagRepliesError(t *testing.T) {
	store := mustOpen(t)
	tr := mock.New("index-addr")
	svc := NewService(store, tr, nil)
	ctx := context.Background()

	env, err := wire.NewEnvelope(1, wire.TagChunkRequest, wire.ChunkRequestBody{})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	svc.handleMessage(ctx, transport.ReceivedMessage{Data: data, SenderTag: []byte("tag")})

	replies := tr.SentReplies()
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	respEnv, err := wire.Unmarshal(replies[0].Data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if respEnv.Tag != wire.TagErrorResponse {
		t.Fatalf("expected TagErrorResponse, got %d", respEnv.Tag)
	}
}

func TestCleanupAtServiceClockRemovesExpired(t *testing.T) {
	store := mustOpen(t)
	tr := mock.New("index-addr")
	svc := NewService(store, tr, nil)

	entry := IndexEntry{
		ContentHash: content.ContentHash{8},
		Filename:    "old.txt",
		Keywords:    []string{"old"},
		Size:        10,
		ChunkCount:  1,
		TTL:         1,
	}
	if err := store.Upsert(entry, "addr", 1); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	svc.now = func() uint64 { return 1_000_000 }
	removed, err := store.CleanupExpired(svc.now())
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed == 0 {
		t.Fatal("expected the expired entry to be removed")
	}
}
