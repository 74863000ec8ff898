package seeder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"github.com/WebFirstLanguage/brisby/pkg/transport/mock"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

func setupStoreWithFile(t *testing.T, data []byte) (*Store, *content.FileMetadata) {
	t.Helper()
	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "f.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewStore(t.TempDir())
	metadata, err := store.AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	return store, metadata
}

func TestHandleChunkRequestHit(t *testing.T) {
	store, metadata := setupStoreWithFile(t, []byte("chunk payload data"))
	svc := NewService(store, mock.New("seeder-addr"), nil)

	req := wire.ChunkRequestBody{ContentHash: metadata.ContentHash, ChunkIndex: 0}
	tag, body := svc.handleChunkRequest(req)
	if tag != wire.TagChunkResponse {
		t.Fatalf("expected TagChunkResponse, got %d", tag)
	}
	resp, ok := body.(wire.ChunkResponseBody)
	if !ok {
		t.Fatalf("expected ChunkResponseBody, got %T", body)
	}
	if string(resp.Data) != "chunk payload data" {
		t.Fatalf("unexpected chunk data: %q", resp.Data)
	}
}

func TestHandleChunkRequestMiss(t *testing.T) {
	store := NewStore(t.TempDir())
	svc := NewService(store, mock.New("seeder-addr"), nil)

	req := wire.ChunkRequestBody{ContentHash: content.ContentHash{9, 9, 9}, ChunkIndex: 0}
	tag, body := svc.handleChunkRequest(req)
	if tag != wire.TagErrorResponse {
		t.Fatalf("expected TagErrorResponse, got %d", tag)
	}
	if _, ok := body.(wire.ErrorResponseBody); !ok {
		t.Fatalf("expected ErrorResponseBody, got %T", body)
	}
}

func TestRunRepliesToChunkRequestAndDropsWithoutSenderTag(t *testing.T) {
	store, metadata := setupStoreWithFile(t, []byte("round trip bytes"))
	tr := mock.New("seeder-addr")
	svc := NewService(store, tr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reqEnv, err := wire.NewEnvelope(42, wire.TagChunkRequest, wire.ChunkRequestBody{
		ContentHash: metadata.ContentHash,
		ChunkIndex:  0,
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := reqEnv.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	tr.QueueMessage(transport.ReceivedMessage{Data: data, SenderTag: []byte("sender-tag-1")})
	tr.QueueMessage(transport.ReceivedMessage{Data: data, SenderTag: nil})

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(tr.SentReplies()) >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reply")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	replies := tr.SentReplies()
	if len(replies) != 1 {
		t.Fatalf("expected exactly 1 reply (the no-sender-tag message must be dropped), got %d", len(replies))
	}
	if string(replies[0].Tag) != "sender-tag-1" {
		t.Fatalf("unexpected reply sender tag: %q", replies[0].Tag)
	}

	respEnv, err := wire.Unmarshal(replies[0].Data)
	if err != nil {
		t.Fatalf("Unmarshal reply envelope: %v", err)
	}
	if respEnv.Tag != wire.TagChunkResponse {
		t.Fatalf("expected TagChunkResponse, got %d", respEnv.Tag)
	}
}

func TestHandlePingRequest(t *testing.T) {
	store := NewStore(t.TempDir())
	tr := mock.New("seeder-addr")
	svc := NewService(store, tr, nil)
	ctx := context.Background()

	pingEnv, err := wire.NewEnvelope(7, wire.TagPingRequest, wire.PingRequestBody{SenderID: "client-1"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := pingEnv.Marshal()
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
	if respEnv.Tag != wire.TagPingResponse {
		t.Fatalf("expected TagPingResponse, got %d", respEnv.Tag)
	}
}

func TestHandleUnknownTagRepliesWithError(t *testing.T) {
	store := NewStore(t.TempDir())
	tr := mock.New("seeder-addr")
	svc := NewService(store, tr, nil)
	ctx := context.Background()

	env, err := wire.NewEnvelope(1, wire.TagSearchRequest, wire.SearchRequestBody{Query: "x"})
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
