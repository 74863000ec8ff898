package wire

import (
	"testing"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	body := SearchRequestBody{Query: "report", MaxResults: 10}
	env, err := NewEnvelope(42, TagSearchRequest, body)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.RequestID != 42 || decoded.Tag != TagSearchRequest {
		t.Fatalf("round trip lost envelope fields: %+v", decoded)
	}

	var got SearchRequestBody
	if err := decoded.DecodePayload(&got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got != body {
		t.Fatalf("payload round trip mismatch: got %+v, want %+v", got, body)
	}
}

func TestEnvelopeRoundTripAllTags(t *testing.T) {
	cases := []struct {
		tag  uint32
		body interface{}
	}{
		{TagChunkRequest, ChunkRequestBody{ContentHash: [32]byte{1}, ChunkIndex: 3, SURB: []byte("surb")}},
		{TagChunkResponse, ChunkResponseBody{ContentHash: [32]byte{2}, ChunkIndex: 1, Data: []byte("data"), ChunkHash: [32]byte{3}}},
		{TagPublishRequest, PublishRequestBody{ContentHash: [32]byte{4}, Filename: "f.txt", Keywords: []string{"f"}, Size: 10, ChunkCount: 1, NymAddress: "addr"}},
		{TagPublishResponse, PublishResponseBody{Success: true}},
		{TagErrorResponse, ErrorResponseBody{Code: ErrCodeNotFound, Message: "missing"}},
	}

	for _, c := range cases {
		env, err := NewEnvelope(1, c.tag, c.body)
		if err != nil {
			t.Fatalf("tag %d: NewEnvelope: %v", c.tag, err)
		}
		data, err := env.Marshal()
		if err != nil {
			t.Fatalf("tag %d: Marshal: %v", c.tag, err)
		}
		decoded, err := Unmarshal(data)
		if err != nil {
			t.Fatalf("tag %d: Unmarshal: %v", c.tag, err)
		}
		if decoded.Tag != c.tag {
			t.Fatalf("tag mismatch: got %d, want %d", decoded.Tag, c.tag)
		}
	}
}

func TestUnmarshalRejectsVersionMismatch(t *testing.T) {
	env := &Envelope{Version: ProtocolVersion + 1, RequestID: 1, Tag: TagPingRequest}
	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	_, err = Unmarshal(data)
	if err == nil {
		t.Fatal("expected VersionMismatch error")
	}
	if !brisbyerr.Is(err, brisbyerr.KindVersionMismatch) {
		t.Fatalf("expected KindVersionMismatch, got %v", err)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x00, 0x01})
	if err == nil {
		t.Fatal("expected decode error on garbage input")
	}
}
