// Package wire implements Brisby's versioned request/response protocol:
// a length-delimited envelope carrying a tagged payload union, encoded as
// canonical CBOR. Every seeder, index provider, and client speaks this
// envelope over the transport abstraction in pkg/transport.
package wire

import (
	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"github.com/WebFirstLanguage/brisby/pkg/codec/cborcanon"
)

// ProtocolVersion is the compile-time wire version. Decoders reject any
// envelope whose Version field differs.
const ProtocolVersion = 1

// Payload tag numbers. Frozen once assigned; new variants take new tags,
// never reuse old ones.
const (
	TagSearchRequest  = 10
	TagSearchResponse = 11

	TagChunkRequest  = 20
	TagChunkResponse = 21

	TagPublishRequest  = 30
	TagPublishResponse = 31

	// 40-47 are reserved for the unimplemented DHT seeder-discovery
	// layer (see pkg/dhtstore). No networking logic dispatches on tags
	// 40-45; the ping pair (46/47) is answered by the seeder's request
	// loop. The range keeps DHT messages from colliding with the tags
	// already in use.
	TagFindNodeRequest   = 40
	TagFindNodeResponse  = 41
	TagFindValueRequest  = 42
	TagFindValueResponse = 43
	TagStoreRequest      = 44
	TagStoreResponse     = 45
	TagPingRequest       = 46
	TagPingResponse      = 47

	TagErrorResponse = 100
)

// Envelope is the outer protocol frame. Payload is opaque CBOR bytes
// tagged with a numeric Tag; callers decode the right typed struct for
// Tag via DecodePayload.
type Envelope struct {
	Version   uint32 `cbor:"version"`
	RequestID uint64 `cbor:"request_id"`
	Tag       uint32 `cbor:"tag"`
	Payload   []byte `cbor:"payload"`
}

// NewEnvelope marshals body under tag and wraps it in an Envelope at the
// current ProtocolVersion.
func NewEnvelope(requestID uint64, tag uint32, body interface{}) (*Envelope, error) {
	payload, err := cborcanon.Marshal(body)
	if err != nil {
		return nil, brisbyerr.Decode("failed to encode payload", err)
	}
	return &Envelope{
		Version:   ProtocolVersion,
		RequestID: requestID,
		Tag:       tag,
		Payload:   payload,
	}, nil
}

// Marshal encodes the envelope as canonical CBOR bytes for transmission.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := cborcanon.Marshal(e)
	if err != nil {
		return nil, brisbyerr.Decode("failed to encode envelope", err)
	}
	return data, nil
}

// Unmarshal decodes bytes into an Envelope, rejecting anything whose
// version does not match ProtocolVersion.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cborcanon.Unmarshal(data, &e); err != nil {
		return nil, brisbyerr.Decode("failed to decode envelope", err)
	}
	if e.Version != ProtocolVersion {
		return nil, brisbyerr.VersionMismatch(ProtocolVersion, uint8(e.Version))
	}
	return &e, nil
}

// DecodePayload decodes the envelope's payload bytes into dst, which
// should be a pointer to the struct matching e.Tag.
func (e *Envelope) DecodePayload(dst interface{}) error {
	if err := cborcanon.Unmarshal(e.Payload, dst); err != nil {
		return brisbyerr.Decode("failed to decode payload", err)
	}
	return nil
}

// --- Payload bodies ---

// SearchResult is the wire shape of one search hit, distinct from
// pkg/indexprovider's internal row representation because it aggregates
// seeders and carries a float relevance score.
type SearchResult struct {
	ContentHash [32]byte `cbor:"content_hash"`
	Filename    string   `cbor:"filename"`
	Size        uint64   `cbor:"size"`
	ChunkCount  uint32   `cbor:"chunk_count"`
	Relevance   float32  `cbor:"relevance"`
	Seeders     []string `cbor:"seeders"`
}

type SearchRequestBody struct {
	Query      string `cbor:"query"`
	MaxResults uint32 `cbor:"max_results"`
}

type SearchResponseBody struct {
	Results []SearchResult `cbor:"results"`
}

type ChunkRequestBody struct {
	ContentHash [32]byte `cbor:"content_hash"`
	ChunkIndex  uint32   `cbor:"chunk_index"`
	SURB        []byte   `cbor:"surb"`
}

type ChunkResponseBody struct {
	ContentHash [32]byte `cbor:"content_hash"`
	ChunkIndex  uint32   `cbor:"chunk_index"`
	Data        []byte   `cbor:"data"`
	ChunkHash   [32]byte `cbor:"chunk_hash"`
}

type PublishRequestBody struct {
	ContentHash [32]byte `cbor:"content_hash"`
	Filename    string   `cbor:"filename"`
	Keywords    []string `cbor:"keywords"`
	Size        uint64   `cbor:"size"`
	ChunkCount  uint32   `cbor:"chunk_count"`
	NymAddress  string   `cbor:"nym_address"`
}

type PublishResponseBody struct {
	Success bool   `cbor:"success"`
	Error   string `cbor:"error"`
}

// PingRequestBody and PingResponseBody are exercised by the seeder's
// liveness check; ResponderID may be empty.
type PingRequestBody struct {
	SenderID string `cbor:"sender_id"`
}

type PingResponseBody struct {
	ResponderID []byte `cbor:"responder_id"`
}

// --- Reserved DHT payload bodies (tags 40-47) ---
//
// These mirror the richer Kademlia-style shapes the system was
// originally designed towards. No request loop dispatches on these tags
// and no package (pkg/dhtstore included) encodes or decodes them; they
// exist so the tag range is unambiguously reserved.

type NodeInfo struct {
	NodeID     string `cbor:"node_id"`
	NymAddress string `cbor:"nym_address"`
}

type FindNodeRequestBody struct {
	TargetID string `cbor:"target_id"`
}

type FindNodeResponseBody struct {
	Nodes []NodeInfo `cbor:"nodes"`
}

// DHTSeeder is the reserved wire shape for a seeder record stored and
// exchanged by the (unimplemented) DHT layer.
type DHTSeeder struct {
	NymAddress  string `cbor:"nym_address"`
	ChunkBitmap []byte `cbor:"chunk_bitmap"`
	LastSeen    uint64 `cbor:"last_seen"`
}

type FindValueRequestBody struct {
	Key [32]byte `cbor:"key"`
}

type FindValueResponseBody struct {
	Seeders []DHTSeeder `cbor:"seeders"`
	Nodes   []NodeInfo  `cbor:"nodes"`
}

type StoreRequestBody struct {
	Key    [32]byte   `cbor:"key"`
	Seeder *DHTSeeder `cbor:"seeder"`
}

type StoreResponseBody struct {
	Success bool `cbor:"success"`
}

// ErrorResponseBody is the wire shape for tag 100, used by every request
// loop to report a decode failure, not-found, or rejected request.
type ErrorResponseBody struct {
	Code    uint32 `cbor:"code"`
	Message string `cbor:"message"`
}
