// Package downloader implements the client-side download engine: it
// requests chunks from known seeders one at a time, verifies each
// chunk's hash, and reassembles the result into a file whose whole-file
// hash is checked against the published content hash.
package downloader

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"os"
	"sync/atomic"
	"time"

	"github.com/WebFirstLanguage/brisby/internal/applog"
	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

// chunkRequestTimeout is how long to wait for one seeder to answer one
// chunk request before moving on to the next seeder.
const chunkRequestTimeout = 30 * time.Second

// DownloadState tracks progress of an in-flight download.
type DownloadState struct {
	ContentHash content.ContentHash
	TotalChunks uint32
	Received    map[uint32][]byte
	Seeders     []transport.NymAddress
}

// NewDownloadState creates an empty DownloadState for a file with
// totalChunks chunks.
func NewDownloadState(hash content.ContentHash, totalChunks uint32) *DownloadState {
	return &DownloadState{
		ContentHash: hash,
		TotalChunks: totalChunks,
		Received:    make(map[uint32][]byte),
	}
}

// IsComplete reports whether every chunk has been received.
func (s *DownloadState) IsComplete() bool {
	return uint32(len(s.Received)) == s.TotalChunks
}

// Progress returns the fraction of chunks received, in the range
// [0, 100].
func (s *DownloadState) Progress() float64 {
	if s.TotalChunks == 0 {
		return 0
	}
	return float64(len(s.Received)) / float64(s.TotalChunks) * 100
}

// MissingChunks returns the indices not yet received, in ascending
// order.
func (s *DownloadState) MissingChunks() []uint32 {
	missing := make([]uint32, 0, s.TotalChunks-uint32(len(s.Received)))
	for i := uint32(0); i < s.TotalChunks; i++ {
		if _, ok := s.Received[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// ProgressFunc is called as each chunk index begins downloading, with
// the current and total chunk counts.
type ProgressFunc func(current, total uint32)

// Downloader drives chunk requests over a transport.Transport.
type Downloader struct {
	transport transport.Transport
	log       *applog.Logger
	counter   uint64
}

// New builds a Downloader over t, seeding its request-ID counter from
// crypto/rand so concurrent client processes sharing a seeder don't
// collide on request IDs. log may be nil.
func New(t transport.Transport, log *applog.Logger) *Downloader {
	if log == nil {
		log = applog.New(applog.LevelError, false)
	}
	var seedBytes [8]byte
	if _, err := cryptorand.Read(seedBytes[:]); err != nil {
		seedBytes[0] = 1
	}
	seed := binary.BigEndian.Uint64(seedBytes[:])
	if seed == 0 {
		seed = 1
	}
	return &Downloader{transport: t, log: log, counter: seed}
}

func (d *Downloader) nextRequestID() uint64 {
	return atomic.AddUint64(&d.counter, 1)
}

// RequestChunk sends a ChunkRequest for chunkIndex to seeder.
func (d *Downloader) RequestChunk(ctx context.Context, seeder transport.NymAddress, hash content.ContentHash, chunkIndex uint32) error {
	env, err := wire.NewEnvelope(d.nextRequestID(), wire.TagChunkRequest, wire.ChunkRequestBody{
		ContentHash: hash,
		ChunkIndex:  chunkIndex,
	})
	if err != nil {
		return err
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	if err := d.transport.Send(ctx, seeder, data); err != nil {
		return brisbyerr.SendFailed("failed to send chunk request", err)
	}
	return nil
}

// chunkResult is the decoded, verified content of one ChunkResponse.
type chunkResult struct {
	index       uint32
	data        []byte
	contentHash content.ContentHash
}

// receiveChunk waits up to timeout for a response, verifying the
// chunk's per-chunk hash before returning it. Returns ok=false on a
// plain timeout (no seeder fault, just no answer yet).
func (d *Downloader) receiveChunk(ctx context.Context, timeout time.Duration) (chunkResult, bool, error) {
	msg, ok, err := d.transport.ReceiveTimeout(ctx, timeout)
	if err != nil {
		return chunkResult{}, false, brisbyerr.ReceiveFailed("failed to receive chunk response", err)
	}
	if !ok {
		return chunkResult{}, false, nil
	}

	env, err := wire.Unmarshal(msg.Data)
	if err != nil {
		return chunkResult{}, false, err
	}

	switch env.Tag {
	case wire.TagChunkResponse:
		var resp wire.ChunkResponseBody
		if err := env.DecodePayload(&resp); err != nil {
			return chunkResult{}, false, err
		}
		if !content.VerifyChunk(resp.Data, content.ContentHash(resp.ChunkHash)) {
			return chunkResult{}, false, brisbyerr.HashMismatch(
				content.ContentHash(resp.ChunkHash).String(),
				content.HashBytes(resp.Data).String(),
			)
		}
		return chunkResult{index: resp.ChunkIndex, data: resp.Data, contentHash: resp.ContentHash}, true, nil
	case wire.TagErrorResponse:
		var errBody wire.ErrorResponseBody
		if err := env.DecodePayload(&errBody); err != nil {
			return chunkResult{}, false, err
		}
		return chunkResult{}, false, brisbyerr.NotFound(errBody.Message)
	default:
		return chunkResult{}, false, brisbyerr.Protocol("unexpected response tag for chunk request")
	}
}

// DownloadSequential fetches every chunk of metadata one at a time,
// trying each seeder in order until one answers successfully. progress,
// if non-nil, is called before each chunk starts and once more after
// the last chunk completes.
func (d *Downloader) DownloadSequential(ctx context.Context, metadata *content.FileMetadata, seeders []transport.NymAddress, progress ProgressFunc) ([][]byte, error) {
	if len(seeders) == 0 {
		return nil, brisbyerr.InvalidData("no seeders available")
	}

	total := metadata.ChunkCount()
	chunks := make([][]byte, total)

	for idx := uint32(0); idx < total; idx++ {
		if progress != nil {
			progress(idx, total)
		}

		received := false
		for _, seeder := range seeders {
			if err := d.RequestChunk(ctx, seeder, metadata.ContentHash, idx); err != nil {
				d.log.Warnf("failed to request chunk %d from %s: %v", idx, seeder, err)
				continue
			}

			result, ok, err := d.receiveChunk(ctx, chunkRequestTimeout)
			if err != nil {
				d.log.Warnf("error receiving chunk %d from %s: %v", idx, seeder, err)
				continue
			}
			if !ok {
				d.log.Warnf("timeout waiting for chunk %d from %s", idx, seeder)
				continue
			}
			if result.index != idx || result.contentHash != metadata.ContentHash {
				d.log.Warnf("seeder %s returned mismatched chunk for index %d", seeder, idx)
				continue
			}

			chunks[idx] = result.data
			received = true
			break
		}

		if !received {
			return nil, brisbyerr.NotFound("failed to download chunk after trying all seeders")
		}
	}

	if progress != nil {
		progress(total, total)
	}
	return chunks, nil
}

// ReassembleToFile writes chunks (indexed 0..N-1, already validated
// per-chunk by DownloadSequential) to outputPath in order, then checks
// the whole-file hash against metadata.ContentHash. On a hash mismatch
// the partially written file is removed.
func ReassembleToFile(chunks [][]byte, metadata *content.FileMetadata, outputPath string) error {
	if err := content.ReassembleFile(chunks, metadata, outputPath); err != nil {
		return err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return brisbyerr.IO("failed to read reassembled file", err)
	}
	if content.HashBytes(data) != metadata.ContentHash {
		_ = os.Remove(outputPath)
		return brisbyerr.HashMismatch(metadata.ContentHash.String(), content.HashBytes(data).String())
	}
	return nil
}
