package content

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"lukechampine.com/blake3"
)

// mimeByExtension is the closed lookup table used to guess a file's MIME
// type from its extension. Unknown extensions produce no MIME type.
var mimeByExtension = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".json": "application/json",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
}

// guessMimeType returns the MIME type for a filename's extension, or nil
// if the extension isn't in the closed lookup table.
func guessMimeType(filename string) *string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := mimeByExtension[ext]; ok {
		return &mt
	}
	return nil
}

var keywordRunPattern = regexp.MustCompile(`[a-z0-9]+`)

// ExtractKeywords returns the lowercased alphanumeric runs of length >= 2
// found in name, in the order they appear.
func ExtractKeywords(name string) []string {
	lower := strings.ToLower(name)
	runs := keywordRunPattern.FindAllString(lower, -1)
	keywords := make([]string, 0, len(runs))
	for _, run := range runs {
		if len(run) >= 2 {
			keywords = append(keywords, run)
		}
	}
	return keywords
}

// HashBytes computes the BLAKE3-256 digest of data.
func HashBytes(data []byte) ContentHash {
	return blake3.Sum256(data)
}

// ChunkFile streams filePath in ChunkSize windows, returning the file's
// metadata and the raw bytes of every chunk in order. The whole-file hash
// is computed incrementally as chunks are read; every chunk's bytes are
// kept and returned, so the whole file ends up in memory.
func ChunkFile(path string) (*FileMetadata, [][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, brisbyerr.IO("failed to open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, brisbyerr.IO("failed to stat file", err)
	}

	metadata, chunks, err := chunkReader(f, uint64(info.Size()))
	if err != nil {
		return nil, nil, err
	}
	metadata.Filename = filepath.Base(path)
	metadata.MimeType = guessMimeType(metadata.Filename)
	metadata.Keywords = ExtractKeywords(metadata.Filename)
	metadata.CreatedAt = uint64(time.Now().Unix())
	return metadata, chunks, nil
}

// ChunkData splits raw in-memory data the same way ChunkFile splits a
// file on disk, tagging the result with filename for MIME/keyword
// derivation (pass "" if no name is relevant).
func ChunkData(data []byte, filename string) (*FileMetadata, [][]byte, error) {
	metadata, chunks, err := chunkReader(bytes.NewReader(data), uint64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	metadata.Filename = filename
	metadata.MimeType = guessMimeType(filename)
	metadata.Keywords = ExtractKeywords(filename)
	metadata.CreatedAt = uint64(time.Now().Unix())
	return metadata, chunks, nil
}

// chunkReader does the windowed read-and-hash work shared by ChunkFile
// and ChunkData. size pre-sizes the returned slices and is recorded as
// the metadata's Size; input of zero length still produces the single empty chunk spec.md mandates for
// zero-length files.
func chunkReader(r io.Reader, size uint64) (*FileMetadata, [][]byte, error) {
	numChunks := (size + ChunkSize - 1) / ChunkSize
	if numChunks == 0 {
		numChunks = 1
	}

	chunkInfos := make([]ChunkInfo, 0, numChunks)
	chunks := make([][]byte, 0, numChunks)
	wholeFileHasher := blake3.New(32, nil)

	buf := make([]byte, ChunkSize)
	var index uint32
	var read bool

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			hash := HashBytes(data)
			chunkInfos = append(chunkInfos, ChunkInfo{Index: index, Hash: hash, Size: uint32(n)})
			chunks = append(chunks, data)
			wholeFileHasher.Write(data)
			index++
			read = true
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, nil, brisbyerr.IO("failed to read data", err)
		}
	}

	if !read {
		// Zero-length input still produces exactly one empty chunk.
		hash := HashBytes(nil)
		chunkInfos = append(chunkInfos, ChunkInfo{Index: 0, Hash: hash, Size: 0})
		chunks = append(chunks, []byte{})
		wholeFileHasher.Write(nil)
	}

	var contentHash ContentHash
	copy(contentHash[:], wholeFileHasher.Sum(nil))

	metadata := &FileMetadata{
		ContentHash: contentHash,
		Size:        size,
		Chunks:      chunkInfos,
	}
	return metadata, chunks, nil
}

// VerifyChunk reports whether data hashes to expected, using a
// constant-time comparison so timing doesn't leak how much of the hash
// matched.
func VerifyChunk(data []byte, expected ContentHash) bool {
	actual := HashBytes(data)
	return subtle.ConstantTimeCompare(actual[:], expected[:]) == 1
}

// ReassembleFile validates chunks against metadata.Chunks and writes them
// in order to outPath. It does not check the whole-file hash; callers
// that need end-to-end verification (the downloader) do that separately
// after reassembly.
func ReassembleFile(chunks [][]byte, metadata *FileMetadata, outPath string) error {
	if len(chunks) != len(metadata.Chunks) {
		return brisbyerr.InvalidData(fmt.Sprintf("got %d chunks, metadata declares %d", len(chunks), len(metadata.Chunks)))
	}

	for i, info := range metadata.Chunks {
		data := chunks[i]
		if uint32(len(data)) != info.Size {
			return brisbyerr.InvalidData(fmt.Sprintf("chunk %d size mismatch: got %d, want %d", i, len(data), info.Size))
		}
		if !VerifyChunk(data, info.Hash) {
			return brisbyerr.HashMismatch(info.Hash.String(), HashBytes(data).String())
		}
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return brisbyerr.IO("failed to create output directory", err)
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return brisbyerr.IO("failed to create output file", err)
	}
	defer f.Close()

	for i, data := range chunks {
		if _, err := f.Write(data); err != nil {
			return brisbyerr.IO(fmt.Sprintf("failed to write chunk %d", i), err)
		}
	}
	return nil
}
