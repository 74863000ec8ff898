package content

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestChunkFileRoundtrip(t *testing.T) {
	dir := t.TempDir()
	input := []byte("Hello, Brisby! This is integration test content.")
	path := writeTemp(t, dir, "hello.txt", input)

	metadata, chunks, err := ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small file, got %d", len(chunks))
	}

	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c)
	}
	if !bytes.Equal(buf.Bytes(), input) {
		t.Fatal("concatenated chunks did not reproduce the input")
	}
	if HashBytes(buf.Bytes()) != metadata.ContentHash {
		t.Fatal("whole-file hash mismatch")
	}
}

func TestChunkFileBoundary(t *testing.T) {
	dir := t.TempDir()

	exact := bytes.Repeat([]byte{0}, ChunkSize)
	path := writeTemp(t, dir, "exact.bin", exact)
	_, chunks, err := ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk at boundary, got %d", len(chunks))
	}

	over := bytes.Repeat([]byte{1}, ChunkSize+100)
	path2 := writeTemp(t, dir, "over.bin", over)
	_, chunks2, err := ChunkFile(path2)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	if len(chunks2) != 2 {
		t.Fatalf("expected 2 chunks over boundary, got %d", len(chunks2))
	}
	var joined bytes.Buffer
	for _, c := range chunks2 {
		joined.Write(c)
	}
	if !bytes.Equal(joined.Bytes(), over) {
		t.Fatal("chunk concatenation did not reproduce original over-boundary file")
	}
}

func TestChunkEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "empty.bin", nil)
	metadata, chunks, err := ChunkFile(path)
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}
	if len(chunks) != 1 || len(chunks[0]) != 0 {
		t.Fatalf("expected exactly one empty chunk, got %v", chunks)
	}
	if metadata.ChunkCount() != 1 {
		t.Fatalf("expected chunk count 1 for empty file, got %d", metadata.ChunkCount())
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("My-Report_2024.Final.pdf")
	want := []string{"my", "report", "2024", "final", "pdf"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExtractKeywordsDropsShortRuns(t *testing.T) {
	got := ExtractKeywords("a-b-cd-e.txt")
	for _, kw := range got {
		if len(kw) < 2 {
			t.Fatalf("unexpected short keyword %q in %v", kw, got)
		}
	}
}

func TestVerifyChunk(t *testing.T) {
	data := []byte("chunk payload")
	hash := HashBytes(data)
	if !VerifyChunk(data, hash) {
		t.Fatal("expected VerifyChunk to succeed on matching data")
	}
	if VerifyChunk([]byte("tampered"), hash) {
		t.Fatal("expected VerifyChunk to fail on tampered data")
	}
}

func TestReassembleFile(t *testing.T) {
	dir := t.TempDir()
	input := bytes.Repeat([]byte("xyz"), 1000)
	metadata, chunks, err := ChunkData(input, "blob.bin")
	if err != nil {
		t.Fatalf("ChunkData: %v", err)
	}

	out := filepath.Join(dir, "out.bin")
	if err := ReassembleFile(chunks, metadata, out); err != nil {
		t.Fatalf("ReassembleFile: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading reassembled file: %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Fatal("reassembled file did not match original")
	}
}

func TestReassembleFileRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	metadata, chunks, err := ChunkData([]byte("hello world"), "f.txt")
	if err != nil {
		t.Fatalf("ChunkData: %v", err)
	}
	chunks[0] = []byte("corrupted!!")

	out := filepath.Join(dir, "out.bin")
	if err := ReassembleFile(chunks, metadata, out); err == nil {
		t.Fatal("expected ReassembleFile to reject a corrupted chunk")
	}
}

func TestMimeTypeGuess(t *testing.T) {
	if mt := guessMimeType("report.pdf"); mt == nil || *mt != "application/pdf" {
		t.Fatalf("expected application/pdf, got %v", mt)
	}
	if mt := guessMimeType("archive.xyz123"); mt != nil {
		t.Fatalf("expected nil mime type for unknown extension, got %v", *mt)
	}
}

func TestContentHashHexRoundtrip(t *testing.T) {
	h := HashBytes([]byte("some data"))
	s := h.String()
	parsed, err := ParseContentHash(s)
	if err != nil {
		t.Fatalf("ParseContentHash: %v", err)
	}
	if parsed != h {
		t.Fatal("parsed hash did not equal original")
	}
}
