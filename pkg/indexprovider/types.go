package indexprovider

import "github.com/WebFirstLanguage/brisby/pkg/content"

// DefaultTTLSeconds is the TTL applied to every publish, per spec.
const DefaultTTLSeconds = 24 * 60 * 60

// IndexEntry is one file known to the index provider, independent of
// which seeders currently publish it.
type IndexEntry struct {
	ContentHash content.ContentHash
	Filename    string
	Keywords    []string
	Size        uint64
	ChunkCount  uint32
	PublishedAt uint64
	TTL         uint64
}

// Stats summarizes the current contents of the index.
type Stats struct {
	EntryCount     uint64
	TotalSizeBytes uint64
}
