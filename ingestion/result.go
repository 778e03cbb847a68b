package ingestion

import "github.com/poiesic/juris/core"

// DocumentStatus is the outcome of ingesting one file.
type DocumentStatus int

const (
	// DocumentIngested means the document and section were written and
	// every chunk was attempted. Individual chunks may still have failed.
	DocumentIngested DocumentStatus = iota
	// DocumentSkipped means the ledger already recorded this content.
	DocumentSkipped
	// DocumentEmpty means no text survived normalization. Nothing was written.
	DocumentEmpty
	// DocumentFailed means the file could not be read or the document or
	// section write failed. No chunk work was done.
	DocumentFailed
	// DocumentInterrupted means the context was canceled between chunks.
	DocumentInterrupted
)

func (s DocumentStatus) String() string {
	switch s {
	case DocumentIngested:
		return "ingested"
	case DocumentSkipped:
		return "skipped"
	case DocumentEmpty:
		return "empty"
	case DocumentFailed:
		return "failed"
	case DocumentInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ChunkStatus is the outcome of one chunk.
type ChunkStatus int

const (
	// ChunkEmbedded means the chunk is stored and linked to its embedding.
	ChunkEmbedded ChunkStatus = iota
	// ChunkUnembedded means the chunk is stored with a null vector id.
	ChunkUnembedded
	// ChunkOrphaned means the embedding is stored but the chunk's back-link
	// write failed.
	ChunkOrphaned
	// ChunkFailed means the chunk itself could not be written.
	ChunkFailed
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkEmbedded:
		return "embedded"
	case ChunkUnembedded:
		return "unembedded"
	case ChunkOrphaned:
		return "orphaned"
	case ChunkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChunkResult reports what happened to one chunk.
type ChunkResult struct {
	Order     int
	ChunkID   core.ID // NilID when Status is ChunkFailed
	VectorID  core.ID // NilID unless Status is ChunkEmbedded or ChunkOrphaned
	StartPage int
	EndPage   int
	Reference core.ArticleReference
	Status    ChunkStatus
	Err       error
}

// DocumentResult reports what happened to one file.
type DocumentResult struct {
	Path        string
	Source      string
	ContentHash string
	DocumentID  core.ID
	SectionID   core.ID
	Status      DocumentStatus
	Err         error
	Warnings    []string
	Chunks      []ChunkResult
}

// Count returns the number of chunks with status s.
func (r *DocumentResult) Count(s ChunkStatus) int {
	n := 0
	for i := range r.Chunks {
		if r.Chunks[i].Status == s {
			n++
		}
	}
	return n
}

// Summary collects the results of a directory run in file order.
type Summary struct {
	Documents []DocumentResult
}

// Count returns the number of documents with status s.
func (s *Summary) Count(status DocumentStatus) int {
	n := 0
	for i := range s.Documents {
		if s.Documents[i].Status == status {
			n++
		}
	}
	return n
}

// ChunkCount returns the number of chunks with status cs across all documents.
func (s *Summary) ChunkCount(cs ChunkStatus) int {
	n := 0
	for i := range s.Documents {
		n += s.Documents[i].Count(cs)
	}
	return n
}

// Processed returns the number of documents that were ingested or skipped.
func (s *Summary) Processed() int {
	return s.Count(DocumentIngested) + s.Count(DocumentSkipped)
}
