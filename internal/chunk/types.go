// Package chunk splits file content into retrieval units along
// semantically meaningful boundaries.
//
// Strategy selection is a lookup table keyed by language tag, resolved
// once when the Chunker is constructed: code languages get an AST-aware
// strategy (tree-sitter), markdown splits at headings, and everything
// else falls back to sentence-boundary splitting. A post-pass merges
// undersized neighbors of the same structural type, then bounded overlap
// from adjacent chunks is injected as inline context.
package chunk

import (
	"context"
	"time"
)

// ChunkType is the structural classification of a chunk.
type ChunkType string

const (
	TypeFunction    ChunkType = "function"
	TypeMethod      ChunkType = "method"
	TypeClass       ChunkType = "class"
	TypeTypeDecl    ChunkType = "type"
	TypeSection     ChunkType = "section"
	TypeFrontmatter ChunkType = "frontmatter"
	TypeText        ChunkType = "text"
)

// Metadata describes where a chunk came from.
type Metadata struct {
	// Path is the source file path, relative to the indexed root.
	Path     string
	Language string
	Type     ChunkType
	// ChunkIndex and TotalChunks position the chunk within its file.
	ChunkIndex  int
	TotalChunks int
	// StartLine and EndLine span the core content (1-indexed, inclusive),
	// excluding injected overlap.
	StartLine int
	EndLine   int
	// Summary is a short human-readable description.
	Summary string
	// FileHash is the hex SHA-256 of the whole source file.
	FileHash  string
	IndexedAt time.Time
}

// Chunk is a retrievable unit of content.
type Chunk struct {
	// ID is the hex SHA-256 of Content, truncated to 16 characters.
	// Identical content always yields an identical ID, across files and
	// across reindex runs.
	ID       string
	Content  string
	Metadata Metadata
}

// Options configures chunk sizing, in characters. Overlap is cosmetic
// context and never counts toward the size limits.
type Options struct {
	MaxChunkSize int
	MinChunkSize int
	ChunkOverlap int
}

// fragment is an intermediate split unit produced by a strategy, before
// the merge pass and overlap injection.
type fragment struct {
	text      string
	chunkType ChunkType
	startLine int // 1-indexed
	endLine   int // inclusive
	// title is an optional human-readable label (symbol name, heading).
	title string
}

// strategy splits file content into fragments. Returning an error makes
// the Chunker fall back to the generic text strategy for that file.
type strategy interface {
	split(ctx context.Context, content string) ([]fragment, error)
}
