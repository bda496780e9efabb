// Package engine is the public facade: incremental indexing of a
// directory tree and hybrid lexical plus vector retrieval over it.
package engine

import (
	"errors"
	"time"
)

// ErrIndexing is returned when an indexing pass is already running.
var ErrIndexing = errors.New("indexing already in progress")

// Phase identifies a stage of an indexing pass.
type Phase string

const (
	PhaseScan    Phase = "scan"
	PhaseChunk   Phase = "chunk"
	PhaseEmbed   Phase = "embed"
	PhasePersist Phase = "persist"
	PhaseDone    Phase = "done"
	PhaseError   Phase = "error"
)

// ProgressEvent is one streamed progress update from an indexing pass.
type ProgressEvent struct {
	Phase     Phase
	Processed int
	Total     int
	// Path is the file currently being worked on, when applicable.
	Path string
	// Message carries human-readable detail, warnings included.
	Message string
	// Summary is populated on the final PhaseDone event.
	Summary *IndexSummary
	// Err is populated on PhaseError, which is always the last event.
	Err error
}

// IndexSummary describes a completed indexing pass.
type IndexSummary struct {
	FilesChanged   int
	FilesUnchanged int
	FilesDeleted   int
	FilesSkipped   int
	ChunksAdded    int
	ChunksRemoved  int
	Vectored       bool
	Duration       time.Duration
}

// IndexOptions tunes one indexing pass.
type IndexOptions struct {
	// Force reindexes every file regardless of the hash snapshot.
	Force bool
}

// Capabilities reports which retrieval sources are live. Computed once
// at construction; an absent embedding backend degrades retrieval to
// lexical-only rather than failing.
type Capabilities struct {
	Lexical bool
	Vector  bool
}

// SearchResult is one hybrid retrieval hit.
type SearchResult struct {
	ID        string
	Score     float64
	Content   string
	Path      string
	Language  string
	Type      string
	Summary   string
	StartLine int
	EndLine   int
}

// Stats summarizes engine state.
type Stats struct {
	Files        int
	Chunks       int
	UniqueChunks int
	Vectors      int
	Capabilities Capabilities
	Model        string
}
