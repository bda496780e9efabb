// Package embed turns text into dense vectors through a pluggable
// backend. The engine treats an absent backend as a capability gap, not
// a failure: retrieval degrades to lexical-only.
package embed

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that no embedding backend could be reached.
var ErrUnavailable = errors.New("embedding backend unavailable")

const (
	// DefaultBatchSize is the number of texts sent per backend request.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultCacheSize is the number of embeddings kept in the LRU cache.
	DefaultCacheSize = 1000
)

// Embedder generates embeddings for text.
type Embedder interface {
	// Embed returns the embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName identifies the backing model.
	ModelName() string

	// Close releases backend resources.
	Close() error
}
