// Package index holds the derived search structures: a TF-IDF lexical
// index and an HNSW vector index. Both are rebuildable from the document
// store and persist themselves with atomic temp-file-plus-rename saves.
package index

import (
	"fmt"

	"github.com/fathomdev/fathom/internal/chunk"
)

// Result is a scored index hit.
type Result struct {
	ID       string
	Content  string
	Score    float64
	Metadata chunk.Metadata
}

// ErrDimensionMismatch is returned when a vector's dimensionality does
// not match the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
