// Package scanner implements change detection over a source tree.
//
// A Detector walks the root, filters ignorable, oversized, and binary
// files, hashes the remainder, and classifies every candidate as changed
// or unchanged against a prior path→hash snapshot. The Detector has no
// persistence side effects; the caller owns the snapshot lifecycle.
package scanner

import "time"

// ContentType is the coarse content classification used to pick a
// chunking strategy.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// FileChange describes one added or modified file discovered by a scan.
type FileChange struct {
	// Path is relative to the scanned root, slash-separated.
	Path    string
	AbsPath string
	// Hash is the hex SHA-256 of the file content.
	Hash        string
	Size        int64
	ModTime     time.Time
	Language    string
	ContentType ContentType
}

// SkipReason explains why a scanned file was excluded from indexing.
type SkipReason string

const (
	SkipOversized  SkipReason = "oversized"
	SkipBinary     SkipReason = "binary"
	SkipUnreadable SkipReason = "unreadable"
)

// SkippedFile records an excluded file so the exclusion leaves a log trail.
type SkippedFile struct {
	Path   string
	Reason SkipReason
}

// Report is the result of one scan pass.
type Report struct {
	// Changed lists files that are new or whose content hash differs from
	// the snapshot (or every scanned file when force is set).
	Changed []FileChange
	// Unchanged lists paths whose hash matches the snapshot.
	Unchanged []string
	// Deleted lists snapshot paths absent from the current walk.
	Deleted []string
	// Skipped lists files excluded by the size ceiling, the binary
	// heuristic, or read failures.
	Skipped []SkippedFile
}

// Options configures a Detector.
type Options struct {
	// IgnoreDirs are directory names pruned from the walk.
	IgnoreDirs []string
	// IgnoreFiles are glob patterns matched against file base names.
	IgnoreFiles []string
	// Extensions is the supported extension set (with leading dot).
	Extensions []string
	// MaxFileSize is the size ceiling in bytes.
	MaxFileSize int64
	// BinarySampleSize is how many leading bytes the binary heuristic reads.
	BinarySampleSize int
	// BinaryMaxRatio is the non-text-byte ratio above which a file is
	// treated as binary.
	BinaryMaxRatio float64
}
