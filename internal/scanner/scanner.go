package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Detector discovers indexable files and classifies them against a prior
// path→hash snapshot.
type Detector struct {
	opts       Options
	ignoreDirs map[string]bool
	extensions map[string]bool
}

// NewDetector creates a Detector. Zero-valued options fall back to
// permissive defaults; the extension set must be non-empty.
func NewDetector(opts Options) (*Detector, error) {
	if len(opts.Extensions) == 0 {
		return nil, fmt.Errorf("scanner: extension set must not be empty")
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 5 * 1024 * 1024
	}
	if opts.BinarySampleSize <= 0 {
		opts.BinarySampleSize = 8192
	}
	if opts.BinaryMaxRatio <= 0 || opts.BinaryMaxRatio > 1 {
		opts.BinaryMaxRatio = 0.30
	}

	d := &Detector{
		opts:       opts,
		ignoreDirs: make(map[string]bool, len(opts.IgnoreDirs)),
		extensions: make(map[string]bool, len(opts.Extensions)),
	}
	for _, dir := range opts.IgnoreDirs {
		d.ignoreDirs[dir] = true
	}
	for _, ext := range opts.Extensions {
		d.extensions[strings.ToLower(ext)] = true
	}
	return d, nil
}

// Scan walks root and classifies every candidate file against snapshot.
// With force set, every scanned file is reported as changed regardless of
// hash match. Deleted paths are snapshot entries absent from the walk.
func (d *Detector) Scan(ctx context.Context, root string, snapshot map[string]string, force bool) (*Report, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	report := &Report{}
	seen := make(map[string]bool, len(snapshot))

	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // skip entries we cannot access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if entry.IsDir() {
			if d.ignoreDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are not followed.
		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if !d.supported(relPath) {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			return nil
		}

		if fi.Size() > d.opts.MaxFileSize {
			slog.Debug("skipping oversized file",
				slog.String("path", relPath),
				slog.Int64("size", fi.Size()))
			report.Skipped = append(report.Skipped, SkippedFile{Path: relPath, Reason: SkipOversized})
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file",
				slog.String("path", relPath),
				slog.String("error", err.Error()))
			report.Skipped = append(report.Skipped, SkippedFile{Path: relPath, Reason: SkipUnreadable})
			return nil
		}

		if d.looksBinary(content) {
			slog.Debug("skipping binary file", slog.String("path", relPath))
			report.Skipped = append(report.Skipped, SkippedFile{Path: relPath, Reason: SkipBinary})
			return nil
		}

		hash := HashContent(content)
		seen[relPath] = true

		if !force {
			if prev, ok := snapshot[relPath]; ok && prev == hash {
				report.Unchanged = append(report.Unchanged, relPath)
				return nil
			}
		}

		language := DetectLanguage(relPath)
		report.Changed = append(report.Changed, FileChange{
			Path:        relPath,
			AbsPath:     path,
			Hash:        hash,
			Size:        fi.Size(),
			ModTime:     fi.ModTime(),
			Language:    language,
			ContentType: DetectContentType(language),
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for path := range snapshot {
		if !seen[path] {
			report.Deleted = append(report.Deleted, path)
		}
	}
	// Map iteration order is random; keep deletion order reproducible.
	sort.Strings(report.Deleted)

	return report, nil
}

// supported reports whether relPath passes the extension and ignore-file
// filters.
func (d *Detector) supported(relPath string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range d.opts.IgnoreFiles {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(base))
	return d.extensions[ext]
}

// looksBinary applies the non-text-byte ratio heuristic to the leading
// bytes of content. A single NUL byte is an immediate positive.
func (d *Detector) looksBinary(content []byte) bool {
	sample := content
	if len(sample) > d.opts.BinarySampleSize {
		sample = sample[:d.opts.BinarySampleSize]
	}
	if len(sample) == 0 {
		return false
	}

	nonText := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' && b != '\f' {
			nonText++
		}
	}
	return float64(nonText)/float64(len(sample)) > d.opts.BinaryMaxRatio
}

// HashContent returns the hex SHA-256 of content. This is the hash stored
// in the file hash table and recorded in chunk metadata.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
