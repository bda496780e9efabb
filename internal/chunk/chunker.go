package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Chunker splits file content into retrieval units. Strategies are
// resolved once at construction; Chunk never dispatches on runtime type
// inspection.
type Chunker struct {
	opts       Options
	registry   *languageRegistry
	parser     *parser
	strategies map[string]strategy
	fallback   strategy
}

// New creates a Chunker with the given sizing options.
func New(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = 2000
	}
	if opts.MinChunkSize < 0 {
		opts.MinChunkSize = 0
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}

	registry := newLanguageRegistry()
	p := newParser(registry)

	strategies := make(map[string]strategy)
	for name := range registry.configs {
		strategies[name] = &codeStrategy{language: name, parser: p, registry: registry}
	}
	strategies["markdown"] = &markdownStrategy{}

	return &Chunker{
		opts:       opts,
		registry:   registry,
		parser:     p,
		strategies: strategies,
		fallback:   &textStrategy{maxSize: opts.MaxChunkSize},
	}
}

// Close releases parser resources.
func (c *Chunker) Close() {
	c.parser.close()
}

// Chunk splits content into chunks. A structural parse failure falls back
// to the generic text strategy for this file only; the error is logged,
// not returned.
func (c *Chunker) Chunk(ctx context.Context, content, path, language, fileHash string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	strat, ok := c.strategies[language]
	if !ok {
		strat = c.fallback
	}

	frags, err := strat.split(ctx, content)
	if err != nil || len(frags) == 0 {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Debug("structural split failed, using text fallback",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		frags, err = c.fallback.split(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", path, err)
		}
	}

	frags = c.merge(frags)
	return c.assemble(frags, path, language, fileHash), nil
}

// merge combines adjacent fragments of the same structural type when
// either is below MinChunkSize, without ever exceeding MaxChunkSize.
// A fragment that is too small but cannot merge stays separate.
func (c *Chunker) merge(frags []fragment) []fragment {
	if len(frags) < 2 {
		return frags
	}

	merged := make([]fragment, 0, len(frags))
	current := frags[0]

	for _, next := range frags[1:] {
		sameType := current.chunkType == next.chunkType
		eitherSmall := len(current.text) < c.opts.MinChunkSize || len(next.text) < c.opts.MinChunkSize
		// The joining separator counts toward the merged size.
		fits := len(current.text)+len(next.text)+2 <= c.opts.MaxChunkSize

		if sameType && eitherSmall && fits {
			current.text = current.text + "\n\n" + next.text
			current.endLine = next.endLine
			if current.title == "" {
				current.title = next.title
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	return merged
}

// assemble turns fragments into chunks: overlap injection, metadata, and
// content-addressed IDs. Overlap is concatenated into the stored content
// (bounded tail of the previous fragment, bounded head of the next) and
// does not count toward the size limits.
func (c *Chunker) assemble(frags []fragment, path, language, fileHash string) []Chunk {
	now := time.Now().UTC()
	chunks := make([]Chunk, 0, len(frags))

	for i, frag := range frags {
		content := frag.text
		if c.opts.ChunkOverlap > 0 {
			var b strings.Builder
			if i > 0 {
				b.WriteString(tailLines(frags[i-1].text, c.opts.ChunkOverlap))
				b.WriteString("\n")
			}
			b.WriteString(frag.text)
			if i < len(frags)-1 {
				b.WriteString("\n")
				b.WriteString(headLines(frags[i+1].text, c.opts.ChunkOverlap))
			}
			content = b.String()
		}

		chunks = append(chunks, Chunk{
			ID:      ChunkID(content),
			Content: content,
			Metadata: Metadata{
				Path:        path,
				Language:    language,
				Type:        frag.chunkType,
				ChunkIndex:  i,
				TotalChunks: len(frags),
				StartLine:   frag.startLine,
				EndLine:     frag.endLine,
				Summary:     summarize(frag, path),
				FileHash:    fileHash,
				IndexedAt:   now,
			},
		})
	}

	return chunks
}

// ChunkID returns the content-addressed chunk identifier: hex SHA-256 of
// the content, truncated to 16 characters. Identical content yields an
// identical ID regardless of which file produced it, which is what makes
// deduplication and reindex cache reuse work.
func ChunkID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// summarize builds the short human-readable summary for a fragment.
func summarize(frag fragment, path string) string {
	label := frag.title
	if label == "" {
		label = firstLine(frag.text, 60)
	}
	return fmt.Sprintf("%s %q in %s (lines %d-%d)",
		frag.chunkType, label, path, frag.startLine, frag.endLine)
}

func firstLine(text string, limit int) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) > limit {
		line = string(runes[:limit])
	}
	return line
}

// tailLines returns whole trailing lines of text fitting within budget
// characters. A single line longer than the budget is truncated from the
// front.
func tailLines(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	lines := strings.Split(text, "\n")
	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		cost := len(lines[i]) + 1
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}
	if start == len(lines) {
		// No whole line fits; take a raw tail, advanced to a rune boundary
		// so the injected overlap stays valid UTF-8.
		cut := len(text) - budget
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}
		return text[cut:]
	}
	return strings.Join(lines[start:], "\n")
}

// headLines returns whole leading lines of text fitting within budget
// characters, mirroring tailLines.
func headLines(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	lines := strings.Split(text, "\n")
	total := 0
	end := 0
	for i := 0; i < len(lines); i++ {
		cost := len(lines[i]) + 1
		if total+cost > budget {
			break
		}
		total += cost
		end = i + 1
	}
	if end == 0 {
		cut := budget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut]
	}
	return strings.Join(lines[:end], "\n")
}
