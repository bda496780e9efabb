package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fathomdev/fathom/internal/chunk"
	"github.com/fathomdev/fathom/internal/index"
	"github.com/fathomdev/fathom/internal/scanner"
	"github.com/fathomdev/fathom/internal/store"
)

// Retrieve runs a hybrid query and returns up to topK fused results.
// The lexical and vector sides are queried in parallel; a failing or
// absent vector side degrades the query to lexical-only instead of
// failing it. topK <= 0 uses the configured default.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = e.cfg.Search.MaxResults
	}

	e.stateMu.RLock()
	lexical := e.lexical
	vector := e.vector
	fuser := e.fuser
	e.stateMu.RUnlock()

	// Over-fetch so fusion has candidates beyond the final cut.
	fetch := topK * 3

	var lexHits, vecHits []index.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexHits = lexical.Search(query, fetch)
		return nil
	})
	if vector != nil && e.embedder != nil {
		g.Go(func() error {
			queryVec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				slog.Warn("query embedding failed, lexical-only",
					slog.String("error", err.Error()))
				return nil
			}
			hits, err := vector.Search(queryVec, fetch)
			if err != nil {
				slog.Warn("vector search failed, lexical-only",
					slog.String("error", err.Error()))
				return nil
			}
			vecHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuser.Fuse(lexHits, vecHits, topK)

	results := make([]SearchResult, 0, len(fused))
	for _, hit := range fused {
		sr := SearchResult{ID: hit.ID, Score: hit.RRFScore}
		if hit.LexRank > 0 {
			sr.Content = hit.Content
			sr.Path = hit.Metadata.Metadata.Path
			sr.Language = hit.Metadata.Metadata.Language
			sr.Type = string(hit.Metadata.Metadata.Type)
			sr.Summary = hit.Metadata.Metadata.Summary
			sr.StartLine = hit.Metadata.Metadata.StartLine
			sr.EndLine = hit.Metadata.Metadata.EndLine
		} else {
			// Vector-only hit: resolve the payload from the store. A miss
			// means the chunk was removed since the vector was indexed.
			ch, err := e.store.GetChunk(ctx, hit.ID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			sr.Content = ch.Content
			sr.Path = ch.Metadata.Path
			sr.Language = ch.Metadata.Language
			sr.Type = string(ch.Metadata.Type)
			sr.Summary = ch.Metadata.Summary
			sr.StartLine = ch.Metadata.StartLine
			sr.EndLine = ch.Metadata.EndLine
		}
		results = append(results, sr)
	}
	return results, nil
}

// AddDocument indexes free-standing content under a virtual path, making
// it retrievable alongside scanned files. Adding the same name again
// replaces the previous content.
func (e *Engine) AddDocument(ctx context.Context, name, content string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("document name must not be empty")
	}
	if !e.indexMu.TryLock() {
		return ErrIndexing
	}
	defer e.indexMu.Unlock()

	path := virtualPrefix + name
	hash := scanner.HashContent([]byte(content))
	language := scanner.DetectLanguage(name)

	chunks, err := e.chunker.Chunk(ctx, content, path, language, hash)
	if err != nil {
		return err
	}

	if err := e.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = e.lock.Unlock() }()

	result, err := e.store.ApplyPass(ctx, []store.FileChunks{{
		Path:    path,
		Hash:    hash,
		Size:    int64(len(content)),
		ModTime: time.Now().UTC(),
		Chunks:  chunks,
	}}, nil)
	if err != nil {
		return err
	}

	return e.refreshIndexes(ctx, chunks, result)
}

// RemoveDocument deletes a document previously added with AddDocument.
func (e *Engine) RemoveDocument(ctx context.Context, name string) error {
	if !e.indexMu.TryLock() {
		return ErrIndexing
	}
	defer e.indexMu.Unlock()

	if err := e.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = e.lock.Unlock() }()

	result, err := e.store.ApplyPass(ctx, nil, []string{virtualPrefix + name})
	if err != nil {
		return err
	}
	return e.refreshIndexes(ctx, nil, result)
}

// refreshIndexes applies a small store delta to the in-memory indexes
// and persists them. Caller holds indexMu and the file lock.
func (e *Engine) refreshIndexes(ctx context.Context, added []chunk.Chunk, result *store.PassResult) error {
	allChunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return err
	}
	rebuilt := index.NewLexical()
	rebuilt.Add(allChunks)

	var ids []string
	var vecs [][]float32
	if e.vector != nil && len(added) > 0 {
		texts := make([]string, 0, len(added))
		for _, ch := range added {
			if e.vector.Contains(ch.ID) {
				continue
			}
			ids = append(ids, ch.ID)
			texts = append(texts, ch.Content)
		}
		if len(ids) > 0 {
			vecs, err = e.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				slog.Warn("embedding failed, document is lexical-only",
					slog.String("error", err.Error()))
				ids = nil
			}
		}
	}

	e.stateMu.Lock()
	e.lexical = rebuilt
	if e.vector != nil {
		e.vector.Remove(result.OrphanedIDs)
		if len(ids) > 0 {
			if err := e.vector.Add(ids, vecs); err != nil {
				slog.Warn("vector index update failed",
					slog.String("error", err.Error()))
			}
		}
	}
	e.stateMu.Unlock()

	if err := e.lexical.Save(e.lexicalPath()); err != nil {
		return err
	}
	if e.vector != nil {
		if err := e.vector.Save(e.vectorPath()); err != nil {
			return err
		}
	}
	return nil
}
