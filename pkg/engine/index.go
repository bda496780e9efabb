package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fathomdev/fathom/internal/chunk"
	"github.com/fathomdev/fathom/internal/index"
	"github.com/fathomdev/fathom/internal/store"
)

// virtualPrefix marks documents added through AddDocument. They have no
// on-disk path, so the scanner must neither find nor delete them.
const virtualPrefix = "doc://"

// Index runs one incremental indexing pass and streams progress events.
// The returned channel is closed when the pass finishes; a PhaseError
// event, when present, is the last event. Only one pass runs at a time;
// a second call while one is running returns ErrIndexing immediately.
func (e *Engine) Index(ctx context.Context, opts IndexOptions) (<-chan ProgressEvent, error) {
	if !e.indexMu.TryLock() {
		return nil, ErrIndexing
	}

	events := make(chan ProgressEvent, 64)
	go func() {
		defer e.indexMu.Unlock()
		defer close(events)

		if err := e.runPass(ctx, opts, events); err != nil {
			events <- ProgressEvent{Phase: PhaseError, Err: err, Message: err.Error()}
		}
	}()
	return events, nil
}

func (e *Engine) runPass(ctx context.Context, opts IndexOptions, events chan<- ProgressEvent) error {
	started := time.Now()

	events <- ProgressEvent{Phase: PhaseScan, Message: "scanning " + e.root}

	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	// Virtual documents have no file behind them; hide them from the
	// scanner so they are not reported deleted.
	scanSnapshot := make(map[string]string, len(snapshot))
	for path, hash := range snapshot {
		if !strings.HasPrefix(path, virtualPrefix) {
			scanSnapshot[path] = hash
		}
	}

	report, err := e.detector.Scan(ctx, e.root, scanSnapshot, opts.Force)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	events <- ProgressEvent{
		Phase: PhaseScan,
		Total: len(report.Changed),
		Message: fmt.Sprintf("%d changed, %d unchanged, %d deleted, %d skipped",
			len(report.Changed), len(report.Unchanged), len(report.Deleted), len(report.Skipped)),
	}

	summary := &IndexSummary{
		FilesChanged:   len(report.Changed),
		FilesUnchanged: len(report.Unchanged),
		FilesDeleted:   len(report.Deleted),
		FilesSkipped:   len(report.Skipped),
	}

	if len(report.Changed) == 0 && len(report.Deleted) == 0 && !e.vectorIncomplete(ctx) {
		summary.Duration = time.Since(started)
		events <- ProgressEvent{Phase: PhaseDone, Summary: summary, Message: "index up to date"}
		return nil
	}

	upserts := make([]store.FileChunks, 0, len(report.Changed))
	var newChunks []chunk.Chunk
	for i, change := range report.Changed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		events <- ProgressEvent{
			Phase:     PhaseChunk,
			Processed: i + 1,
			Total:     len(report.Changed),
			Path:      change.Path,
		}

		content, err := os.ReadFile(change.AbsPath)
		if err != nil {
			// The file was readable during the scan; treat a vanished or
			// unreadable file as skippable, not fatal.
			slog.Warn("file unreadable while chunking, skipping",
				slog.String("path", change.Path),
				slog.String("error", err.Error()))
			summary.FilesChanged--
			summary.FilesSkipped++
			continue
		}

		chunks, err := e.chunker.Chunk(ctx, string(content), change.Path, change.Language, change.Hash)
		if err != nil {
			return err
		}
		upserts = append(upserts, store.FileChunks{
			Path:    change.Path,
			Hash:    change.Hash,
			Size:    change.Size,
			ModTime: change.ModTime,
			Chunks:  chunks,
		})
		newChunks = append(newChunks, chunks...)
	}

	vectors, vecErr := e.embedForPass(ctx, newChunks, events)

	events <- ProgressEvent{Phase: PhasePersist, Message: "persisting indexes"}

	if err := e.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = e.lock.Unlock() }()

	result, err := e.store.ApplyPass(ctx, upserts, report.Deleted)
	if err != nil {
		return err
	}
	summary.ChunksAdded = len(result.AddedIDs)
	summary.ChunksRemoved = len(result.OrphanedIDs)

	allChunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return err
	}
	// Lexical term statistics depend on the whole corpus, so the pass
	// rebuilds the index outright and swaps it in.
	rebuilt := index.NewLexical()
	rebuilt.Add(allChunks)

	orphaned := make(map[string]struct{}, len(result.OrphanedIDs))
	for _, id := range result.OrphanedIDs {
		orphaned[id] = struct{}{}
	}

	e.stateMu.Lock()
	e.lexical = rebuilt
	if e.vector != nil {
		e.vector.Remove(result.OrphanedIDs)
		if vecErr == nil {
			ids := make([]string, 0, len(vectors.ids))
			vecs := make([][]float32, 0, len(vectors.vecs))
			for i, id := range vectors.ids {
				if _, gone := orphaned[id]; gone {
					continue
				}
				ids = append(ids, id)
				vecs = append(vecs, vectors.vecs[i])
			}
			if len(ids) > 0 {
				if err := e.vector.Add(ids, vecs); err != nil {
					vecErr = err
				}
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

	summary.Vectored = e.vector != nil && vecErr == nil
	summary.Duration = time.Since(started)

	if vecErr != nil {
		events <- ProgressEvent{
			Phase:   PhaseEmbed,
			Message: "embedding failed, pass committed lexical-only: " + vecErr.Error(),
		}
	}
	events <- ProgressEvent{Phase: PhaseDone, Summary: summary}

	slog.Info("indexing pass complete",
		slog.Int("changed", summary.FilesChanged),
		slog.Int("deleted", summary.FilesDeleted),
		slog.Int("chunks_added", summary.ChunksAdded),
		slog.Int("chunks_removed", summary.ChunksRemoved),
		slog.Duration("duration", summary.Duration))
	return nil
}

// vectorIncomplete reports whether any stored chunk is missing from the
// vector index, which happens after a dimension change or a corrupted
// vector file. An otherwise idle pass then re-embeds the gap.
func (e *Engine) vectorIncomplete(ctx context.Context) bool {
	if e.vector == nil {
		return false
	}
	stored, err := e.store.AllChunks(ctx)
	if err != nil {
		return false
	}
	for _, ch := range stored {
		if !e.vector.Contains(ch.ID) {
			return true
		}
	}
	return false
}

type passVectors struct {
	ids  []string
	vecs [][]float32
}

// embedForPass embeds the chunks this pass introduced plus any stored
// chunks missing from the vector index (healing after a dimension change
// or corrupted vector file). Embedding failure is reported, not fatal:
// the pass still commits and retrieval stays lexical for those chunks.
func (e *Engine) embedForPass(ctx context.Context, newChunks []chunk.Chunk, events chan<- ProgressEvent) (passVectors, error) {
	var out passVectors
	if e.vector == nil {
		return out, nil
	}

	pending := make(map[string]string)
	var order []string
	add := func(id, content string) {
		if _, queued := pending[id]; queued || e.vector.Contains(id) {
			return
		}
		pending[id] = content
		order = append(order, id)
	}
	for _, ch := range newChunks {
		add(ch.ID, ch.Content)
	}
	stored, err := e.store.AllChunks(ctx)
	if err != nil {
		return out, err
	}
	for _, ch := range stored {
		add(ch.ID, ch.Content)
	}
	if len(order) == 0 {
		return out, nil
	}

	batchSize := e.cfg.Embeddings.BatchSize
	for start := 0; start < len(order); start += batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		texts := make([]string, 0, end-start)
		for _, id := range order[start:end] {
			texts = append(texts, pending[id])
		}

		vecs, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return passVectors{}, err
		}
		out.ids = append(out.ids, order[start:end]...)
		out.vecs = append(out.vecs, vecs...)

		events <- ProgressEvent{
			Phase:     PhaseEmbed,
			Processed: end,
			Total:     len(order),
		}
	}
	return out, nil
}
