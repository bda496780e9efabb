package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fathomdev/fathom/internal/chunk"
	"github.com/fathomdev/fathom/internal/config"
	"github.com/fathomdev/fathom/internal/embed"
	"github.com/fathomdev/fathom/internal/index"
	"github.com/fathomdev/fathom/internal/scanner"
	"github.com/fathomdev/fathom/internal/search"
	"github.com/fathomdev/fathom/internal/store"
)

// Engine indexes one directory tree and serves hybrid retrieval over it.
// Safe for concurrent use: retrieval takes a read lock on the index
// state, indexing passes swap state under the write lock, and only one
// pass runs at a time.
type Engine struct {
	cfg  *config.Config
	root string
	dir  string

	detector *scanner.Detector
	chunker  *chunk.Chunker
	store    *store.Store
	embedder embed.Embedder
	caps     Capabilities
	lock     *fileLock

	// indexMu is the pass reentrancy guard; TryLock, never Lock.
	indexMu sync.Mutex

	// stateMu guards the index structures against concurrent swap.
	stateMu sync.RWMutex
	lexical *index.Lexical
	vector  *index.Vector
	fuser   *search.Fuser
}

// New creates an engine for the tree rooted at root. The embedding
// backend is probed once here: if it is absent the engine comes up
// lexical-only.
func New(ctx context.Context, cfg *config.Config, root string) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder, err := embed.New(ctx, cfg.Embeddings)
	if err != nil {
		if !errors.Is(err, embed.ErrUnavailable) {
			return nil, err
		}
		slog.Warn("embedding backend unavailable, retrieval is lexical-only",
			slog.String("error", err.Error()))
		embedder = nil
	}

	return NewWithEmbedder(ctx, cfg, root, embedder)
}

// NewWithEmbedder creates an engine with an explicit embedder. A nil
// embedder means lexical-only retrieval. The data directory is keyed by
// the absolute root path, so distinct trees never share state.
func NewWithEmbedder(ctx context.Context, cfg *config.Config, root string, embedder embed.Embedder) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	dir, err := dataDirFor(cfg, absRoot)
	if err != nil {
		return nil, err
	}

	detector, err := scanner.NewDetector(scanner.Options{
		IgnoreDirs:       cfg.Paths.IgnoreDirs,
		IgnoreFiles:      cfg.Paths.IgnoreFiles,
		Extensions:       cfg.Paths.Extensions,
		MaxFileSize:      cfg.Scanner.MaxFileSize,
		BinarySampleSize: cfg.Scanner.BinarySampleSize,
		BinaryMaxRatio:   cfg.Scanner.BinaryMaxRatio,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(filepath.Join(dir, "fathom.db"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		root:     absRoot,
		dir:      dir,
		detector: detector,
		chunker: chunk.New(chunk.Options{
			MaxChunkSize: cfg.Chunking.MaxChunkSize,
			MinChunkSize: cfg.Chunking.MinChunkSize,
			ChunkOverlap: cfg.Chunking.ChunkOverlap,
		}),
		store:   st,
		lock:    newFileLock(dir),
		lexical: index.NewLexical(),
		fuser:   search.NewFuser(cfg.Search.RRFConstant, cfg.Search.RRFAlpha),
		caps:    Capabilities{Lexical: true},
	}

	if embedder != nil {
		e.embedder = embedder
		e.vector = index.NewVector(embedder.Dimensions())
		e.caps.Vector = true
	}

	if err := e.loadState(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	slog.Info("engine ready",
		slog.String("root", absRoot),
		slog.String("data_dir", dir),
		slog.Bool("vector", e.caps.Vector))

	return e, nil
}

func dataDirFor(cfg *config.Config, absRoot string) (string, error) {
	base := cfg.DataDir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".fathom")
	}
	sum := sha256.Sum256([]byte(absRoot))
	return filepath.Join(base, hex.EncodeToString(sum[:])[:16]), nil
}

// loadState restores persisted index structures and reconciles them
// against the store. Any inconsistency or corruption rebuilds from the
// store; the store itself, when corrupted, already came up empty.
func (e *Engine) loadState(ctx context.Context) error {
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return err
	}

	if err := e.lexical.Load(e.lexicalPath()); err != nil {
		slog.Warn("lexical index unreadable, rebuilding from store",
			slog.String("error", err.Error()))
		e.lexical = index.NewLexical()
	}
	if e.lexical.Len() != len(chunks) {
		rebuilt := index.NewLexical()
		rebuilt.Add(chunks)
		e.lexical = rebuilt
	}

	if e.vector != nil {
		if err := e.vector.Load(e.vectorPath()); err != nil {
			// Dimension changes and corruption both mean the persisted
			// vectors are useless; the next pass re-embeds what is missing.
			slog.Warn("vector index unreadable, starting empty",
				slog.String("error", err.Error()))
			e.vector = index.NewVector(e.embedder.Dimensions())
		}
	}
	return nil
}

func (e *Engine) lexicalPath() string { return filepath.Join(e.dir, "lexical.gob") }
func (e *Engine) vectorPath() string  { return filepath.Join(e.dir, "vectors.hnsw") }

// Capabilities reports which retrieval sources are live.
func (e *Engine) Capabilities() Capabilities {
	return e.caps
}

// Stats summarizes engine state.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	stats := Stats{
		Files:        st.Files,
		Chunks:       st.Chunks,
		UniqueChunks: st.UniqueChunks,
		Capabilities: e.caps,
	}
	if e.vector != nil {
		stats.Vectors = e.vector.Len()
	}
	if e.embedder != nil {
		stats.Model = e.embedder.ModelName()
	}
	return stats, nil
}

// Reset discards all indexed state. The next pass reindexes everything.
func (e *Engine) Reset(ctx context.Context) error {
	if !e.indexMu.TryLock() {
		return ErrIndexing
	}
	defer e.indexMu.Unlock()

	if err := e.store.Reset(ctx); err != nil {
		return err
	}
	_ = os.Remove(e.lexicalPath())
	_ = os.Remove(e.vectorPath())
	_ = os.Remove(e.vectorPath() + ".meta")

	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.lexical = index.NewLexical()
	if e.embedder != nil {
		e.vector = index.NewVector(e.embedder.Dimensions())
	}
	return nil
}

// Close releases all engine resources.
func (e *Engine) Close() error {
	e.chunker.Close()

	var errs []error
	if e.embedder != nil {
		errs = append(errs, e.embedder.Close())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}
