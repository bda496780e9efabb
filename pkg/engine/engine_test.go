package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathomdev/fathom/internal/config"
	"github.com/fathomdev/fathom/internal/embed"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Chunking.MinChunkSize = 10
	return cfg
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestEngine(t *testing.T, cfg *config.Config, root string) *Engine {
	t.Helper()
	e, err := NewWithEmbedder(context.Background(), cfg, root, embed.NewMockEmbedder(8))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// drain runs the pass to completion and returns the final summary.
func drain(t *testing.T, events <-chan ProgressEvent) *IndexSummary {
	t.Helper()
	var summary *IndexSummary
	for event := range events {
		require.NotEqual(t, PhaseError, event.Phase, "pass failed: %v", event.Err)
		if event.Summary != nil {
			summary = event.Summary
		}
	}
	require.NotNil(t, summary)
	return summary
}

func runPass(t *testing.T, e *Engine, opts IndexOptions) *IndexSummary {
	t.Helper()
	events, err := e.Index(context.Background(), opts)
	require.NoError(t, err)
	return drain(t, events)
}

func TestEngine_IndexAndRetrieve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "auth.go", `package auth

// Login validates user credentials against the directory.
func Login(user, password string) error {
	return nil
}
`)
	writeFile(t, root, "README.md", "# Demo\n\nAuthentication service.\n")

	e := newTestEngine(t, testConfig(t), root)

	summary := runPass(t, e, IndexOptions{})
	assert.Equal(t, 2, summary.FilesChanged)
	assert.Greater(t, summary.ChunksAdded, 0)
	assert.True(t, summary.Vectored)

	results, err := e.Retrieve(context.Background(), "validate user credentials", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.go", results[0].Path)
	assert.Contains(t, results[0].Content, "Login")
}

// Indexing an unchanged tree is a no-op.
func TestEngine_Index_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "stable content here.\n")

	e := newTestEngine(t, testConfig(t), root)

	first := runPass(t, e, IndexOptions{})
	assert.Equal(t, 1, first.FilesChanged)

	second := runPass(t, e, IndexOptions{})
	assert.Zero(t, second.FilesChanged)
	assert.Zero(t, second.FilesDeleted)
	assert.Equal(t, 1, second.FilesUnchanged)
}

// Only the touched file is reprocessed.
func TestEngine_Index_Incremental(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "first document body.\n")
	writeFile(t, root, "b.txt", "second document body.\n")

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	writeFile(t, root, "a.txt", "first document body, edited.\n")
	summary := runPass(t, e, IndexOptions{})
	assert.Equal(t, 1, summary.FilesChanged)
	assert.Equal(t, 1, summary.FilesUnchanged)
}

func TestEngine_Index_Force(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "forced content.\n")

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	summary := runPass(t, e, IndexOptions{Force: true})
	assert.Equal(t, 1, summary.FilesChanged)
}

func TestEngine_Index_DeletionCleanup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "material that stays relevant.\n")
	writeFile(t, root, "gone.txt", "ephemeral zanzibar material.\n")

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	results, err := e.Retrieve(context.Background(), "zanzibar", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.txt")))
	summary := runPass(t, e, IndexOptions{})
	assert.Equal(t, 1, summary.FilesDeleted)
	assert.Greater(t, summary.ChunksRemoved, 0)

	results, err = e.Retrieve(context.Background(), "zanzibar", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "gone.txt", r.Path, "deleted content must not be retrievable")
	}

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

// Identical content in two files is stored twice but indexed once.
func TestEngine_Index_DeduplicatesIdenticalContent(t *testing.T) {
	root := t.TempDir()
	content := "duplicated paragraph shared across files.\n"
	writeFile(t, root, "one.txt", content)
	writeFile(t, root, "two.txt", content)

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 1, stats.UniqueChunks)
	assert.Equal(t, 1, stats.Vectors)
}

func TestEngine_Retrieve_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "searchable alpha material.\n")
	writeFile(t, root, "b.txt", "searchable beta material.\n")
	writeFile(t, root, "c.txt", "searchable gamma material.\n")

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	first, err := e.Retrieve(context.Background(), "searchable material", 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Retrieve(context.Background(), "searchable material", 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// Without an embedding backend the engine still indexes and retrieves.
func TestEngine_LexicalOnlyDegradation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "lexical only corpus entry.\n")

	e, err := NewWithEmbedder(context.Background(), testConfig(t), root, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.Capabilities().Lexical)
	assert.False(t, e.Capabilities().Vector)

	summary := runPass(t, e, IndexOptions{})
	assert.False(t, summary.Vectored)

	results, err := e.Retrieve(context.Background(), "lexical corpus", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestEngine_Index_Reentrancy(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, testConfig(t), root)

	e.indexMu.Lock()
	_, err := e.Index(context.Background(), IndexOptions{})
	e.indexMu.Unlock()
	assert.ErrorIs(t, err, ErrIndexing)
}

func TestEngine_AddDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "ordinary file content.\n")

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	require.NoError(t, e.AddDocument(context.Background(), "notes.md", "# Notes\n\nQuasar deployment checklist.\n"))

	results, err := e.Retrieve(context.Background(), "quasar deployment", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, virtualPrefix+"notes.md", results[0].Path)

	// A scan pass must not delete the virtual document.
	summary := runPass(t, e, IndexOptions{})
	assert.Zero(t, summary.FilesDeleted)

	results, err = e.Retrieve(context.Background(), "quasar deployment", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	require.NoError(t, e.RemoveDocument(context.Background(), "notes.md"))
	results, err = e.Retrieve(context.Background(), "quasar deployment", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, virtualPrefix+"notes.md", r.Path)
	}
}

func TestEngine_PersistenceAcrossReopen(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t)
	writeFile(t, root, "a.txt", "durable corpus content.\n")

	e := newTestEngine(t, cfg, root)
	runPass(t, e, IndexOptions{})
	require.NoError(t, e.Close())

	reopened, err := NewWithEmbedder(context.Background(), cfg, root, embed.NewMockEmbedder(8))
	require.NoError(t, err)
	defer reopened.Close()

	summary := runPass(t, reopened, IndexOptions{})
	assert.Zero(t, summary.FilesChanged, "nothing changed while closed")

	results, err := reopened.Retrieve(context.Background(), "durable corpus", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

// A dimension change invalidates persisted vectors; the next pass
// re-embeds instead of failing.
func TestEngine_ReopenWithDifferentDimensions(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t)
	writeFile(t, root, "a.txt", "content embedded at one width.\n")

	e := newTestEngine(t, cfg, root)
	runPass(t, e, IndexOptions{})
	require.NoError(t, e.Close())

	reopened, err := NewWithEmbedder(context.Background(), cfg, root, embed.NewMockEmbedder(16))
	require.NoError(t, err)
	defer reopened.Close()

	runPass(t, reopened, IndexOptions{})
	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.UniqueChunks, stats.Vectors)
}

func TestEngine_Reset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "resettable content.\n")

	e := newTestEngine(t, testConfig(t), root)
	runPass(t, e, IndexOptions{})

	require.NoError(t, e.Reset(context.Background()))

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
	assert.Zero(t, stats.Vectors)

	results, err := e.Retrieve(context.Background(), "resettable", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	summary := runPass(t, e, IndexOptions{})
	assert.Equal(t, 1, summary.FilesChanged)
}

func TestEngine_Retrieve_EmptyQuery(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, testConfig(t), root)

	results, err := e.Retrieve(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestEngine_DistinctRootsDoNotShareState(t *testing.T) {
	cfg := testConfig(t)

	rootA := t.TempDir()
	writeFile(t, rootA, "a.txt", "content only in tree A.\n")
	rootB := t.TempDir()
	writeFile(t, rootB, "b.txt", "content only in tree B.\n")

	eA := newTestEngine(t, cfg, rootA)
	eB := newTestEngine(t, cfg, rootB)
	runPass(t, eA, IndexOptions{})
	runPass(t, eB, IndexOptions{})

	results, err := eB.Retrieve(context.Background(), "tree A", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a.txt", r.Path)
	}
}
