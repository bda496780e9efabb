package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathomdev/fathom/internal/chunk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fathom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(id, content, path string) chunk.Chunk {
	return chunk.Chunk{
		ID:      id,
		Content: content,
		Metadata: chunk.Metadata{
			Path:        path,
			Language:    "text",
			Type:        chunk.TypeText,
			TotalChunks: 1,
			StartLine:   1,
			EndLine:     1,
			IndexedAt:   time.Now().UTC(),
		},
	}
}

func TestStore_ApplyPass_Roundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.ApplyPass(ctx, []FileChunks{
		{
			Path: "a.txt", Hash: "h1",
			Chunks: []chunk.Chunk{testChunk("c1", "alpha", "a.txt")},
		},
		{
			Path: "b.txt", Hash: "h2",
			Chunks: []chunk.Chunk{testChunk("c2", "beta", "b.txt")},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, result.AddedIDs)
	assert.Empty(t, result.OrphanedIDs)

	snapshot, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "h1", "b.txt": "h2"}, snapshot)

	chunks, err := s.AllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)
	assert.Equal(t, "alpha", chunks[0].Content)
	assert.Equal(t, "a.txt", chunks[0].Metadata.Path)
}

func TestStore_ApplyPass_DeleteRemovesFileAndOrphans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyPass(ctx, []FileChunks{
		{Path: "a.txt", Hash: "h1", Chunks: []chunk.Chunk{testChunk("c1", "alpha", "a.txt")}},
	}, nil)
	require.NoError(t, err)

	result, err := s.ApplyPass(ctx, nil, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, result.OrphanedIDs)

	snapshot, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	chunks, err := s.AllChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// A chunk shared by two files only becomes orphaned once neither file
// references it.
func TestStore_ApplyPass_SharedChunkSurvivesSingleDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyPass(ctx, []FileChunks{
		{Path: "a.txt", Hash: "h1", Chunks: []chunk.Chunk{testChunk("dup", "same", "a.txt")}},
		{Path: "b.txt", Hash: "h2", Chunks: []chunk.Chunk{testChunk("dup", "same", "b.txt")}},
	}, nil)
	require.NoError(t, err)

	result, err := s.ApplyPass(ctx, nil, []string{"a.txt"})
	require.NoError(t, err)
	assert.Empty(t, result.OrphanedIDs)

	result, err = s.ApplyPass(ctx, nil, []string{"b.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dup"}, result.OrphanedIDs)
}

func TestStore_ApplyPass_ChangedFileReplacesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyPass(ctx, []FileChunks{
		{Path: "a.txt", Hash: "h1", Chunks: []chunk.Chunk{testChunk("old", "v1", "a.txt")}},
	}, nil)
	require.NoError(t, err)

	result, err := s.ApplyPass(ctx, []FileChunks{
		{Path: "a.txt", Hash: "h2", Chunks: []chunk.Chunk{testChunk("new", "v2", "a.txt")}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, result.AddedIDs)
	assert.Equal(t, []string{"old"}, result.OrphanedIDs)

	snapshot, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "h2", snapshot["a.txt"])
}

func TestStore_GetChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyPass(ctx, []FileChunks{
		{Path: "a.txt", Hash: "h1", Chunks: []chunk.Chunk{testChunk("c1", "alpha", "a.txt")}},
	}, nil)
	require.NoError(t, err)

	ch, err := s.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", ch.Content)

	_, err = s.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_StatsAndReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ApplyPass(ctx, []FileChunks{
		{Path: "a.txt", Hash: "h1", Chunks: []chunk.Chunk{testChunk("dup", "same", "a.txt")}},
		{Path: "b.txt", Hash: "h2", Chunks: []chunk.Chunk{testChunk("dup", "same", "b.txt")}},
	}, nil)
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 2, st.Chunks)
	assert.Equal(t, 1, st.UniqueChunks)

	require.NoError(t, s.Reset(ctx))
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Files)
	assert.Zero(t, st.Chunks)
}

// Garbage on disk is treated as an empty store, not a fatal error.
func TestStore_Open_CorruptedFileRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fathom.db")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite database at all"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	snapshot, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestStore_Persistence_AcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fathom.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.ApplyPass(context.Background(), []FileChunks{
		{Path: "a.txt", Hash: "h1", Chunks: []chunk.Chunk{testChunk("c1", "alpha", "a.txt")}},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	snapshot, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "h1", snapshot["a.txt"])
}
