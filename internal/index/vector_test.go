package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_AddAndSearch(t *testing.T) {
	idx := NewVector(3)

	err := idx.Add(
		[]string{"x", "y", "z"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	results, err := idx.Search([]float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestVector_DimensionMismatch(t *testing.T) {
	idx := NewVector(3)

	err := idx.Add([]string{"x"}, [][]float32{{1, 0}})
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = idx.Search([]float32{1, 0}, 1)
	assert.ErrorAs(t, err, &dimErr)
}

func TestVector_SearchEmptyIndex(t *testing.T) {
	idx := NewVector(3)
	results, err := idx.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVector_Remove_LazyDeletionFiltersResults(t *testing.T) {
	idx := NewVector(3)
	require.NoError(t, idx.Add(
		[]string{"x", "y"},
		[][]float32{{1, 0, 0}, {0, 1, 0}}))

	idx.Remove([]string{"x"})
	assert.Equal(t, 1, idx.Len())
	assert.False(t, idx.Contains("x"))

	results, err := idx.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].ID)
}

func TestVector_Add_ReplacesExistingID(t *testing.T) {
	idx := NewVector(3)
	require.NoError(t, idx.Add([]string{"x"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Add([]string{"x"}, [][]float32{{0, 1, 0}}))
	assert.Equal(t, 1, idx.Len())

	results, err := idx.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
}

func TestVector_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	idx := NewVector(3)
	require.NoError(t, idx.Add(
		[]string{"x", "y"},
		[][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, idx.Save(path))

	loaded := NewVector(3)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Len())

	results, err := loaded.Search([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
}

func TestVector_Load_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	idx := NewVector(3)
	require.NoError(t, idx.Add([]string{"x"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Save(path))

	loaded := NewVector(4)
	var dimErr ErrDimensionMismatch
	assert.ErrorAs(t, loaded.Load(path), &dimErr)
}

func TestVector_Load_MissingFileIsEmpty(t *testing.T) {
	idx := NewVector(3)
	require.NoError(t, idx.Load(filepath.Join(t.TempDir(), "absent.hnsw")))
	assert.Zero(t, idx.Len())
}
