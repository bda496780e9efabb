package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathomdev/fathom/internal/index"
)

func hits(ids ...string) []index.Result {
	out := make([]index.Result, len(ids))
	for i, id := range ids {
		out[i] = index.Result{ID: id, Content: "content-" + id, Score: 1 - float64(i)*0.1}
	}
	return out
}

func idsOf(results []FusedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestFuser_DocumentInBothListsRanksFirst(t *testing.T) {
	f := NewFuser(60, 0.5)

	results := f.Fuse(hits("shared", "lexonly"), hits("vecfirst", "shared"), 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "shared", results[0].ID)
	assert.Equal(t, 1, results[0].LexRank)
	assert.Equal(t, 2, results[0].VecRank)
}

// Alpha 0 ignores the vector list entirely, even with room in topK.
func TestFuser_AlphaZeroIsLexicalOrder(t *testing.T) {
	f := NewFuser(60, 0)

	lex := hits("a", "b", "c")
	vec := hits("x", "y", "z")
	results := f.Fuse(lex, vec, 10)

	assert.Equal(t, []string{"a", "b", "c"}, idsOf(results))
	for _, r := range results {
		assert.Zero(t, r.VecRank)
	}
}

// Alpha 1 ignores the lexical list entirely, even with room in topK.
func TestFuser_AlphaOneIsVectorOrder(t *testing.T) {
	f := NewFuser(60, 1)

	results := f.Fuse(hits("a", "b", "c"), hits("x", "y", "z"), 10)
	assert.Equal(t, []string{"x", "y", "z"}, idsOf(results))
}

// Disjoint single-item lists: the zero-weighted side's document must not
// surface at all, not merely rank last.
func TestFuser_ZeroWeightedSideExcluded(t *testing.T) {
	f := NewFuser(60, 0)
	results := f.Fuse(hits("lexdoc"), hits("vecdoc"), 10)
	assert.Equal(t, []string{"lexdoc"}, idsOf(results))

	f = NewFuser(60, 1)
	results = f.Fuse(hits("lexdoc"), hits("vecdoc"), 10)
	assert.Equal(t, []string{"vecdoc"}, idsOf(results))
}

func TestFuser_SingleSourcePassthrough(t *testing.T) {
	f := NewFuser(60, 0.5)

	results := f.Fuse(hits("a", "b"), nil, 10)
	assert.Equal(t, []string{"a", "b"}, idsOf(results))

	results = f.Fuse(nil, hits("x", "y"), 10)
	assert.Equal(t, []string{"x", "y"}, idsOf(results))
}

func TestFuser_EmptyInputs(t *testing.T) {
	f := NewFuser(60, 0.5)
	assert.Empty(t, f.Fuse(nil, nil, 10))
}

func TestFuser_TiesBreakByID(t *testing.T) {
	f := NewFuser(60, 0.5)

	// Same rank in opposite sources: identical scores at alpha 0.5.
	results := f.Fuse(hits("bbb"), hits("aaa"), 10)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].RRFScore, results[1].RRFScore, 1e-12)
	assert.Equal(t, "aaa", results[0].ID)
	assert.Equal(t, "bbb", results[1].ID)
}

func TestFuser_TopKLimit(t *testing.T) {
	f := NewFuser(60, 0.5)

	results := f.Fuse(hits("a", "b", "c", "d"), nil, 2)
	assert.Len(t, results, 2)
}

func TestFuser_KnownScores(t *testing.T) {
	f := NewFuser(60, 0.5)

	results := f.Fuse(hits("a"), hits("a"), 1)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5/61+0.5/61, results[0].RRFScore, 1e-12)
}

func TestFuser_PreservesLexicalPayload(t *testing.T) {
	f := NewFuser(60, 0.5)

	results := f.Fuse(hits("a"), nil, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "content-a", results[0].Content)
}

func TestNewFuser_ClampsParameters(t *testing.T) {
	f := NewFuser(0, 1.5)
	assert.Equal(t, DefaultRRFConstant, f.K)
	assert.Equal(t, 1.0, f.Alpha)

	f = NewFuser(-1, -0.5)
	assert.Equal(t, 0.0, f.Alpha)
}
