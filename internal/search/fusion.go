// Package search fuses lexical and vector result lists with Reciprocal
// Rank Fusion.
package search

import (
	"sort"

	"github.com/fathomdev/fathom/internal/index"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains.
const DefaultRRFConstant = 60

// FusedResult is a single result after RRF fusion. Source scores and
// ranks are preserved for callers that want to explain a ranking.
type FusedResult struct {
	ID       string
	Content  string
	Metadata index.Result
	// RRFScore is the combined score.
	RRFScore float64
	// LexScore and LexRank describe the lexical contribution. Rank is
	// 1-indexed, 0 when the document was absent from that list.
	LexScore float64
	LexRank  int
	VecScore float64
	VecRank  int
}

// Fuser combines ranked lists with weighted RRF.
//
//	score(d) = (1-alpha)/(k + lexRank) + alpha/(k + vecRank)
//
// Alpha is the vector weight in [0,1]: 0 ranks purely lexically, 1
// purely by vector, and absent sources contribute nothing. Ranks are
// 1-indexed.
type Fuser struct {
	K     int
	Alpha float64
}

// NewFuser creates a fuser. k defaults to 60 when non-positive; alpha is
// clamped to [0,1].
func NewFuser(k int, alpha float64) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Fuser{K: k, Alpha: alpha}
}

// Fuse merges the two ranked lists and returns up to topK results by
// descending RRF score, with ID order breaking exact ties. The lexical
// list carries content and metadata; vector-only hits keep just their
// ID and the caller resolves the payload from the store.
func (f *Fuser) Fuse(lexical, vector []index.Result, topK int) []FusedResult {
	if len(lexical) == 0 && len(vector) == 0 {
		return nil
	}

	fused := make(map[string]*FusedResult, len(lexical)+len(vector))

	get := func(id string) *FusedResult {
		if r, ok := fused[id]; ok {
			return r
		}
		r := &FusedResult{ID: id}
		fused[id] = r
		return r
	}

	for rank, hit := range lexical {
		r := get(hit.ID)
		r.Content = hit.Content
		r.Metadata = hit
		r.LexScore = hit.Score
		r.LexRank = rank + 1
		r.RRFScore += (1 - f.Alpha) / float64(f.K+rank+1)
	}

	for rank, hit := range vector {
		r := get(hit.ID)
		r.VecScore = hit.Score
		r.VecRank = rank + 1
		r.RRFScore += f.Alpha / float64(f.K+rank+1)
	}

	results := make([]FusedResult, 0, len(fused))
	for _, r := range fused {
		// A zero score means the document only appeared on a side whose
		// weight is zero; it must not surface in the blend.
		if r.RRFScore == 0 {
			continue
		}
		results = append(results, *r)
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].RRFScore != results[b].RRFScore {
			return results[a].RRFScore > results[b].RRFScore
		}
		return results[a].ID < results[b].ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
