package index

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fathomdev/fathom/internal/chunk"
)

// Lexical is an in-memory TF-IDF index scored by cosine similarity.
// Scores are in [0,1] and ties keep insertion order, so a given corpus
// and query always produce the same ranking.
//
// Adding or removing documents rebuilds the whole term statistics table.
// IDF values depend on every document, so there is no cheap partial
// update; rebuild cost is linear in corpus size and acceptable up to the
// corpus sizes this serves. Known limitation.
type Lexical struct {
	mu   sync.RWMutex
	docs []lexicalDoc
	byID map[string]int

	// Derived from docs on rebuild.
	idf     map[string]float64
	vectors []map[string]float64
}

type lexicalDoc struct {
	ID       string
	Content  string
	Metadata chunk.Metadata
}

// NewLexical creates an empty lexical index.
func NewLexical() *Lexical {
	return &Lexical{byID: make(map[string]int)}
}

// Add indexes chunks. Chunks whose ID is already present are skipped;
// identical content is identical for ranking purposes anyway.
func (l *Lexical) Add(chunks []chunk.Chunk) {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := false
	for _, ch := range chunks {
		if _, exists := l.byID[ch.ID]; exists {
			continue
		}
		l.byID[ch.ID] = len(l.docs)
		l.docs = append(l.docs, lexicalDoc{ID: ch.ID, Content: ch.Content, Metadata: ch.Metadata})
		added = true
	}
	if added {
		l.rebuild()
	}
}

// Remove drops documents by ID.
func (l *Lexical) Remove(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := l.docs[:0]
	for _, doc := range l.docs {
		if _, gone := drop[doc.ID]; !gone {
			kept = append(kept, doc)
		}
	}
	if len(kept) == len(l.docs) {
		return
	}
	l.docs = kept

	l.byID = make(map[string]int, len(l.docs))
	for i, doc := range l.docs {
		l.byID[doc.ID] = i
	}
	l.rebuild()
}

// rebuild recomputes document frequencies, IDF weights and normalized
// document vectors. Caller holds the write lock.
func (l *Lexical) rebuild() {
	termCounts := make([]map[string]int, len(l.docs))
	df := make(map[string]int)

	for i, doc := range l.docs {
		counts := make(map[string]int)
		for _, tok := range Tokenize(doc.Content) {
			counts[tok]++
		}
		termCounts[i] = counts
		for term := range counts {
			df[term]++
		}
	}

	n := float64(len(l.docs))
	l.idf = make(map[string]float64, len(df))
	for term, count := range df {
		l.idf[term] = math.Log(1 + n/float64(1+count))
	}

	l.vectors = make([]map[string]float64, len(l.docs))
	for i, counts := range termCounts {
		vec := make(map[string]float64, len(counts))
		var norm float64
		for term, count := range counts {
			w := float64(count) * l.idf[term]
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		l.vectors[i] = vec
	}
}

// Search returns the topK documents by cosine similarity to the query.
// Zero-score documents are omitted.
func (l *Lexical) Search(query string, topK int) []Result {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tokens := Tokenize(query)
	if len(tokens) == 0 || len(l.docs) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range tokens {
		counts[tok]++
	}
	queryVec := make(map[string]float64, len(counts))
	var norm float64
	for term, count := range counts {
		idf, known := l.idf[term]
		if !known {
			continue
		}
		w := float64(count) * idf
		queryVec[term] = w
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)

	var results []Result
	for i, doc := range l.docs {
		var dot float64
		for term, qw := range queryVec {
			dot += (qw / norm) * l.vectors[i][term]
		}
		if dot <= 0 {
			continue
		}
		results = append(results, Result{
			ID:       doc.ID,
			Content:  doc.Content,
			Score:    dot,
			Metadata: doc.Metadata,
		})
	}

	// Stable sort over insertion-ordered docs keeps ties deterministic.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Len returns the number of indexed documents.
func (l *Lexical) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}

// Contains reports whether the ID is indexed.
func (l *Lexical) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byID[id]
	return ok
}

// Save writes the corpus to path with a temp-file-plus-rename. Term
// statistics are derived, not persisted; Load rebuilds them.
func (l *Lexical) Save(path string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create lexical index file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(l.docs); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode lexical index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close lexical index file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load replaces the index contents from path. A missing file leaves the
// index empty and is not an error.
func (l *Lexical) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open lexical index file: %w", err)
	}
	defer file.Close()

	var docs []lexicalDoc
	if err := gob.NewDecoder(file).Decode(&docs); err != nil {
		return fmt.Errorf("decode lexical index: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs = docs
	l.byID = make(map[string]int, len(docs))
	for i, doc := range docs {
		l.byID[doc.ID] = i
	}
	l.rebuild()
	return nil
}
