package vectorstore

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

// Result is one retrieval hit. Score is the inner product of the normalized
// query against the normalized stored vector, i.e. cosine similarity.
type Result struct {
	ID    int64
	Score float64
}

// Index is an in-memory inner-product index over unit-normalized vectors.
// Refresh rebuilds it wholesale from a source; there is no incremental
// upsert. The built state is swapped in atomically, so concurrent queries
// never observe a half-populated index.
type Index struct {
	name     string
	source   contractx.VectorSource
	embedder contractx.Embedder

	mu      sync.RWMutex
	ids     []int64
	vectors [][]float64
}

func NewIndex(name string, source contractx.VectorSource, embedder contractx.Embedder) *Index {
	return &Index{
		name:     name,
		source:   source,
		embedder: embedder,
	}
}

// Refresh pulls every (id, vector_json) pair from the source, discards
// malformed or empty entries, normalizes the rest, and swaps the result in.
// A source yielding zero usable vectors leaves an empty index, not an error.
func (ix *Index) Refresh(ctx context.Context) error {
	rows, err := ix.source.IterVectors(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(rows))
	vectors := make([][]float64, 0, len(rows))
	for _, row := range rows {
		var vec []float64
		if err := json.Unmarshal([]byte(row.VectorJSON), &vec); err != nil {
			continue
		}
		if len(vec) == 0 {
			continue
		}
		ids = append(ids, row.ID)
		vectors = append(vectors, Normalize(vec))
	}

	ix.mu.Lock()
	ix.ids = ids
	ix.vectors = vectors
	ix.mu.Unlock()

	log.Debug().Str("index", ix.name).Int("vectors", len(ids)).Msg("vector index rebuilt")
	return nil
}

// Query returns up to k (id, score) pairs by descending cosine similarity.
// The query vector is normalized before scoring. An empty index returns nil.
// k larger than the index returns every entry. Equal scores keep source
// iteration order (stable sort).
func (ix *Index) Query(vector []float64, k int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.ids) == 0 || k <= 0 {
		return nil
	}

	q := Normalize(vector)
	results := make([]Result, len(ix.ids))
	for i, v := range ix.vectors {
		results[i] = Result{ID: ix.ids[i], Score: dot(v, q)}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// QueryText embeds the text and delegates to Query. Embedder errors
// propagate; there is no silent fallback.
func (ix *Index) QueryText(ctx context.Context, text string, k int) ([]Result, error) {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return ix.Query(vec, k), nil
}

// Normalize returns the L2-normalized copy of v. Zero vectors are returned
// unchanged. Normalizing an already-unit vector is idempotent.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return append([]float64(nil), v...)
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
