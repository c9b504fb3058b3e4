package search

import (
	"math"
	"sort"

	"github.com/fppclabs/opinionsearch/internal/store"
)

// minMaxNormalize rescales a pool to [0, 1] using its own min and max.
// All-equal pools map to 1.0 everywhere; an empty pool is returned
// unchanged.
func minMaxNormalize(pool map[string]float64) map[string]float64 {
	if len(pool) == 0 {
		return pool
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range pool {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make(map[string]float64, len(pool))
	rng := hi - lo
	if rng == 0 {
		for k := range pool {
			out[k] = 1.0
		}
		return out
	}
	for k, v := range pool {
		out[k] = (v - lo) / rng
	}
	return out
}

// sortByScore orders a pool score descending, id ascending on ties.
func sortByScore(pool map[string]float64) []store.ScoredDoc {
	docs := make([]store.ScoredDoc, 0, len(pool))
	for id, score := range pool {
		docs = append(docs, store.ScoredDoc{ID: id, Score: score})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

// rankIDs returns the pool's ids best first, truncated to topK.
func rankIDs(pool map[string]float64, topK int) []string {
	docs := sortByScore(pool)
	if topK >= 0 && len(docs) > topK {
		docs = docs[:topK]
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids
}

// topNPositive extracts the n best strictly-positive scores as a pool.
func topNPositive(scores map[string]float64, n int) map[string]float64 {
	docs := sortByScore(scores)
	pool := make(map[string]float64)
	for _, doc := range docs {
		if len(pool) >= n {
			break
		}
		if doc.Score > 0 {
			pool[doc.ID] = doc.Score
		}
	}
	return pool
}

// breakerRatio returns top1/top2 of a pool's scores, or +Inf when the
// pool has fewer than two members or the second score is not positive.
func breakerRatio(pool map[string]float64) float64 {
	vals := make([]float64, 0, len(pool))
	for _, v := range pool {
		vals = append(vals, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))

	if len(vals) < 2 || vals[1] <= 0 {
		return math.Inf(1)
	}
	return vals[0] / vals[1]
}

// maxValue returns the largest value in a pool, or 0 for an empty pool.
func maxValue(pool map[string]float64) float64 {
	max := 0.0
	first := true
	for _, v := range pool {
		if first || v > max {
			max = v
			first = false
		}
	}
	return max
}
