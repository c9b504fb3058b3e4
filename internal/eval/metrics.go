// Package eval scores ranked opinion lists against graded relevance
// judgments and aggregates the standard IR metrics into a scorecard.
package eval

import (
	"math"
	"sort"
)

// Judgments maps an opinion id to its graded relevance: 2 directly
// answers the query, 1 is related, 0 (or absent) is irrelevant.
type Judgments map[string]int

// MRR returns the reciprocal rank of the first grade-2 result, or 0 when
// none appears. Grade-1 results do not count.
func MRR(results []string, judgments Judgments) float64 {
	for i, id := range results {
		if judgments[id] == 2 {
			return 1.0 / float64(i+1)
		}
	}
	return 0.0
}

// NDCG returns normalized DCG at k with log2 position discounting. The
// ideal ranking is built from every judged document sorted by grade, not
// just the documents the engine returned, so an engine that misses a
// judged opinion is penalized for it. Returns 0 when no judged document
// is relevant.
func NDCG(results []string, judgments Judgments, k int) float64 {
	actual := make([]int, 0, k)
	for _, id := range results {
		if len(actual) >= k {
			break
		}
		actual = append(actual, judgments[id])
	}

	ideal := make([]int, 0, len(judgments))
	for _, grade := range judgments {
		ideal = append(ideal, grade)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))

	idcg := dcg(ideal, k)
	if idcg == 0 {
		return 0.0
	}
	return dcg(actual, k) / idcg
}

func dcg(grades []int, k int) float64 {
	total := 0.0
	for i := 0; i < k && i < len(grades); i++ {
		total += float64(grades[i]) / math.Log2(float64(i+2))
	}
	return total
}

// PrecisionAt returns the fraction of the top k positions holding a
// relevant (grade >= 1) result. The divisor is always k, so an engine
// returning fewer than k results is penalized for the shortfall.
func PrecisionAt(results []string, judgments Judgments, k int) float64 {
	relevant := 0
	for i, id := range results {
		if i >= k {
			break
		}
		if judgments[id] >= 1 {
			relevant++
		}
	}
	return float64(relevant) / float64(k)
}

// RecallAt returns the fraction of all relevant (grade >= 1) judged
// opinions found in the top k results. Returns 0 when nothing judged is
// relevant.
func RecallAt(results []string, judgments Judgments, k int) float64 {
	total := 0
	for _, grade := range judgments {
		if grade >= 1 {
			total++
		}
	}
	if total == 0 {
		return 0.0
	}

	found := 0
	for i, id := range results {
		if i >= k {
			break
		}
		if judgments[id] >= 1 {
			found++
		}
	}
	return float64(found) / float64(total)
}
