// Package vector provides similarity helpers, a float32 codec, and a brute-force vector index.
package vector

import "sort"

// Hit is a single similarity search result.
type Hit struct {
	ID    string
	Score float64 // cosine similarity
}

// SortHits orders hits by descending score, breaking ties by ascending ID so results are deterministic.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// TopK sorts hits and truncates them to k. k <= 0 yields nil.
func TopK(hits []Hit, k int) []Hit {
	if k <= 0 {
		return nil
	}
	SortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
