package vectordb

import (
	"sort"

	"github.com/kailas-cloud/kbase/internal/domain/document"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// FuseRRF merges vector and keyword rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// Documents are keyed by identity; the fused score becomes the reranking
// score. Ties keep first-seen order, vector results first.
func FuseRRF(vector, keyword []document.Document, limit int) []document.Document {
	type scored struct {
		doc   document.Document
		score float64
	}

	merged := make(map[string]*scored, len(vector)+len(keyword))
	order := make([]*scored, 0, len(vector)+len(keyword))

	add := func(list []document.Document) {
		for rank, d := range list {
			s := 1.0 / float64(rrfK+rank+1)
			key := d.Identity()
			if existing, ok := merged[key]; ok {
				existing.score += s
				continue
			}
			entry := &scored{doc: d, score: s}
			merged[key] = entry
			order = append(order, entry)
		}
	}
	add(vector)
	add(keyword)

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].score > order[j].score
	})

	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}

	results := make([]document.Document, len(order))
	for i, s := range order {
		results[i] = s.doc.WithScore(s.score)
	}
	return results
}
