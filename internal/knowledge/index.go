package knowledge

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

type entry struct {
	doc  domain.Document
	vec  []float64
	norm float64
}

// Index is an in-memory vector index ranked by cosine similarity.
type Index struct {
	entries []entry
}

// Add stores doc under vec. Zero vectors are kept but never match.
func (ix *Index) Add(doc domain.Document, vec []float32) {
	v := toFloat64(vec)
	ix.entries = append(ix.entries, entry{doc: doc, vec: v, norm: floats.Norm(v, 2)})
}

// Len returns the number of stored documents.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Search returns the k most similar documents, best first, with Score set
// to the cosine similarity.
func (ix *Index) Search(query []float32, k int) []domain.Document {
	if k <= 0 || len(ix.entries) == 0 {
		return nil
	}
	q := toFloat64(query)
	qNorm := floats.Norm(q, 2)
	if qNorm == 0 {
		return nil
	}

	scored := make([]domain.Document, 0, len(ix.entries))
	for _, e := range ix.entries {
		if e.norm == 0 || len(e.vec) != len(q) {
			continue
		}
		doc := e.doc
		doc.Score = floats.Dot(q, e.vec) / (qNorm * e.norm)
		scored = append(scored, doc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
