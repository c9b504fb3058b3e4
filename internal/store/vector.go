package store

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/coder/hnsw"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// VectorField is one named embedding field: parallel id and vector slices.
// Vectors must be L2-normalized so that dot product equals cosine
// similarity.
type VectorField struct {
	Name    string
	IDs     []string
	Vectors [][]float32
}

// alignedField is a sparse field with its local-to-master position map
// built at load time, so scatter-max stays O(field size) per query.
type alignedField struct {
	name     string
	ids      []string
	vectors  [][]float32
	toMaster []int
}

// MultiVectorIndex scores documents by the maximum cosine similarity
// across a full-coverage master field and zero or more sparse fields.
// Read-only after construction; safe for concurrent queries.
type MultiVectorIndex struct {
	masterName string
	masterIDs  []string
	idToPos    map[string]int
	master     [][]float32
	sparse     []alignedField
	dims       int

	// graph accelerates TopN when there are no sparse fields; nil unless
	// EnableANN was called.
	graph *hnsw.Graph[uint64]
}

// NewMultiVectorIndex builds an index from a master field and optional
// sparse fields. Sparse entries whose id is missing from the master
// coverage are skipped with a debug log, never an error.
func NewMultiVectorIndex(master VectorField, sparse ...VectorField) (*MultiVectorIndex, error) {
	if len(master.IDs) != len(master.Vectors) {
		return nil, oserrors.ValidationError(
			fmt.Sprintf("field %s: %d ids but %d vectors", master.Name, len(master.IDs), len(master.Vectors)), nil)
	}

	dims := 0
	if len(master.Vectors) > 0 {
		dims = len(master.Vectors[0])
	}

	mv := &MultiVectorIndex{
		masterName: master.Name,
		masterIDs:  master.IDs,
		master:     master.Vectors,
		idToPos:    make(map[string]int, len(master.IDs)),
		dims:       dims,
	}
	for i, id := range master.IDs {
		if len(master.Vectors[i]) != dims {
			return nil, dimensionError(master.Name, dims, len(master.Vectors[i]))
		}
		mv.idToPos[id] = i
	}

	for _, field := range sparse {
		if len(field.IDs) != len(field.Vectors) {
			return nil, oserrors.ValidationError(
				fmt.Sprintf("field %s: %d ids but %d vectors", field.Name, len(field.IDs), len(field.Vectors)), nil)
		}
		aligned := alignedField{name: field.Name}
		for i, id := range field.IDs {
			pos, ok := mv.idToPos[id]
			if !ok {
				slog.Debug("vector_field_id_skipped",
					slog.String("field", field.Name),
					slog.String("id", id))
				continue
			}
			if len(field.Vectors[i]) != dims {
				return nil, dimensionError(field.Name, dims, len(field.Vectors[i]))
			}
			aligned.ids = append(aligned.ids, id)
			aligned.vectors = append(aligned.vectors, field.Vectors[i])
			aligned.toMaster = append(aligned.toMaster, pos)
		}
		mv.sparse = append(mv.sparse, aligned)
	}

	return mv, nil
}

func dimensionError(field string, want, got int) error {
	return oserrors.New(oserrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("field %s: expected %d dimensions, got %d", field, want, got), nil)
}

// EnableANN builds an HNSW graph over the master field. The graph is used
// by TopN only when the index has no sparse fields, where approximate
// nearest-neighbor ordering matches exact max-pooled ordering.
func (mv *MultiVectorIndex) EnableANN() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25

	for i, vec := range mv.master {
		graph.Add(hnsw.MakeNode(uint64(i), vec))
	}
	mv.graph = graph
}

// Len returns the master coverage size.
func (mv *MultiVectorIndex) Len() int { return len(mv.masterIDs) }

// Dimensions returns the embedding width.
func (mv *MultiVectorIndex) Dimensions() int { return mv.dims }

// Contains reports whether id is covered by the master field.
func (mv *MultiVectorIndex) Contains(id string) bool {
	_, ok := mv.idToPos[id]
	return ok
}

// pooledScores computes the max-pooled similarity of every document:
// master dot products, then each sparse field scattered into a
// zero-initialized full-length array and combined with element-wise max.
// A document missing from a sparse field implicitly scores 0 for that
// field and never loses a higher score from another field.
func (mv *MultiVectorIndex) pooledScores(query []float32) []float64 {
	scores := make([]float64, len(mv.master))
	for i, vec := range mv.master {
		scores[i] = dot(query, vec)
	}

	if len(mv.sparse) == 0 {
		return scores
	}

	full := make([]float64, len(mv.master))
	for _, field := range mv.sparse {
		for i := range full {
			full[i] = 0
		}
		for i, vec := range field.vectors {
			full[field.toMaster[i]] = dot(query, vec)
		}
		for i := range scores {
			if full[i] > scores[i] {
				scores[i] = full[i]
			}
		}
	}
	return scores
}

// TopN returns the n highest max-pooled similarities, score descending
// with id ascending on ties.
func (mv *MultiVectorIndex) TopN(query []float32, n int) []ScoredDoc {
	if len(mv.masterIDs) == 0 || n <= 0 {
		return nil
	}

	if mv.graph != nil && len(mv.sparse) == 0 {
		return mv.topNApprox(query, n)
	}

	scores := mv.pooledScores(query)
	docs := make([]ScoredDoc, len(scores))
	for i, s := range scores {
		docs[i] = ScoredDoc{ID: mv.masterIDs[i], Score: s}
	}
	sortScoredDocs(docs)
	if len(docs) > n {
		docs = docs[:n]
	}
	return docs
}

// topNApprox answers TopN from the HNSW graph.
func (mv *MultiVectorIndex) topNApprox(query []float32, n int) []ScoredDoc {
	nodes := mv.graph.Search(query, n)
	docs := make([]ScoredDoc, 0, len(nodes))
	for _, node := range nodes {
		docs = append(docs, ScoredDoc{
			ID:    mv.masterIDs[node.Key],
			Score: dot(query, node.Value),
		})
	}
	sortScoredDocs(docs)
	return docs
}

// ScoreSubset returns the max-pooled similarity for each requested id.
// Ids outside the master coverage score 0.0.
func (mv *MultiVectorIndex) ScoreSubset(query []float32, ids []string) map[string]float64 {
	result := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return result
	}

	scores := mv.pooledScores(query)
	for _, id := range ids {
		pos, ok := mv.idToPos[id]
		if !ok {
			result[id] = 0.0
			continue
		}
		result[id] = scores[pos]
	}
	return result
}

func sortScoredDocs(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// NormalizeVector returns an L2-normalized copy of v. A zero vector is
// returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// persistedVectorIndex is the gob representation. Alignment maps are
// rebuilt on load.
type persistedVectorIndex struct {
	MasterName string
	MasterIDs  []string
	Master     [][]float32
	Sparse     []persistedField
}

type persistedField struct {
	Name    string
	IDs     []string
	Vectors [][]float32
}

// Save persists the index fields with gob.
func (mv *MultiVectorIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	defer f.Close()

	p := persistedVectorIndex{
		MasterName: mv.masterName,
		MasterIDs:  mv.masterIDs,
		Master:     mv.master,
	}
	for _, field := range mv.sparse {
		p.Sparse = append(p.Sparse, persistedField{
			Name:    field.name,
			IDs:     field.ids,
			Vectors: field.vectors,
		})
	}

	if err := gob.NewEncoder(f).Encode(p); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	return f.Sync()
}

// LoadMultiVectorIndex reads a gob-persisted index and rebuilds the
// alignment maps.
func LoadMultiVectorIndex(path string) (*MultiVectorIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeFileNotFound,
			"vector index not found: "+path, err).
			WithSuggestion("run `opinionsearch index` to build indexes")
	}
	defer f.Close()

	var p persistedVectorIndex
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, oserrors.New(oserrors.ErrCodeCorruptIndex,
			"vector index corrupt: "+path, err)
	}

	sparse := make([]VectorField, 0, len(p.Sparse))
	for _, field := range p.Sparse {
		sparse = append(sparse, VectorField{Name: field.Name, IDs: field.IDs, Vectors: field.Vectors})
	}
	return NewMultiVectorIndex(
		VectorField{Name: p.MasterName, IDs: p.MasterIDs, Vectors: p.Master},
		sparse...)
}
