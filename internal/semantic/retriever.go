// Package semantic implements the vector-similarity retriever: given query
// text embedded by the active model, it performs cosine-similarity search
// over chunk embeddings with optional part/chunk_type post-filters.
//
// The graph construction, ID-mapping, and in-place vector normalization
// follow an HNSW-backed vector store design; the generic VectorStore
// interface is replaced with a retrieval-shaped Candidate that carries
// chunk descriptive fields and rank/score.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/coder/hnsw"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

// Candidate is one semantic retrieval result.
type Candidate struct {
	store.RetrievedFields
	SemanticScore float64 // cosine similarity in [-1, 1], higher is better
	SemanticRank  int     // 1-based
}

// Filter narrows candidates by document part and/or chunk type.
type Filter struct {
	Parts      map[int]struct{} // empty/nil: no part restriction
	ChunkTypes store.ChunkTypeFilter
}

func (f Filter) allows(parts int, ok bool, chunkType string) bool {
	if len(f.Parts) > 0 {
		if !ok {
			return false
		}
		if _, present := f.Parts[parts]; !present {
			return false
		}
	}
	if !f.ChunkTypes.Matches(chunkType) {
		return false
	}
	return true
}

// Retriever holds an HNSW graph over one embedding model's vectors plus the
// chunk metadata needed to answer filtered queries.
type Retriever struct {
	modelID    string
	dimensions int
	graph      *hnsw.Graph[uint64]

	idMap  map[string]uint64 // chunk_id -> internal key
	keyMap map[uint64]string // internal key -> chunk_id

	fields map[string]store.RetrievedFields // chunk_id -> descriptive fields
}

// Embedder embeds query text into the same vector space as the stored
// chunk embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewRetriever builds an in-memory HNSW index over rows, matching them by
// chunk_id to the descriptive fields in chunkFields.
func NewRetriever(modelID string, dimensions int, rows []store.EmbeddingRow, chunkFields map[string]store.RetrievedFields) (*Retriever, error) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	r := &Retriever{
		modelID:    modelID,
		dimensions: dimensions,
		graph:      graph,
		idMap:      make(map[string]uint64, len(rows)),
		keyMap:     make(map[uint64]string, len(rows)),
		fields:     chunkFields,
	}

	var nextKey uint64
	for _, row := range rows {
		if row.EmbeddingDim != dimensions {
			continue
		}
		vec := make([]float32, len(row.Embedding))
		copy(vec, row.Embedding)
		normalizeInPlace(vec)

		key := nextKey
		nextKey++
		graph.Add(hnsw.MakeNode(key, vec))
		r.idMap[row.ChunkID] = key
		r.keyMap[key] = row.ChunkID
	}

	return r, nil
}

// Retrieve embeds query with embedder and returns up to k candidates sorted
// by descending cosine similarity, subject to filter.
func (r *Retriever) Retrieve(ctx context.Context, query string, embedder Embedder, k int, filter Filter) ([]Candidate, error) {
	if embedder.Dimensions() != r.dimensions {
		return nil, amerrors.New(amerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query embedder dimension %d does not match index dimension %d", embedder.Dimensions(), r.dimensions), nil)
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeBackendTimeout, "embed query for semantic retrieval", err)
	}
	if len(vec) != r.dimensions {
		return nil, amerrors.New(amerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedded query dimension %d does not match index dimension %d", len(vec), r.dimensions), nil)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	if r.graph.Len() == 0 {
		return nil, nil
	}

	// Over-fetch to survive post-filtering, then trim to k.
	fetch := k * 4
	if fetch < k+16 {
		fetch = k + 16
	}
	nodes := r.graph.Search(normalized, fetch)

	type scored struct {
		chunkID string
		score   float64
	}
	var hits []scored
	for _, node := range nodes {
		chunkID, ok := r.keyMap[node.Key]
		if !ok {
			continue
		}
		fields, ok := r.fields[chunkID]
		if !ok {
			continue
		}
		parts, partsOK := store.ParseDocID(fields.DocID)
		if !filter.allows(parts.Part, partsOK, fields.ChunkType) {
			continue
		}

		distance := r.graph.Distance(normalized, node.Value)
		hits = append(hits, scored{chunkID: chunkID, score: cosineSimilarityFromDistance(distance)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Candidate, 0, len(hits))
	for i, h := range hits {
		out = append(out, Candidate{
			RetrievedFields: r.fields[h.chunkID],
			SemanticScore:   h.score,
			SemanticRank:    i + 1,
		})
	}
	return out, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// cosineSimilarityFromDistance converts coder/hnsw's cosine distance
// (0 = identical, 2 = opposite, for normalized vectors: 1 - dot product)
// back to a raw cosine similarity in [-1, 1].
func cosineSimilarityFromDistance(distance float32) float64 {
	return 1.0 - float64(distance)
}
