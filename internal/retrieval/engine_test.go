package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PLeVasseur/iso26262-retrieval/internal/hydrate"
	"github.com/PLeVasseur/iso26262-retrieval/internal/lexical"
	"github.com/PLeVasseur/iso26262-retrieval/internal/semantic"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

type fakeStore struct{}

func (fakeStore) FetchDescendants(ctx context.Context, originNodeID string) ([]store.DescendantNode, error) {
	return nil, nil
}

func (fakeStore) ResolveParentRef(ctx context.Context, originNodeID string) (string, bool, error) {
	return "", false, nil
}

type fakeEmbedder struct{ dims int }

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	v[0] = 1
	return v, nil
}

func (f fakeEmbedder) Dimensions() int { return f.dims }

func sampleChunkRows() []store.ChunkRow {
	return []store.ChunkRow{
		{ChunkID: "c1", DocID: "ISO26262-6-2018", ChunkType: "clause", Ref: "8.4.5", Heading: "ASIL decomposition", Text: "ASIL decomposition requirements for source code."},
		{ChunkID: "c2", DocID: "ISO26262-6-2018", ChunkType: "clause", Ref: "8.4.6", Heading: "Verification", Text: "Verification of decomposed elements."},
	}
}

func buildEngine(t *testing.T) *Engine {
	t.Helper()
	rows := sampleChunkRows()
	lex, err := lexical.NewRetriever(context.Background(), rows)
	require.NoError(t, err)

	fields := make(map[string]store.RetrievedFields, len(rows))
	var embRows []store.EmbeddingRow
	for _, r := range rows {
		fields[r.ChunkID] = store.RetrievedFields{ChunkID: r.ChunkID, DocID: r.DocID, ChunkType: r.ChunkType, Ref: r.Ref, Heading: r.Heading, Snippet: r.Text}
		embRows = append(embRows, store.EmbeddingRow{ChunkID: r.ChunkID, EmbeddingDim: 4, Embedding: []float32{1, 0, 0, 0}})
	}
	sem, err := semantic.NewRetriever("model-1", 4, embRows, fields)
	require.NoError(t, err)

	return New(lex, sem, fakeEmbedder{dims: 4}, fakeStore{})
}

func TestEngine_Query_ReturnsHydratedResults(t *testing.T) {
	e := buildEngine(t)
	results, err := e.Query(context.Background(), "ASIL decomposition", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].Rank)
}

func TestEngine_Query_ExactIntentSkipsSemanticWhenLexicalHits(t *testing.T) {
	e := buildEngine(t)
	results, err := e.Query(context.Background(), "8.4.5", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].RankTrace.SemanticRank)
}

func TestEngine_Query_EmptyFilterReturnsMatches(t *testing.T) {
	e := buildEngine(t)
	results, err := e.Query(context.Background(), "verification", Options{Limit: 5, WithAncestors: true})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}
