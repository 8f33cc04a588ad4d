package embedpipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

type fakeStore struct {
	rows       []store.ChunkRow
	embeddings map[string]store.EmbeddingRow // chunkID -> row
	models     map[string]store.ModelDescriptor
}

func newFakeStore(rows []store.ChunkRow) *fakeStore {
	return &fakeStore{
		rows:       rows,
		embeddings: make(map[string]store.EmbeddingRow),
		models:     make(map[string]store.ModelDescriptor),
	}
}

func (f *fakeStore) LoadChunkRows(ctx context.Context) ([]store.ChunkRow, error) {
	return f.rows, nil
}

func (f *fakeStore) LoadExistingEmbedding(ctx context.Context, chunkID, modelID string) (store.ExistingEmbedding, bool, error) {
	row, ok := f.embeddings[chunkID]
	if !ok {
		return store.ExistingEmbedding{}, false, nil
	}
	return store.ExistingEmbedding{TextHash: row.TextHash, EmbeddingDim: row.EmbeddingDim}, true, nil
}

func (f *fakeStore) UpsertChunkEmbedding(ctx context.Context, row store.EmbeddingRow) error {
	f.embeddings[row.ChunkID] = row
	return nil
}

func (f *fakeStore) EnsureModelEntry(ctx context.Context, model store.ModelDescriptor) error {
	f.models[model.ModelID] = model
	return nil
}

func (f *fakeStore) CountStaleEmbeddings(ctx context.Context, modelID string, currentHashes map[string]string) (int, error) {
	stale := 0
	for chunkID, row := range f.embeddings {
		if current, ok := currentHashes[chunkID]; !ok || current != row.TextHash {
			stale++
		}
	}
	return stale, nil
}

type fakeEmbedder struct {
	dims int
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func sampleRows() []store.ChunkRow {
	return []store.ChunkRow{
		{ChunkID: "c1", ChunkType: "clause", Ref: "6.4.3", Heading: "ASIL", Text: "decomposition text"},
		{ChunkID: "c2", ChunkType: "figure", Text: "not embeddable by type"},
		{ChunkID: "c3", ChunkType: "table", TableMD: "| a | b |"},
	}
}

func TestRun_EmbedsEligibleChunksOnly(t *testing.T) {
	st := newFakeStore(sampleRows())
	embedder := &fakeEmbedder{dims: 4}

	result, err := Run(context.Background(), st, embedder, Config{
		Model: store.ModelDescriptor{ModelID: "m1", Dimensions: 4},
		Mode:  RefreshAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Eligible) // c1, c3; c2's chunk_type isn't supported
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, embedder.calls)
}

func TestRun_UnchangedWhenHashAndDimensionMatch(t *testing.T) {
	st := newFakeStore(sampleRows())
	embedder := &fakeEmbedder{dims: 4}

	_, err := Run(context.Background(), st, embedder, Config{
		Model: store.ModelDescriptor{ModelID: "m1", Dimensions: 4},
		Mode:  RefreshAuto,
	})
	require.NoError(t, err)

	result, err := Run(context.Background(), st, embedder, Config{
		Model: store.ModelDescriptor{ModelID: "m1", Dimensions: 4},
		Mode:  RefreshAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Unchanged)
	assert.Equal(t, 0, result.Embedded)
	assert.Equal(t, 0, result.Updated)
}

func TestRun_ForceModeRecomputesEverything(t *testing.T) {
	st := newFakeStore(sampleRows())
	embedder := &fakeEmbedder{dims: 4}

	_, err := Run(context.Background(), st, embedder, Config{
		Model: store.ModelDescriptor{ModelID: "m1", Dimensions: 4},
		Mode:  RefreshAuto,
	})
	require.NoError(t, err)

	result, err := Run(context.Background(), st, embedder, Config{
		Model: store.ModelDescriptor{ModelID: "m1", Dimensions: 4},
		Mode:  RefreshForce,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Unchanged)
}

func TestRun_ChunkTypeFilterNarrowsEligibility(t *testing.T) {
	st := newFakeStore(sampleRows())
	embedder := &fakeEmbedder{dims: 4}

	result, err := Run(context.Background(), st, embedder, Config{
		Model:           store.ModelDescriptor{ModelID: "m1", Dimensions: 4},
		Mode:            RefreshAuto,
		ChunkTypeFilter: store.NewChunkTypeFilter([]string{"clause"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 2, result.Skipped)
}
