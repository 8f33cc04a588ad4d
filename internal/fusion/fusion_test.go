package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PLeVasseur/iso26262-retrieval/internal/lexical"
	"github.com/PLeVasseur/iso26262-retrieval/internal/semantic"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

func TestFuse_WorkedExample(t *testing.T) {
	// lexical: [A(r1), B(r2)], semantic: [B(r1), C(r2)], rrf_k=60
	// expected: A = 1/61, B = 1/61 + 1/62, C = 1/62; order B, A, C.
	lex := []lexical.Candidate{
		{RetrievedFields: store.RetrievedFields{ChunkID: "A"}, LexicalRank: 1},
		{RetrievedFields: store.RetrievedFields{ChunkID: "B"}, LexicalRank: 2},
	}
	sem := []semantic.Candidate{
		{RetrievedFields: store.RetrievedFields{ChunkID: "B"}, SemanticRank: 1},
		{RetrievedFields: store.RetrievedFields{ChunkID: "C"}, SemanticRank: 2},
	}

	result := Fuse(lex, sem, 60)
	require.Len(t, result, 3)

	assert.Equal(t, "B", result[0].ChunkID)
	assert.InDelta(t, 1.0/61+1.0/62, result[0].Score, 1e-9)
	assert.Equal(t, MatchHybridRRF, result[0].MatchKind)

	assert.Equal(t, "A", result[1].ChunkID)
	assert.InDelta(t, 1.0/61, result[1].Score, 1e-9)
	assert.Equal(t, MatchLexicalRRF, result[1].MatchKind)

	assert.Equal(t, "C", result[2].ChunkID)
	assert.InDelta(t, 1.0/62, result[2].Score, 1e-9)
	assert.Equal(t, MatchSemanticRRF, result[2].MatchKind)
}

func TestFuse_TieBreaksByChunkIDAscending(t *testing.T) {
	lex := []lexical.Candidate{
		{RetrievedFields: store.RetrievedFields{ChunkID: "zzz"}, LexicalRank: 1},
		{RetrievedFields: store.RetrievedFields{ChunkID: "aaa"}, LexicalRank: 1},
	}
	result := Fuse(lex, nil, 60)
	require.Len(t, result, 2)
	assert.Equal(t, "aaa", result[0].ChunkID)
	assert.Equal(t, "zzz", result[1].ChunkID)
}

func TestFuse_NegativeRRFKClampsToOne(t *testing.T) {
	lex := []lexical.Candidate{
		{RetrievedFields: store.RetrievedFields{ChunkID: "A"}, LexicalRank: 1},
	}
	result := Fuse(lex, nil, -5)
	require.Len(t, result, 1)
	assert.InDelta(t, 1.0/2, result[0].Score, 1e-9)
}

func TestFuse_EmptyInputsReturnEmpty(t *testing.T) {
	result := Fuse(nil, nil, 60)
	assert.Empty(t, result)
}

func TestIsExactIntentQuery_TableReference(t *testing.T) {
	assert.True(t, IsExactIntentQuery("table 3"))
	assert.False(t, IsExactIntentQuery("what is ASIL decomposition"))
}
