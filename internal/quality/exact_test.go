package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	matches map[string][]string // "docID|ref" -> chunk ids
}

func (f *fakeResolver) ResolveChunksByRef(ctx context.Context, docID, ref string) ([]string, error) {
	return f.matches[docID+"|"+ref], nil
}

func TestBuildExactIntentProbeQueries_DedupsAndFiltersAmbiguous(t *testing.T) {
	resolver := &fakeResolver{matches: map[string][]string{
		"ISO26262-6-2018|8.4.5": {"c1"},
		"ISO26262-6-2018|8.4.6": {"c2", "c3"}, // ambiguous, excluded
	}}
	gold := []GoldReference{
		{ID: "G1", DocID: "ISO26262-6-2018", Reference: "8.4.5"},
		{ID: "G2", DocID: "ISO26262-6-2018", Reference: "8.4.5"}, // duplicate pair
		{ID: "G3", DocID: "ISO26262-6-2018", Reference: "8.4.6"},
	}

	queries, err := BuildExactIntentProbeQueries(context.Background(), resolver, gold)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "exact-probe-001", queries[0].QueryID)
	assert.Equal(t, "8.4.5", queries[0].QueryText)
	assert.Equal(t, IntentExactRefProbe, queries[0].Intent)
	assert.True(t, queries[0].MustHitTop1)
	assert.Equal(t, []string{"c1"}, queries[0].ExpectedChunkIDs)
	require.NotNil(t, queries[0].PartFilter)
	assert.Equal(t, 6, *queries[0].PartFilter)
}

func TestBuildExactIntentProbeQueries_EmptyGoldReturnsEmpty(t *testing.T) {
	queries, err := BuildExactIntentProbeQueries(context.Background(), &fakeResolver{}, nil)
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestBuildExactIntentProbeQueries_SkipsBlankRef(t *testing.T) {
	resolver := &fakeResolver{}
	gold := []GoldReference{{ID: "G1", DocID: "ISO26262-6-2018", Reference: "  "}}
	queries, err := BuildExactIntentProbeQueries(context.Background(), resolver, gold)
	require.NoError(t, err)
	assert.Empty(t, queries)
}
