package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

// ChunkResolver is the subset of *store.Store exact-probe synthesis needs.
type ChunkResolver interface {
	ResolveChunksByRef(ctx context.Context, docID, ref string) ([]string, error)
}

type docRefPair struct {
	docID string
	ref   string
}

// BuildExactIntentProbeQueries deduplicates (doc_id, ref) pairs across gold,
// keeps only those for which exactly one chunk resolves a case-insensitive
// ref match (a "high-confidence" pair), and emits one
// must_hit_top1=true SemanticEvalQuery per surviving pair.
func BuildExactIntentProbeQueries(ctx context.Context, resolver ChunkResolver, gold []GoldReference) ([]SemanticEvalQuery, error) {
	seen := make(map[docRefPair]struct{})
	var ordered []docRefPair
	for _, g := range gold {
		ref := strings.TrimSpace(g.Reference)
		if g.DocID == "" || ref == "" {
			continue
		}
		pair := docRefPair{docID: g.DocID, ref: ref}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		ordered = append(ordered, pair)
	}

	var queries []SemanticEvalQuery
	for _, pair := range ordered {
		chunkIDs, err := resolver.ResolveChunksByRef(ctx, pair.docID, pair.ref)
		if err != nil {
			return nil, err
		}
		if !isHighConfidenceExactProbe(chunkIDs) {
			continue
		}

		var partFilter *int
		if parts, ok := store.ParseDocID(pair.docID); ok {
			part := parts.Part
			partFilter = &part
		}

		queries = append(queries, SemanticEvalQuery{
			QueryID:          fmt.Sprintf("exact-probe-%03d", len(queries)+1),
			QueryText:        pair.ref,
			Intent:           IntentExactRefProbe,
			MustHitTop1:      true,
			PartFilter:       partFilter,
			ExpectedChunkIDs: []string{chunkIDs[0]},
		})
	}
	return queries, nil
}

// isHighConfidenceExactProbe reports whether exactly one chunk resolved.
func isHighConfidenceExactProbe(chunkIDs []string) bool {
	return len(chunkIDs) == 1
}
