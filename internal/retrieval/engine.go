// Package retrieval wires the lexical (C4), semantic (C5), fusion (C6),
// pinpoint (C7), and hydration (C8) components into the single entry point
// a query-serving caller (cmd, or internal/quality's Runner) uses: Engine.Query.
//
// The flow is: embed the query once, fan out to both retrievers, fuse,
// then hydrate. A fixed lexical+semantic+RRF+pinpoint pipeline replaces
// any multi-query expansion/reranker stage, and an exact-intent query
// that the lexical retriever already answers skips the semantic
// retriever entirely.
package retrieval

import (
	"context"

	"github.com/PLeVasseur/iso26262-retrieval/internal/fusion"
	"github.com/PLeVasseur/iso26262-retrieval/internal/hydrate"
	"github.com/PLeVasseur/iso26262-retrieval/internal/lexical"
	"github.com/PLeVasseur/iso26262-retrieval/internal/semantic"
)

// DefaultRRFConstant is the RRF constant used when Options.RRFConstant is
// unset (0).
const DefaultRRFConstant = fusion.DefaultRRFConstant

// Options configures one Engine.Query call.
type Options struct {
	Limit            int
	RRFConstant      int // 0 uses DefaultRRFConstant
	Filter           Filter
	WithAncestors    bool
	WithDescendants  bool
	WithPinpoint     bool
	PinpointMaxUnits int
}

// Filter narrows both retrievers identically by document part and chunk
// type.
type Filter struct {
	Parts      map[int]struct{}
	ChunkTypes map[string]struct{}
}

func (f Filter) lexicalFilter() lexical.Filter {
	return lexical.Filter{Parts: f.Parts, ChunkTypes: f.chunkTypeFilter()}
}

func (f Filter) semanticFilter() semantic.Filter {
	return semantic.Filter{Parts: f.Parts, ChunkTypes: f.chunkTypeFilter()}
}

func (f Filter) chunkTypeFilter() map[string]struct{} {
	return f.ChunkTypes
}

// Engine answers queries by fusing a lexical and a semantic retriever and
// hydrating the fused candidates into full results.
type Engine struct {
	lexical  *lexical.Retriever
	semantic *semantic.Retriever
	embedder semantic.Embedder
	store    hydrate.Store
}

// New builds an Engine over an already-indexed lexical retriever, an
// already-indexed semantic retriever (nil when no embeddings are
// available), the embedder used to vectorize query text, and the store
// hydration reads ancestors/descendants from.
func New(lex *lexical.Retriever, sem *semantic.Retriever, embedder semantic.Embedder, st hydrate.Store) *Engine {
	return &Engine{lexical: lex, semantic: sem, embedder: embedder, store: st}
}

// Query runs query through the pipeline and returns up to opts.Limit
// hydrated results.
//
// Exact-intent short-circuit: when fusion.IsExactIntentQuery(query) is true
// and the lexical retriever returns at least one candidate, the semantic
// retriever is never invoked — an exact clause/annex/table reference is
// answered from the lexical index alone, and skipping semantic search for
// these probes keeps exact-intent retrieval both faster and immune to
// embedding-model drift.
func (e *Engine) Query(ctx context.Context, query string, opts Options) ([]hydrate.Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	rrfK := opts.RRFConstant
	if rrfK <= 0 {
		rrfK = DefaultRRFConstant
	}

	lexCandidates, err := e.lexical.Retrieve(ctx, query, limit, opts.Filter.lexicalFilter())
	if err != nil {
		return nil, err
	}

	var semCandidates []semantic.Candidate
	skipSemantic := fusion.IsExactIntentQuery(query) && len(lexCandidates) > 0
	if !skipSemantic && e.semantic != nil && e.embedder != nil {
		semCandidates, err = e.semantic.Retrieve(ctx, query, e.embedder, limit, opts.Filter.semanticFilter())
		if err != nil {
			return nil, err
		}
	}

	fused := fusion.Fuse(lexCandidates, semCandidates, rrfK)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	return hydrate.Hydrate(ctx, e.store, query, fused, hydrate.Options{
		WithAncestors:    opts.WithAncestors,
		WithDescendants:  opts.WithDescendants,
		WithPinpoint:     opts.WithPinpoint,
		PinpointMaxUnits: opts.PinpointMaxUnits,
	})
}
