// Package fusion merges lexical and semantic candidate lists into one
// ranked list via Reciprocal Rank Fusion, and classifies query intent so a
// caller can decide whether to short-circuit to lexical-only retrieval.
//
// Fusion follows RRF's standard scoring rule: a source that never ranked
// a candidate contributes nothing to its score (no missing-rank fallback,
// see DESIGN.md). Intent classification delegates directly to internal/textutil's
// is_exact_intent_query predicate.
package fusion

import (
	"sort"

	"github.com/PLeVasseur/iso26262-retrieval/internal/lexical"
	"github.com/PLeVasseur/iso26262-retrieval/internal/semantic"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
	"github.com/PLeVasseur/iso26262-retrieval/internal/textutil"
)

// DefaultRRFConstant is the default rrf_k smoothing parameter.
const DefaultRRFConstant = 60

// MatchKind records which retrieval arm(s) contributed to a merged candidate.
type MatchKind string

const (
	MatchLexicalRRF  MatchKind = "lexical_rrf"
	MatchSemanticRRF MatchKind = "semantic_rrf"
	MatchHybridRRF   MatchKind = "hybrid_rrf"
)

// RankTrace preserves each arm's raw rank/score for a merged candidate, for
// callers that want to show their work.
type RankTrace struct {
	LexicalRank   int // 0 when absent
	SemanticRank  int // 0 when absent
	LexicalScore  float64
	SemanticScore float64
	RRFScore      float64
}

// Candidate is one fused, ranked result.
type Candidate struct {
	store.RetrievedFields
	Score      float64
	SourceTags []string
	MatchKind  MatchKind
	RankTrace  RankTrace
}

// IsExactIntentQuery reports whether query is classified as an exact-intent
// lookup (table/annex/clause-numbered reference).
func IsExactIntentQuery(query string) bool {
	return textutil.IsExactIntentQuery(query)
}

// rrfBase returns max(rrfK, 1).
func rrfBase(rrfK int) int {
	if rrfK < 1 {
		return 1
	}
	return rrfK
}

// Fuse merges lexicalCandidates and semanticCandidates via RRF with
// smoothing constant rrfK, returning candidates sorted by descending
// score with ties broken by ascending chunk_id.
func Fuse(lexicalCandidates []lexical.Candidate, semanticCandidates []semantic.Candidate, rrfK int) []Candidate {
	base := rrfBase(rrfK)
	merged := make(map[string]*Candidate)

	getOrCreate := func(chunkID string, fields store.RetrievedFields) *Candidate {
		if c, ok := merged[chunkID]; ok {
			return c
		}
		c := &Candidate{RetrievedFields: fields, SourceTags: nil}
		merged[chunkID] = c
		return c
	}

	for i, cand := range lexicalCandidates {
		rank := cand.LexicalRank
		if rank <= 0 {
			rank = i + 1
		}
		c := getOrCreate(cand.ChunkID, cand.RetrievedFields)
		c.Score += 1.0 / float64(base+rank)
		c.RankTrace.LexicalRank = rank
		if c.RankTrace.LexicalScore == 0 {
			c.RankTrace.LexicalScore = cand.LexicalScore
		}
		c.SourceTags = appendUnique(c.SourceTags, "lexical")
	}

	for i, cand := range semanticCandidates {
		rank := cand.SemanticRank
		if rank <= 0 {
			rank = i + 1
		}
		c := getOrCreate(cand.ChunkID, cand.RetrievedFields)
		c.Score += 1.0 / float64(base+rank)
		c.RankTrace.SemanticRank = rank
		if c.RankTrace.SemanticScore == 0 {
			c.RankTrace.SemanticScore = cand.SemanticScore
		}
		c.SourceTags = appendUnique(c.SourceTags, "semantic")
	}

	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		c.RankTrace.RRFScore = c.Score
		c.MatchKind = classifyMatchKind(c.RankTrace)
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	return out
}

// classifyMatchKind sets hybrid when both ranks are present, the
// single-source variant when exactly one is present, and hybrid as a
// defensive default when neither is set.
func classifyMatchKind(trace RankTrace) MatchKind {
	hasLexical := trace.LexicalRank > 0
	hasSemantic := trace.SemanticRank > 0
	switch {
	case hasLexical && hasSemantic:
		return MatchHybridRRF
	case hasLexical:
		return MatchLexicalRRF
	case hasSemantic:
		return MatchSemanticRRF
	default:
		return MatchHybridRRF
	}
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
