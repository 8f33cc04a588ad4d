// Package hydrate assembles a fused candidate list into the final
// query-result shape a reader sees: rank/score/match metadata, an
// optional ancestor breadcrumb and descendant subtree, optional pinpoint
// sub-units, a resolved parent reference, a condensed snippet, and a
// rendered citation.
//
// Reworked into Go using internal/store for ancestor/descendant lookups,
// internal/pinpoint for sub-unit selection, and internal/citation for
// citation strings, with a simple "for i, candidate := range candidates"
// result-assembly loop.
package hydrate

import (
	"context"
	"strconv"
	"strings"

	"github.com/PLeVasseur/iso26262-retrieval/internal/citation"
	"github.com/PLeVasseur/iso26262-retrieval/internal/fusion"
	"github.com/PLeVasseur/iso26262-retrieval/internal/pinpoint"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
	"github.com/PLeVasseur/iso26262-retrieval/internal/textutil"
)

// Store is the subset of *store.Store hydration needs.
type Store interface {
	FetchDescendants(ctx context.Context, originNodeID string) ([]store.DescendantNode, error)
	ResolveParentRef(ctx context.Context, originNodeID string) (string, bool, error)
}

// descendantPreviewLimit is how many characters of a descendant's
// condensed text survive into the hydrated result's preview.
const descendantPreviewLimit = 180

// Options selects which optional expansions to compute.
type Options struct {
	WithAncestors    bool
	WithDescendants  bool
	WithPinpoint     bool
	PinpointMaxUnits int // 0 uses pinpoint.PinpointUnitLimit
}

// Descendant is one trimmed subtree node surfaced in a hydrated result.
type Descendant struct {
	NodeID       string
	ParentNodeID string
	NodeType     string
	Ref          string
	Heading      string
	OrderIndex   int
	PagePDFStart *int
	PagePDFEnd   *int
	TextPreview  string
}

// Result is one fully hydrated query result.
type Result struct {
	Rank       int
	Score      float64
	MatchKind  fusion.MatchKind
	SourceTags []string
	RankTrace  fusion.RankTrace

	store.RetrievedFields

	ParentRef    string
	Citation     string
	AncestorNodes []string // nil unless Options.WithAncestors

	Descendants []Descendant // nil unless Options.WithDescendants

	PinpointUnits        []pinpoint.ScoredUnit // nil unless Options.WithPinpoint
	PinpointFallbackUsed bool
}

// Hydrate assembles hydrated results for candidates, in rank order
// (candidates is assumed already sorted; rank = index+1).
func Hydrate(ctx context.Context, st Store, queryText string, candidates []fusion.Candidate, opts Options) ([]Result, error) {
	out := make([]Result, 0, len(candidates))

	for i, c := range candidates {
		family, part, year := docIDParts(c.DocID)

		res := Result{
			Rank:            i + 1,
			Score:           c.Score,
			MatchKind:       c.MatchKind,
			SourceTags:      c.SourceTags,
			RankTrace:       c.RankTrace,
			RetrievedFields: c.RetrievedFields,
			Citation: citation.RenderCitation(citation.Input{
				Family:          family,
				Part:            part,
				Year:            year,
				Reference:       c.Ref,
				AnchorType:      c.AnchorType,
				AnchorLabelNorm: c.AnchorLabelNorm,
				PagePDFStart:    c.PagePDFStart,
				PagePDFEnd:      c.PagePDFEnd,
			}),
		}

		if opts.WithAncestors && c.AncestorPath != "" {
			res.AncestorNodes = strings.Split(c.AncestorPath, " > ")
		}

		var descendantNodes []store.DescendantNode
		if opts.WithDescendants || opts.WithPinpoint {
			if c.OriginNodeID != "" {
				nodes, err := st.FetchDescendants(ctx, c.OriginNodeID)
				if err != nil {
					return nil, err
				}
				descendantNodes = nodes
			}
		}

		if opts.WithDescendants {
			res.Descendants = toHydratedDescendants(descendantNodes)
		}

		if opts.WithPinpoint {
			units := pinpoint.EnumerateUnits(descendantNodes)
			limit := opts.PinpointMaxUnits
			if limit <= 0 {
				limit = pinpoint.PinpointUnitLimit
			}
			result := pinpoint.Select(pinpoint.Query{
				QueryText:    queryText,
				ParentAnchor: c.AnchorType,
			}, units, c.Snippet)
			if len(result.Units) > limit {
				result.Units = result.Units[:limit]
			}
			res.PinpointUnits = result.Units
			res.PinpointFallbackUsed = result.FallbackUsed
		}

		parentRef, ok, err := st.ResolveParentRef(ctx, c.OriginNodeID)
		if err != nil {
			return nil, err
		}
		if ok {
			res.ParentRef = parentRef
		}

		res.Snippet = textutil.CondenseWhitespace(c.Snippet)

		out = append(out, res)
	}

	return out, nil
}

func toHydratedDescendants(nodes []store.DescendantNode) []Descendant {
	out := make([]Descendant, 0, len(nodes))
	for _, n := range nodes {
		preview := n.TextPreview
		if len(preview) > descendantPreviewLimit {
			preview = preview[:descendantPreviewLimit]
		}
		out = append(out, Descendant{
			NodeID:       n.NodeID,
			ParentNodeID: n.ParentNodeID,
			NodeType:     n.NodeType,
			Ref:          n.Ref,
			Heading:      n.Heading,
			OrderIndex:   n.OrderIndex,
			PagePDFStart: n.PagePDFStart,
			PagePDFEnd:   n.PagePDFEnd,
			TextPreview:  preview,
		})
	}
	return out
}

func docIDParts(docID string) (family, part, year string) {
	parts, ok := store.ParseDocID(docID)
	if !ok {
		return docID, "", ""
	}
	return parts.Family, strconv.Itoa(parts.Part), strconv.Itoa(parts.Year)
}
