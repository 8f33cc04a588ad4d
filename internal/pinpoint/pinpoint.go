// Package pinpoint selects the sub-chunk units (sentence windows, table
// rows, table cells) within a retrieved chunk's subtree that most likely
// answer a query, falling back to the whole parent chunk's text when
// nothing scores.
//
// Scoring primitives (tokenize_pinpoint_value, token_overlap_score,
// pinpoint_anchor_compatible, pinpoint_unit_priority,
// select_pinpoint_parent_chunk) are grounded directly on
// original_source/src/commands/validate/semantic_quality_pinpoint_scoring.rs.
// There is no query-side unit-enumeration source in original_source (only
// the validation-side scoring primitives survived distillation); subtree
// walking into sentence windows/table rows/table cells is built fresh
// against a fixed priority order, in a scoring-table style
// (internal/search/reranker.go's struct-based scorer with a priority
// lookup).
package pinpoint

import (
	"sort"
	"strings"

	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
	"github.com/PLeVasseur/iso26262-retrieval/internal/textutil"
)

// PinpointUnitLimit caps the number of units returned per query.
const PinpointUnitLimit = 5

// PinpointTableRowLimit caps how many table_row units are enumerated from
// one chunk's subtree.
const PinpointTableRowLimit = 64

// UnitType classifies a pinpoint sub-unit.
type UnitType string

const (
	UnitSentenceWindow UnitType = "sentence_window"
	UnitTableRow       UnitType = "table_row"
	UnitTableCell      UnitType = "table_cell"
	UnitOther          UnitType = "other"
)

// Unit is one candidate sub-chunk unit before scoring.
type Unit struct {
	UnitType UnitType
	Text     string
	Anchor   string // "" when absent
	Order    int    // stable enumeration order, 0-based
}

// ScoredUnit is a Unit plus its computed score.
type ScoredUnit struct {
	Unit
	Priority     int
	TokenOverlap float64
}

// Query bundles a pinpoint selection's inputs.
type Query struct {
	QueryText              string
	ParentAnchor           string
	ParentExpectedChunkIDs []string
}

// Result is the outcome of Select.
type Result struct {
	Units                        []ScoredUnit
	FallbackUsed                 bool
	CitationAnchorMismatchCount  int
}

// TokenizePinpointValue re-exports internal/textutil's tokenizer for
// callers that build units outside this package.
func TokenizePinpointValue(s string) []string { return textutil.TokenizePinpointValue(s) }

// TokenOverlapScore returns |queryTokens ∩ unitTokens| / |queryTokens|, 0
// when either side is empty.
func TokenOverlapScore(queryTokens, unitTokens []string) float64 {
	if len(queryTokens) == 0 || len(unitTokens) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(unitTokens))
	for _, t := range unitTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

// PinpointUnitPriority returns the priority matrix value for unitType,
// given whether the query mentions a table and/or looks like a bare table
// reference (priority table: table_reference dominates
// mentions_table which dominates the default column).
func PinpointUnitPriority(unitType UnitType, mentionsTable, tableReference bool) int {
	if tableReference {
		switch unitType {
		case UnitTableRow:
			return 4
		case UnitTableCell:
			return 3
		case UnitSentenceWindow:
			return 1
		default:
			return 2
		}
	}
	if mentionsTable {
		switch unitType {
		case UnitTableRow:
			return 4
		case UnitTableCell:
			return 3
		case UnitSentenceWindow:
			return 2
		default:
			return 1
		}
	}
	switch unitType {
	case UnitSentenceWindow:
		return 3
	case UnitTableRow:
		return 2
	case UnitTableCell:
		return 1
	default:
		return 0
	}
}

// AnchorFamily decomposes an anchor string on ':' into its leading
// (family, kind) pair, returning ok=false unless both leading segments are
// non-empty.
func AnchorFamily(anchor string) (family, kind string, ok bool) {
	parts := strings.SplitN(anchor, ":", 3)
	if len(parts) < 2 {
		return "", "", false
	}
	family = strings.TrimSpace(parts[0])
	kind = strings.TrimSpace(parts[1])
	if family == "" || kind == "" {
		return "", "", false
	}
	return family, kind, true
}

// PinpointAnchorCompatible reports whether unitAnchor is admissible under
// parentAnchor: true when either is empty, when they're equal, or when
// both decompose to the same (family, kind).
func PinpointAnchorCompatible(unitAnchor, parentAnchor string) bool {
	if strings.TrimSpace(parentAnchor) == "" || strings.TrimSpace(unitAnchor) == "" {
		return true
	}
	if unitAnchor == parentAnchor {
		return true
	}
	parentFamily, parentKind, parentOK := AnchorFamily(parentAnchor)
	unitFamily, unitKind, unitOK := AnchorFamily(unitAnchor)
	return parentOK && unitOK && parentFamily == unitFamily && parentKind == unitKind
}

// SelectPinpointParentChunk prefers retrievedParentChunkID when it appears
// in query.ParentExpectedChunkIDs; else the first expected chunk ID; else
// retrievedParentChunkID itself.
func SelectPinpointParentChunk(query Query, retrievedParentChunkID string) (string, bool) {
	if retrievedParentChunkID != "" {
		for _, expected := range query.ParentExpectedChunkIDs {
			if expected == retrievedParentChunkID {
				return retrievedParentChunkID, true
			}
		}
	}
	if len(query.ParentExpectedChunkIDs) > 0 {
		return query.ParentExpectedChunkIDs[0], true
	}
	if retrievedParentChunkID != "" {
		return retrievedParentChunkID, true
	}
	return "", false
}

// EnumerateUnits walks a chunk's subtree (descendant nodes) into pinpoint
// units: table_row/table_cell nodes become one unit apiece (rows capped at
// PinpointTableRowLimit), everything else is split into sentence windows.
func EnumerateUnits(descendants []store.DescendantNode) []Unit {
	var units []Unit
	rowCount := 0
	order := 0

	for _, node := range descendants {
		switch node.NodeType {
		case "table_row":
			if rowCount >= PinpointTableRowLimit {
				continue
			}
			rowCount++
			units = append(units, Unit{UnitType: UnitTableRow, Text: node.TextPreview, Anchor: node.AnchorType, Order: order})
			order++
		case "table_cell":
			units = append(units, Unit{UnitType: UnitTableCell, Text: node.TextPreview, Anchor: node.AnchorType, Order: order})
			order++
		default:
			for _, window := range sentenceWindows(node.TextPreview) {
				units = append(units, Unit{UnitType: UnitSentenceWindow, Text: window, Anchor: node.AnchorType, Order: order})
				order++
			}
		}
	}
	return units
}

// sentenceWindows splits text into sentences (on '.', '!', '?') and groups
// them into consecutive, non-overlapping two-sentence windows; a single trailing sentence
// becomes its own window.
func sentenceWindows(text string) []string {
	text = textutil.CondenseWhitespace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	if len(sentences) == 0 {
		return nil
	}

	var windows []string
	for i := 0; i < len(sentences); i += 2 {
		end := i + 2
		if end > len(sentences) {
			end = len(sentences)
		}
		windows = append(windows, strings.Join(sentences[i:end], " "))
	}
	return windows
}

// Select scores units against query and returns up to PinpointUnitLimit
// admissible ones, falling back to parentText as a single unit when none
// scores above zero token overlap.
func Select(query Query, units []Unit, parentText string) Result {
	mentionsTable := textutil.QueryMentionsTableContext(query.QueryText)
	tableReference := textutil.LooksLikeTableReferenceQuery(query.QueryText)
	queryTokens := textutil.TokenizePinpointValue(query.QueryText)

	var scored []ScoredUnit
	mismatches := 0
	for _, u := range units {
		if !PinpointAnchorCompatible(u.Anchor, query.ParentAnchor) {
			mismatches++
			continue
		}
		overlap := TokenOverlapScore(queryTokens, textutil.TokenizePinpointValue(u.Text))
		priority := PinpointUnitPriority(u.UnitType, mentionsTable, tableReference)
		scored = append(scored, ScoredUnit{Unit: u, Priority: priority, TokenOverlap: overlap})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Priority != scored[j].Priority {
			return scored[i].Priority > scored[j].Priority
		}
		if scored[i].TokenOverlap != scored[j].TokenOverlap {
			return scored[i].TokenOverlap > scored[j].TokenOverlap
		}
		return scored[i].Order < scored[j].Order
	})

	anyScored := false
	for _, s := range scored {
		if s.TokenOverlap > 0 {
			anyScored = true
			break
		}
	}
	if !anyScored {
		fallbackText := textutil.CondenseWhitespace(parentText)
		return Result{
			Units: []ScoredUnit{{
				Unit:     Unit{UnitType: UnitOther, Text: fallbackText, Order: 0},
				Priority: 0,
			}},
			FallbackUsed:                true,
			CitationAnchorMismatchCount: mismatches,
		}
	}

	if len(scored) > PinpointUnitLimit {
		scored = scored[:PinpointUnitLimit]
	}
	return Result{
		Units:                       scored,
		FallbackUsed:                false,
		CitationAnchorMismatchCount: mismatches,
	}
}
