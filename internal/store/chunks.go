package store

import (
	"context"
	"strings"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
)

const loadChunkRowsSQL = `
SELECT
  chunk_id, doc_id, lower(type), COALESCE(ref, ''), COALESCE(heading, ''),
  page_pdf_start, page_pdf_end, COALESCE(text, ''), COALESCE(table_md, ''),
  COALESCE(source_hash, ''), COALESCE(origin_node_id, ''), COALESCE(leaf_node_type, ''),
  COALESCE(ancestor_path, ''), COALESCE(citation_anchor_id, ''), COALESCE(anchor_type, ''),
  COALESCE(anchor_label_raw, ''), COALESCE(anchor_label_norm, ''), anchor_order
FROM chunks
ORDER BY chunk_id ASC
`

// LoadChunkRows returns every chunk row, ordered by chunk_id ascending,
// with chunk_type lowercased and ref/heading COALESCE-defaulted to "".
func (s *Store) LoadChunkRows(ctx context.Context) ([]ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx, loadChunkRowsSQL)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "load chunk rows", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var c ChunkRow
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.ChunkType, &c.Ref, &c.Heading,
			&c.PagePDFStart, &c.PagePDFEnd, &c.Text, &c.TableMD,
			&c.SourceHash, &c.OriginNodeID, &c.LeafNodeType,
			&c.AncestorPath, &c.CitationAnchorID, &c.AnchorType,
			&c.AnchorLabelRaw, &c.AnchorLabelNorm, &c.AnchorOrder); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreRead, "scan chunk row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "iterate chunk rows", err)
	}
	return out, nil
}

// IsSupportedChunkType reports whether t (already lowercased) is one of the
// embeddable chunk types.
func IsSupportedChunkType(t string) bool {
	switch t {
	case "clause", "annex", "table":
		return true
	default:
		return false
	}
}

// ChunkTypeFilter is a set of lowercased, trimmed, non-empty chunk-type
// names; an empty filter matches every chunk type.
type ChunkTypeFilter map[string]struct{}

// NewChunkTypeFilter builds a ChunkTypeFilter from caller-supplied strings,
// lowercasing, trimming, and dropping empties.
func NewChunkTypeFilter(values []string) ChunkTypeFilter {
	f := make(ChunkTypeFilter)
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			f[v] = struct{}{}
		}
	}
	return f
}

// Matches reports whether chunkType passes the filter: true when the
// filter is empty, or when chunkType is a member.
func (f ChunkTypeFilter) Matches(chunkType string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[chunkType]
	return ok
}

const resolveChunksByRefSQL = `
SELECT chunk_id FROM chunks WHERE doc_id = ?1 AND lower(COALESCE(ref, '')) = lower(?2)
`

// ResolveChunksByRef returns every chunk_id in docID whose ref matches ref
// case-insensitively. Exactly one match marks a gold (doc_id, ref) pair as a
// high-confidence exact-intent probe.
func (s *Store) ResolveChunksByRef(ctx context.Context, docID, ref string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, resolveChunksByRefSQL, docID, ref)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "resolve chunks by ref", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreRead, "scan resolved chunk id", err)
		}
		out = append(out, chunkID)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "iterate resolved chunk ids", err)
	}
	return out, nil
}
