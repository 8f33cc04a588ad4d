package store

import (
	"context"
	"database/sql"
	"fmt"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
	"github.com/PLeVasseur/iso26262-retrieval/internal/textutil"
)

const fetchDescendantsSQL = `
WITH RECURSIVE descendants(
  node_id, parent_node_id, node_type, ref, heading,
  order_index, page_pdf_start, page_pdf_end, text, anchor_type, depth
) AS (
  SELECT
    n.node_id, n.parent_node_id, n.node_type, n.ref, n.heading,
    n.order_index, n.page_pdf_start, n.page_pdf_end, n.text, n.anchor_type, 1
  FROM nodes n
  WHERE n.parent_node_id = ?

  UNION ALL

  SELECT
    n.node_id, n.parent_node_id, n.node_type, n.ref, n.heading,
    n.order_index, n.page_pdf_start, n.page_pdf_end, n.text, n.anchor_type, d.depth + 1
  FROM nodes n
  JOIN descendants d ON n.parent_node_id = d.node_id
  WHERE d.depth < 8
)
SELECT
  node_id, parent_node_id, node_type,
  COALESCE(ref, ''), COALESCE(heading, ''),
  order_index, page_pdf_start, page_pdf_end,
  text, COALESCE(anchor_type, '')
FROM descendants
ORDER BY depth, order_index, node_id
LIMIT 256
`

// FetchDescendants walks the subtree rooted at originNodeID's children, up
// to depth 8, ordered by (depth, order_index, node_id) and limited to 256
// rows. TextPreview holds the full row text condensed to single-spaced
// whitespace; callers that need a short preview truncate it themselves.
func (s *Store) FetchDescendants(ctx context.Context, originNodeID string) ([]DescendantNode, error) {
	rows, err := s.db.QueryContext(ctx, fetchDescendantsSQL, originNodeID)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("fetch descendants of node %s", originNodeID), err)
	}
	defer rows.Close()

	var out []DescendantNode
	for rows.Next() {
		var d DescendantNode
		var text sql.NullString
		if err := rows.Scan(&d.NodeID, &d.ParentNodeID, &d.NodeType, &d.Ref, &d.Heading,
			&d.OrderIndex, &d.PagePDFStart, &d.PagePDFEnd, &text, &d.AnchorType); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreRead,
				fmt.Sprintf("scan descendant row of node %s", originNodeID), err)
		}
		d.TextPreview = textutil.CondenseWhitespace(text.String)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("iterate descendants of node %s", originNodeID), err)
	}
	return out, nil
}

const resolveParentRefSQL = `
WITH RECURSIVE ancestors(node_id, parent_node_id, node_type, ref, depth) AS (
  SELECT n.node_id, n.parent_node_id, n.node_type, n.ref, 0
  FROM nodes n
  WHERE n.node_id = ?

  UNION ALL

  SELECT p.node_id, p.parent_node_id, p.node_type, p.ref, a.depth + 1
  FROM nodes p
  JOIN ancestors a ON p.node_id = a.parent_node_id
  WHERE a.depth < 16
)
SELECT ref
FROM ancestors
WHERE depth > 0
  AND ref IS NOT NULL
  AND trim(ref) <> ''
  AND node_type IN ('clause', 'subclause', 'annex', 'table')
ORDER BY depth ASC
LIMIT 1
`

// ResolveParentRef walks ancestors of originNodeID (depth 1..16) and
// returns the ref of the nearest one whose node_type is a referenceable
// kind and whose ref is non-empty. Returns ("", false) when originNodeID is
// empty or no such ancestor exists — "no ancestor" is not an error.
func (s *Store) ResolveParentRef(ctx context.Context, originNodeID string) (string, bool, error) {
	if originNodeID == "" {
		return "", false, nil
	}

	var ref string
	err := s.db.QueryRowContext(ctx, resolveParentRefSQL, originNodeID).Scan(&ref)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("resolve parent ref of node %s", originNodeID), err)
	}
	return ref, true, nil
}
