// Package lexical implements the BM25-scored full-text retriever: it indexes
// each chunk's reference, heading, body text, and table markdown into a
// SQLite FTS5 virtual table and returns candidates ranked by descending
// bm25() score.
//
// The index lives in an in-memory SQLite database (no pragmas are set) with
// an fts_content FTS5 table, an fts_chunk_ids tracking table, and negated
// bm25() scores. The
// code-identifier tokenizer (camelCase/snake_case splitting)
// is dropped in favor of FTS5's own unicode61 tokenizer plus
// internal/textutil's natural-language stop word list, since chunk text is
// prose and table cells, not source code.
package lexical

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, FTS5-enabled build tag

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
	"github.com/PLeVasseur/iso26262-retrieval/internal/textutil"
)

const schemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
	chunk_id UNINDEXED,
	content,
	tokenize='unicode61'
);
CREATE TABLE IF NOT EXISTS fts_chunk_ids (
	chunk_id TEXT PRIMARY KEY
);
`

// Candidate is one lexical retrieval result.
type Candidate struct {
	store.RetrievedFields
	LexicalScore float64 // higher is better
	LexicalRank  int     // 1-based
}

// Retriever is an in-process SQLite FTS5 index over chunk payload text.
type Retriever struct {
	mu     sync.RWMutex
	db     *sql.DB
	fields map[string]store.RetrievedFields
}

// NewRetriever builds an in-memory FTS5 index over rows, keyed by chunk_id.
// Each row's searchable content is the whitespace-joined concatenation of
// its reference, heading, body text, and table markdown, with
// internal/textutil stop words removed.
func NewRetriever(ctx context.Context, rows []store.ChunkRow) (*Retriever, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreOpen, "open in-memory lexical index", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, amerrors.New(amerrors.ErrCodeStoreSchema, "initialize lexical index schema", err)
	}

	r := &Retriever{
		db:     db,
		fields: make(map[string]store.RetrievedFields, len(rows)),
	}
	if err := r.indexRows(ctx, rows); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Retriever) indexRows(ctx context.Context, rows []store.ChunkRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "begin lexical index transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertContent, err := tx.PrepareContext(ctx, `INSERT INTO fts_content(chunk_id, content) VALUES (?, ?)`)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "prepare lexical insert", err)
	}
	defer insertContent.Close()

	insertID, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO fts_chunk_ids(chunk_id) VALUES (?)`)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "prepare lexical id tracking insert", err)
	}
	defer insertID.Close()

	for _, row := range rows {
		content := payloadText(row)
		if _, err := insertContent.ExecContext(ctx, row.ChunkID, content); err != nil {
			return amerrors.New(amerrors.ErrCodeStoreWrite, fmt.Sprintf("index chunk %s", row.ChunkID), err)
		}
		if _, err := insertID.ExecContext(ctx, row.ChunkID); err != nil {
			return amerrors.New(amerrors.ErrCodeStoreWrite, fmt.Sprintf("track lexical chunk id %s", row.ChunkID), err)
		}
		r.fields[row.ChunkID] = toRetrievedFields(row)
	}

	if err := tx.Commit(); err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "commit lexical index transaction", err)
	}
	return nil
}

// payloadText builds the searchable text for a chunk: reference, heading,
// body text, and table markdown, joined by spaces and stop-word filtered.
func payloadText(row store.ChunkRow) string {
	parts := []string{row.Ref, row.Heading, row.Text, row.TableMD}
	joined := strings.Join(parts, " ")
	tokens := textutil.TokenizePinpointValue(joined)
	if len(tokens) == 0 {
		return textutil.CondenseWhitespace(joined)
	}
	return strings.Join(tokens, " ")
}

func toRetrievedFields(row store.ChunkRow) store.RetrievedFields {
	return store.RetrievedFields{
		ChunkID:          row.ChunkID,
		DocID:            row.DocID,
		ChunkType:        row.ChunkType,
		Ref:              row.Ref,
		Heading:          row.Heading,
		PagePDFStart:     row.PagePDFStart,
		PagePDFEnd:       row.PagePDFEnd,
		SourceHash:       row.SourceHash,
		Snippet:          textutil.CondenseWhitespace(row.Text),
		OriginNodeID:     row.OriginNodeID,
		LeafNodeType:     row.LeafNodeType,
		AncestorPath:     row.AncestorPath,
		CitationAnchorID: row.CitationAnchorID,
		AnchorType:       row.AnchorType,
		AnchorLabelRaw:   row.AnchorLabelRaw,
		AnchorLabelNorm:  row.AnchorLabelNorm,
	}
}

// Retrieve returns up to k candidates matching query, sorted by descending
// lexical score (FTS5's bm25(), negated so higher means a better match),
// restricted by filter.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter Filter) ([]Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := textutil.TokenizePinpointValue(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	matchQuery := strings.Join(tokens, " ")

	fetch := k * 4
	if fetch < k+16 {
		fetch = k + 16
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(fts_content) AS raw_score
		FROM fts_content
		WHERE content MATCH ?
		ORDER BY raw_score
		LIMIT ?
	`, matchQuery, fetch)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "lexical search", err)
	}
	defer rows.Close()

	type scored struct {
		chunkID string
		score   float64
	}
	var hits []scored
	for rows.Next() {
		var chunkID string
		var rawScore float64
		if err := rows.Scan(&chunkID, &rawScore); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreRead, "scan lexical search row", err)
		}
		fields, ok := r.fields[chunkID]
		if !ok {
			continue
		}
		parts, partsOK := store.ParseDocID(fields.DocID)
		if !filter.allows(parts.Part, partsOK, fields.ChunkType) {
			continue
		}
		// FTS5 bm25() returns negative values; higher (less negative) is
		// a worse match, so negate to get a higher-is-better score.
		hits = append(hits, scored{chunkID: chunkID, score: -rawScore})
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "iterate lexical search rows", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Candidate, 0, len(hits))
	for i, h := range hits {
		out = append(out, Candidate{
			RetrievedFields: r.fields[h.chunkID],
			LexicalScore:    h.score,
			LexicalRank:     i + 1,
		})
	}
	return out, nil
}

// Close releases the index's database handle.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// Filter narrows candidates by document part and/or chunk type.
type Filter struct {
	Parts      map[int]struct{} // empty/nil: no part restriction
	ChunkTypes store.ChunkTypeFilter
}

func (f Filter) allows(part int, ok bool, chunkType string) bool {
	if len(f.Parts) > 0 {
		if !ok {
			return false
		}
		if _, present := f.Parts[part]; !present {
			return false
		}
	}
	if !f.ChunkTypes.Matches(chunkType) {
		return false
	}
	return true
}
