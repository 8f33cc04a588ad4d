// Package store provides typed, WAL-mode SQLite access to the chunk store:
// the chunks, nodes, chunk_embeddings, and embedding_models tables that
// back both retrieval and the embedding pipeline.
package store

import "time"

// ChunkRow is a row of the chunks table, as consumed by the retrievers and
// the embedding pipeline.
type ChunkRow struct {
	ChunkID          string
	DocID            string
	ChunkType        string // lowercased: clause, annex, table, ...
	Ref              string // COALESCE-defaulted to ""
	Heading          string // COALESCE-defaulted to ""
	PagePDFStart     *int
	PagePDFEnd       *int
	Text             string
	TableMD          string
	SourceHash       string
	OriginNodeID     string
	LeafNodeType     string
	AncestorPath     string
	CitationAnchorID string
	AnchorType       string
	AnchorLabelRaw   string
	AnchorLabelNorm  string
	AnchorOrder      int
}

// Node is a row of the nodes table, the hierarchical tree chunks are
// extracted from.
type Node struct {
	NodeID          string
	ParentNodeID    string
	DocID           string
	NodeType        string
	Ref             string
	Heading         string
	OrderIndex      int
	PagePDFStart    *int
	PagePDFEnd      *int
	Text            string
	SourceHash      string
	AncestorPath    string
	AnchorType      string
	AnchorLabelRaw  string
	AnchorLabelNorm string
}

// DescendantNode is one row returned by FetchDescendants: a trimmed subtree
// node whose TextPreview is the full text with whitespace condensed (not
// truncated).
type DescendantNode struct {
	NodeID       string
	ParentNodeID string
	NodeType     string
	Ref          string
	Heading      string
	OrderIndex   int
	PagePDFStart *int
	PagePDFEnd   *int
	TextPreview  string
	AnchorType   string
}

// ModelDescriptor is a row of embedding_models: the frozen identity of an
// embedding model an embedding run writes against.
type ModelDescriptor struct {
	ModelID    string
	Backend    string
	ModelName  string
	Dimensions int
	Normalize  int // always 1 per EnsureModelEntry
	CreatedAt  time.Time
	ConfigJSON string
}

// EmbeddingRow is a row of chunk_embeddings, keyed by (ChunkID, ModelID).
type EmbeddingRow struct {
	ChunkID      string
	ModelID      string
	Embedding    []float32
	EmbeddingDim int
	TextHash     string
	GeneratedAt  time.Time
}

// ExistingEmbedding is the narrow projection LoadExistingEmbedding needs to
// decide whether an embedding is stale.
type ExistingEmbedding struct {
	TextHash     string
	EmbeddingDim int
}

// RetrievedFields is the set of descriptive chunk columns shared by the
// lexical and semantic retrievers' candidate shapes. Each retriever package
// embeds this into its own Candidate type so that lexical, semantic, and
// fusion can share field names without importing each other.
type RetrievedFields struct {
	ChunkID          string
	DocID            string
	ChunkType        string
	Ref              string
	Heading          string
	PagePDFStart     *int
	PagePDFEnd       *int
	SourceHash       string
	Snippet          string
	OriginNodeID     string
	LeafNodeType     string
	AncestorPath     string
	CitationAnchorID string
	AnchorType       string
	AnchorLabelRaw   string
	AnchorLabelNorm  string
}
