package store

// schemaSQL creates the four chunk-store tables and their indexes if
// absent. The gateway owns schema creation so the store is runnable
// standalone for tests and manifest tooling even when ingestion (external)
// has not yet populated it.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	node_id           TEXT PRIMARY KEY,
	parent_node_id    TEXT,
	doc_id            TEXT NOT NULL,
	node_type         TEXT NOT NULL,
	ref               TEXT,
	heading           TEXT,
	order_index       INTEGER NOT NULL DEFAULT 0,
	page_pdf_start    INTEGER,
	page_pdf_end      INTEGER,
	text              TEXT,
	source_hash       TEXT,
	ancestor_path     TEXT,
	anchor_type       TEXT,
	anchor_label_raw  TEXT,
	anchor_label_norm TEXT
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_node_id);
CREATE INDEX IF NOT EXISTS idx_nodes_doc ON nodes(doc_id);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id            TEXT PRIMARY KEY,
	doc_id               TEXT NOT NULL,
	type                 TEXT NOT NULL,
	ref                  TEXT,
	heading              TEXT,
	page_pdf_start       INTEGER,
	page_pdf_end         INTEGER,
	text                 TEXT,
	table_md             TEXT,
	source_hash          TEXT,
	origin_node_id       TEXT,
	leaf_node_type       TEXT,
	ancestor_path        TEXT,
	citation_anchor_id   TEXT,
	anchor_type          TEXT,
	anchor_label_raw     TEXT,
	anchor_label_norm    TEXT,
	anchor_order         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
CREATE INDEX IF NOT EXISTS idx_chunks_type ON chunks(type);
CREATE INDEX IF NOT EXISTS idx_chunks_origin ON chunks(origin_node_id);

CREATE TABLE IF NOT EXISTS embedding_models (
	model_id    TEXT PRIMARY KEY,
	backend     TEXT NOT NULL,
	model_name  TEXT NOT NULL,
	dimensions  INTEGER NOT NULL,
	normalize   INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL,
	config_json TEXT
);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id      TEXT NOT NULL,
	model_id      TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	embedding_dim INTEGER NOT NULL,
	text_hash     TEXT NOT NULL,
	generated_at  TEXT NOT NULL,
	PRIMARY KEY (chunk_id, model_id)
);

CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_model ON chunk_embeddings(model_id);
`
