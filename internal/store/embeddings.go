package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
)

// LoadExistingEmbedding returns the (text_hash, embedding_dim) of the
// existing chunk_embeddings row for (chunkID, modelID), or ok=false when no
// such row exists — "row not found" is not an error.
func (s *Store) LoadExistingEmbedding(ctx context.Context, chunkID, modelID string) (ExistingEmbedding, bool, error) {
	var e ExistingEmbedding
	err := s.db.QueryRowContext(ctx,
		`SELECT text_hash, embedding_dim FROM chunk_embeddings WHERE chunk_id = ? AND model_id = ?`,
		chunkID, modelID,
	).Scan(&e.TextHash, &e.EmbeddingDim)
	if err == sql.ErrNoRows {
		return ExistingEmbedding{}, false, nil
	}
	if err != nil {
		return ExistingEmbedding{}, false, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("load existing embedding for chunk %s model %s", chunkID, modelID), err)
	}
	return e, true, nil
}

// UpsertChunkEmbedding writes row, overwriting every field (including
// generated_at) on a (chunk_id, model_id) key conflict.
func (s *Store) UpsertChunkEmbedding(ctx context.Context, row EmbeddingRow) error {
	blob := encodeEmbedding(row.Embedding)
	generatedAt := row.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunk_embeddings (chunk_id, model_id, embedding, embedding_dim, text_hash, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model_id) DO UPDATE SET
			embedding = excluded.embedding,
			embedding_dim = excluded.embedding_dim,
			text_hash = excluded.text_hash,
			generated_at = excluded.generated_at
	`, row.ChunkID, row.ModelID, blob, row.EmbeddingDim, row.TextHash, generatedAt.Format(time.RFC3339))
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite,
			fmt.Sprintf("upsert embedding for chunk %s model %s", row.ChunkID, row.ModelID), err)
	}
	return nil
}

// EnsureModelEntry upserts a model descriptor. Normalize is always written
// as 1 regardless of the caller-supplied value.
func (s *Store) EnsureModelEntry(ctx context.Context, model ModelDescriptor) error {
	createdAt := model.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_models (model_id, backend, model_name, dimensions, normalize, created_at, config_json)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			backend = excluded.backend,
			model_name = excluded.model_name,
			dimensions = excluded.dimensions,
			normalize = 1,
			config_json = excluded.config_json
	`, model.ModelID, model.Backend, model.ModelName, model.Dimensions,
		createdAt.Format(time.RFC3339), model.ConfigJSON)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite,
			fmt.Sprintf("ensure model entry %s", model.ModelID), err)
	}
	return nil
}

// CountStaleEmbeddings counts chunk_embeddings rows for modelID whose
// text_hash does not match currentHashes[chunk_id] (including rows for
// chunk_ids no longer present in currentHashes at all).
func (s *Store) CountStaleEmbeddings(ctx context.Context, modelID string, currentHashes map[string]string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, text_hash FROM chunk_embeddings WHERE model_id = ?`, modelID)
	if err != nil {
		return 0, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("count stale embeddings for model %s", modelID), err)
	}
	defer rows.Close()

	stale := 0
	for rows.Next() {
		var chunkID, hash string
		if err := rows.Scan(&chunkID, &hash); err != nil {
			return 0, amerrors.New(amerrors.ErrCodeStoreRead, "scan stale embedding row", err)
		}
		if current, ok := currentHashes[chunkID]; !ok || current != hash {
			stale++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, amerrors.New(amerrors.ErrCodeStoreRead, "iterate stale embedding rows", err)
	}
	return stale, nil
}

// LoadEmbedding returns the full embedding row for (chunkID, modelID),
// decoding the stored blob back into a float32 vector.
func (s *Store) LoadEmbedding(ctx context.Context, chunkID, modelID string) (EmbeddingRow, bool, error) {
	var blob []byte
	row := EmbeddingRow{ChunkID: chunkID, ModelID: modelID}
	var generatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding, embedding_dim, text_hash, generated_at FROM chunk_embeddings WHERE chunk_id = ? AND model_id = ?`,
		chunkID, modelID,
	).Scan(&blob, &row.EmbeddingDim, &row.TextHash, &generatedAt)
	if err == sql.ErrNoRows {
		return EmbeddingRow{}, false, nil
	}
	if err != nil {
		return EmbeddingRow{}, false, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("load embedding for chunk %s model %s", chunkID, modelID), err)
	}
	row.Embedding = decodeEmbedding(blob)
	if t, perr := time.Parse(time.RFC3339, generatedAt); perr == nil {
		row.GeneratedAt = t
	}
	return row, true, nil
}

// AllEmbeddings returns every chunk_embeddings row for modelID, used by the
// semantic retriever to build its in-memory vector index.
func (s *Store) AllEmbeddings(ctx context.Context, modelID string) ([]EmbeddingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, embedding, embedding_dim, text_hash, generated_at FROM chunk_embeddings WHERE model_id = ?`,
		modelID)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead,
			fmt.Sprintf("load all embeddings for model %s", modelID), err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var e EmbeddingRow
		var blob []byte
		var generatedAt string
		e.ModelID = modelID
		if err := rows.Scan(&e.ChunkID, &blob, &e.EmbeddingDim, &e.TextHash, &generatedAt); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeStoreRead, "scan embedding row", err)
		}
		e.Embedding = decodeEmbedding(blob)
		if t, perr := time.Parse(time.RFC3339, generatedAt); perr == nil {
			e.GeneratedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreRead, "iterate embedding rows", err)
	}
	return out, nil
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
