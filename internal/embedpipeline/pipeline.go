// Package embedpipeline keeps chunk_embeddings in sync with the current
// chunk payload for one embedding model: for every eligible chunk it
// ensures exactly one embedding row whose text_hash matches the chunk's
// current payload, requesting new vectors from an internal/embed.Embedder
// only when the existing row is missing, stale, or a force refresh is
// requested.
//
// Builds on internal/embed/factory.go's backend selection plus a
// bounded-parallelism pattern for concurrent embedding calls, adapted to
// the chunk_embeddings upsert contract.
package embedpipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

// RefreshMode selects how aggressively embeddings are recomputed.
type RefreshMode string

const (
	// RefreshAuto recomputes only missing or stale embeddings.
	RefreshAuto RefreshMode = "auto"
	// RefreshForce recomputes every eligible chunk's embedding.
	RefreshForce RefreshMode = "force"
)

// Embedder is the subset of internal/embed.Embedder the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// PayloadBuilder builds the embeddable text for a chunk, returning
// ok=false when the chunk carries no embeddable content.
type PayloadBuilder func(chunkType, ref, heading, text, tableMD string) (payload string, ok bool)

// Store is the subset of *store.Store the pipeline reads and writes.
type Store interface {
	LoadChunkRows(ctx context.Context) ([]store.ChunkRow, error)
	LoadExistingEmbedding(ctx context.Context, chunkID, modelID string) (store.ExistingEmbedding, bool, error)
	UpsertChunkEmbedding(ctx context.Context, row store.EmbeddingRow) error
	EnsureModelEntry(ctx context.Context, model store.ModelDescriptor) error
	CountStaleEmbeddings(ctx context.Context, modelID string, currentHashes map[string]string) (int, error)
}

// Result summarizes one pipeline run.
type Result struct {
	Eligible        int
	Skipped         int
	Embedded        int
	Updated         int
	Unchanged       int
	StaleRowsBefore int
	StaleRowsAfter  int
	Warnings        []string
	Duration        time.Duration
}

// Config configures one pipeline run.
type Config struct {
	Model          store.ModelDescriptor
	Mode           RefreshMode
	ChunkTypeFilter store.ChunkTypeFilter
	Concurrency    int
	BuildPayload   PayloadBuilder
}

// Run brings chunk_embeddings for cfg.Model up to date with the chunk
// store's current payload, per the per-chunk refresh algorithm.
func Run(ctx context.Context, st Store, embedder Embedder, cfg Config) (Result, error) {
	started := time.Now()

	if err := st.EnsureModelEntry(ctx, cfg.Model); err != nil {
		return Result{}, err
	}

	rows, err := st.LoadChunkRows(ctx)
	if err != nil {
		return Result{}, err
	}

	buildPayload := cfg.BuildPayload
	if buildPayload == nil {
		buildPayload = DefaultPayloadBuilder
	}

	type eligibleChunk struct {
		chunkID string
		payload string
		hash    string
	}

	var eligible []eligibleChunk
	var result Result
	currentHashes := make(map[string]string)

	for _, row := range rows {
		if !isEligible(row, cfg.ChunkTypeFilter) {
			result.Skipped++
			continue
		}
		payload, ok := buildPayload(row.ChunkType, row.Ref, row.Heading, row.Text, row.TableMD)
		if !ok {
			result.Skipped++
			continue
		}
		hash := textHash(payload)
		currentHashes[row.ChunkID] = hash
		eligible = append(eligible, eligibleChunk{chunkID: row.ChunkID, payload: payload, hash: hash})
	}
	result.Eligible = len(eligible)

	staleBefore, err := st.CountStaleEmbeddings(ctx, cfg.Model.ModelID, currentHashes)
	if err != nil {
		return Result{}, err
	}
	result.StaleRowsBefore = staleBefore

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ch := range eligible {
		ch := ch
		g.Go(func() error {
			existing, found, err := st.LoadExistingEmbedding(gctx, ch.chunkID, cfg.Model.ModelID)
			if err != nil {
				return err
			}
			if found && existing.TextHash == ch.hash && existing.EmbeddingDim == cfg.Model.Dimensions && cfg.Mode != RefreshForce {
				mu.Lock()
				result.Unchanged++
				mu.Unlock()
				return nil
			}

			vec, err := embedder.Embed(gctx, ch.payload)
			if err != nil {
				return amerrors.New(amerrors.ErrCodeBackendTimeout,
					fmt.Sprintf("embed chunk %s", ch.chunkID), err)
			}
			if len(vec) != cfg.Model.Dimensions {
				return amerrors.New(amerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("embedder returned dimension %d for chunk %s, model expects %d",
						len(vec), ch.chunkID, cfg.Model.Dimensions), nil)
			}

			if err := st.UpsertChunkEmbedding(gctx, store.EmbeddingRow{
				ChunkID:      ch.chunkID,
				ModelID:      cfg.Model.ModelID,
				Embedding:    vec,
				EmbeddingDim: cfg.Model.Dimensions,
				TextHash:     ch.hash,
				GeneratedAt:  time.Now().UTC(),
			}); err != nil {
				return err
			}

			mu.Lock()
			if found {
				result.Updated++
			} else {
				result.Embedded++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	staleAfter, err := st.CountStaleEmbeddings(ctx, cfg.Model.ModelID, currentHashes)
	if err != nil {
		return Result{}, err
	}
	result.StaleRowsAfter = staleAfter
	result.Duration = time.Since(started)

	return result, nil
}

func isEligible(row store.ChunkRow, filter store.ChunkTypeFilter) bool {
	if !store.IsSupportedChunkType(row.ChunkType) {
		return false
	}
	return filter.Matches(row.ChunkType)
}

// textHash returns the lowercase hex SHA-256 digest of payload.
func textHash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// DefaultPayloadBuilder builds embeddable text by joining the chunk's
// reference, heading, body text, and table markdown; it returns ok=false
// only when all four fields are empty.
func DefaultPayloadBuilder(chunkType, ref, heading, text, tableMD string) (payload string, ok bool) {
	parts := make([]string, 0, 4)
	for _, p := range []string{ref, heading, text, tableMD} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
