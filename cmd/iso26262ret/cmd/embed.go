package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/iso26262-retrieval/internal/embedpipeline"
	"github.com/PLeVasseur/iso26262-retrieval/internal/manifest"
	"github.com/PLeVasseur/iso26262-retrieval/internal/output"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

// newEmbedCmd creates the embed command group.
func newEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Manage the chunk store's embeddings",
	}
	cmd.AddCommand(newEmbedRunCmd())
	return cmd
}

// newEmbedRunCmd creates the "embed run" command: brings chunk_embeddings
// for the configured model up to date and writes the run manifest and
// model config lockfile.
func newEmbedRunCmd() *cobra.Command {
	var force bool
	var chunkTypes []string
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Embed eligible chunks that are missing or stale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx := cmd.Context()
			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open chunk store: %w", err)
			}
			defer st.Close()

			embedder, err := openEmbedder(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open embedder: %w", err)
			}
			defer embedder.Close()

			model := store.ModelDescriptor{
				ModelID:    modelID(cfg.Embeddings.Provider, embedder.ModelName()),
				Backend:    cfg.Embeddings.Provider,
				ModelName:  embedder.ModelName(),
				Dimensions: embedder.Dimensions(),
				Normalize:  1,
				CreatedAt:  time.Now().UTC(),
			}

			mode := embedpipeline.RefreshAuto
			if force {
				mode = embedpipeline.RefreshForce
			}

			started := time.Now()
			result, err := embedpipeline.Run(ctx, st, embedder, embedpipeline.Config{
				Model:           model,
				Mode:            mode,
				ChunkTypeFilter: store.NewChunkTypeFilter(chunkTypes),
				Concurrency:     cfg.Embeddings.BatchSize,
			})
			if err != nil {
				return fmt.Errorf("run embedding pipeline: %w", err)
			}

			status := "ok"
			if len(result.Warnings) > 0 {
				status = "ok_with_warnings"
			}

			runManifest := manifest.EmbeddingRunManifest{
				ManifestVersion:    manifest.ManifestVersion,
				RunID:              textHash(fmt.Sprintf("%s-%d", model.ModelID, started.UnixNano())),
				GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
				ModelID:            model.ModelID,
				ModelName:          model.ModelName,
				EmbeddingDim:       model.Dimensions,
				Normalization:      "l2",
				Backend:            model.Backend,
				DBSchemaVersion:    manifest.EmbeddingDBSchemaVersion,
				RefreshMode:        string(mode),
				ChunkTypeFilter:    chunkTypes,
				EligibleChunks:     result.Eligible,
				EmbeddedChunks:     result.Embedded,
				UpdatedChunks:      result.Updated,
				SkippedEmptyChunks: result.Skipped,
				StaleRowsBefore:    result.StaleRowsBefore,
				StaleRowsAfter:     result.StaleRowsAfter,
				BatchSize:          cfg.Embeddings.BatchSize,
				DurationMs:         result.Duration.Milliseconds(),
				Status:             status,
				Warnings:           result.Warnings,
			}

			if manifestPath != "" {
				if err := manifest.WriteEmbeddingRunManifest(manifestPath, runManifest); err != nil {
					return fmt.Errorf("write embedding run manifest: %w", err)
				}
				lockPath := manifest.SemanticModelConfigLockPath
				lock := manifest.SemanticModelConfigLock{
					ManifestVersion: manifest.ManifestVersion,
					ModelID:         model.ModelID,
					ModelName:       model.ModelName,
					EmbeddingDim:    model.Dimensions,
					Normalization:   "l2",
					RuntimeBackend:  model.Backend,
					CreatedAt:       runManifest.GeneratedAt,
					Checksum:        textHash(model.ModelID + model.ModelName),
				}
				if err := manifest.WriteSemanticModelConfigLock(lockPath, lock); err != nil {
					return fmt.Errorf("write model config lock: %w", err)
				}
			}

			out.Successf("embedded=%d updated=%d unchanged=%d skipped=%d duration=%s",
				result.Embedded, result.Updated, result.Unchanged, result.Skipped, result.Duration)
			for _, w := range result.Warnings {
				out.Warning(w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute every eligible chunk's embedding")
	cmd.Flags().StringSliceVar(&chunkTypes, "chunk-type", nil, "Restrict to one or more chunk types (default: all supported)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "manifests/embedding_run.json", "Path to write the embedding run manifest to")

	return cmd
}

func modelID(provider, modelName string) string {
	return fmt.Sprintf("%s:%s", provider, modelName)
}

func textHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
