package cmd

import (
	"context"
	"fmt"

	"github.com/PLeVasseur/iso26262-retrieval/internal/config"
	"github.com/PLeVasseur/iso26262-retrieval/internal/embed"
	"github.com/PLeVasseur/iso26262-retrieval/internal/lexical"
	"github.com/PLeVasseur/iso26262-retrieval/internal/retrieval"
	"github.com/PLeVasseur/iso26262-retrieval/internal/semantic"
	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

// loadConfig resolves the effective configuration for a CLI invocation:
// project root discovery, three-tier merge, and validation.
func loadConfig() (*config.Config, error) {
	root := "."
	if configPath != "" {
		root = configPath
	} else if discovered, err := config.FindProjectRoot("."); err == nil {
		root = discovered
	}
	return config.Load(root)
}

// openStore opens the chunk store at cfg's configured path.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Store.DBPath)
}

// openEmbedder constructs the embedder cfg's Embeddings section selects.
func openEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	return embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
}

// buildEngine assembles a retrieval.Engine over st's current chunk/embedding
// rows for the given model, mirroring internal/retrieval's own test
// fixture wiring (lexical retriever over all rows, semantic retriever over
// that model's embedding rows, hydration against the same store).
func buildEngine(ctx context.Context, st *store.Store, embedder embed.Embedder, modelID string, dimensions int) (*retrieval.Engine, error) {
	rows, err := st.LoadChunkRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunk rows: %w", err)
	}

	lex, err := lexical.NewRetriever(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("build lexical retriever: %w", err)
	}

	embRows, err := st.AllEmbeddings(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load embedding rows: %w", err)
	}

	fields := make(map[string]store.RetrievedFields, len(rows))
	for _, r := range rows {
		fields[r.ChunkID] = store.RetrievedFields{
			ChunkID:          r.ChunkID,
			DocID:            r.DocID,
			ChunkType:        r.ChunkType,
			Ref:              r.Ref,
			Heading:          r.Heading,
			PagePDFStart:     r.PagePDFStart,
			PagePDFEnd:       r.PagePDFEnd,
			SourceHash:       r.SourceHash,
			Snippet:          r.Text,
			OriginNodeID:     r.OriginNodeID,
			LeafNodeType:     r.LeafNodeType,
			AncestorPath:     r.AncestorPath,
			CitationAnchorID: r.CitationAnchorID,
			AnchorType:       r.AnchorType,
			AnchorLabelRaw:   r.AnchorLabelRaw,
			AnchorLabelNorm:  r.AnchorLabelNorm,
		}
	}

	sem, err := semantic.NewRetriever(modelID, dimensions, embRows, fields)
	if err != nil {
		return nil, fmt.Errorf("build semantic retriever: %w", err)
	}

	return retrieval.New(lex, sem, embedder, st), nil
}
