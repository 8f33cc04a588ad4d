package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/iso26262-retrieval/internal/retrieval"
)

// newQueryCmd creates the query command, the CLI surface for
// retrieval.Engine.Query: hybrid lexical+semantic retrieval, RRF fusion,
// and optional pinpoint/ancestor/descendant hydration.
func newQueryCmd() *cobra.Command {
	var limit int
	var jsonOutput bool
	var pinpoint bool
	var ancestors bool
	var descendants bool
	var partFilter []int
	var chunkTypeFilter []string

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a hybrid lexical+semantic query against the chunk store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			engine, err := buildEngine(ctx, st, embedder, modelID(cfg.Embeddings.Provider, embedder.ModelName()), embedder.Dimensions())
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}

			opts := retrieval.Options{
				Limit:            limit,
				RRFConstant:      cfg.Retrieval.RRFConstant,
				WithAncestors:    ancestors,
				WithDescendants:  descendants,
				WithPinpoint:     pinpoint,
				PinpointMaxUnits: cfg.Pinpoint.MaxUnits,
			}
			if len(partFilter) > 0 {
				opts.Filter.Parts = make(map[int]struct{}, len(partFilter))
				for _, p := range partFilter {
					opts.Filter.Parts[p] = struct{}{}
				}
			}
			if len(chunkTypeFilter) > 0 {
				opts.Filter.ChunkTypes = make(map[string]struct{}, len(chunkTypeFilter))
				for _, t := range chunkTypeFilter {
					opts.Filter.ChunkTypes[t] = struct{}{}
				}
			}

			results, err := engine.Query(ctx, args[0], opts)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%.4f %s] %s — %s\n", r.Rank, r.Score, r.MatchKind, r.Citation, r.Heading)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&pinpoint, "pinpoint", false, "Localize results to matching sub-chunk units")
	cmd.Flags().BoolVar(&ancestors, "ancestors", false, "Include ancestor breadcrumb nodes")
	cmd.Flags().BoolVar(&descendants, "descendants", false, "Include descendant subtree nodes")
	cmd.Flags().IntSliceVar(&partFilter, "part", nil, "Restrict to one or more document parts")
	cmd.Flags().StringSliceVar(&chunkTypeFilter, "chunk-type", nil, "Restrict to one or more chunk types")

	return cmd
}
