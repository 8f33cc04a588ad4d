package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/iso26262-retrieval/internal/manifest"
	"github.com/PLeVasseur/iso26262-retrieval/internal/output"
	"github.com/PLeVasseur/iso26262-retrieval/internal/quality"
	"github.com/PLeVasseur/iso26262-retrieval/internal/retrieval"
)

// newValidateCmd creates the validate command: runs the semantic quality
// validator (gold-driven evaluation, exact-intent probe synthesis, stage
// gate checks) and writes a pinpoint quality report.
func newValidateCmd() *cobra.Command {
	var goldPath string
	var queriesPath string
	var stage string
	var topK int
	var outPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the semantic quality validator against a gold reference set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if stage == "" {
				stage = cfg.Quality.Stage
			}
			gateStage := quality.StageA
			if stage == "B" {
				gateStage = quality.StageB
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
			runner := retrieval.QualityRunner{Engine: engine, Limit: topK, PinpointMaxUnits: cfg.Pinpoint.MaxUnits}

			queries, err := loadSemanticEvalQueries(queriesPath)
			if err != nil {
				return fmt.Errorf("load eval queries: %w", err)
			}

			highConfidence := 0
			if goldPath != "" {
				gold, err := loadGoldReferences(goldPath)
				if err != nil {
					return fmt.Errorf("load gold references: %w", err)
				}
				probes, err := quality.BuildExactIntentProbeQueries(ctx, st, gold)
				if err != nil {
					return fmt.Errorf("build exact-intent probes: %w", err)
				}
				queries = append(queries, probes...)
				highConfidence = len(probes)
			}

			records, err := quality.EvaluateQueries(ctx, runner, queries, topK)
			if err != nil {
				return fmt.Errorf("evaluate queries: %w", err)
			}

			summary := quality.Summarize(records, highConfidence)
			checks := quality.EvaluateGateChecks(gateStage, summary)

			report := manifest.PinpointQualityReport{
				ManifestVersion:             manifest.ManifestVersion,
				Source:                      manifest.PinpointEvalManifestSource,
				GeneratedAt:                 time.Now().UTC().Format(time.RFC3339),
				Stage:                       string(gateStage),
				TotalQueries:                summary.TotalQueries,
				TableQueries:                summary.TableQueries,
				HighConfidenceQueries:       summary.HighConfidenceQueries,
				PinpointAt1Relevance:        summary.PinpointAt1Relevance,
				TableRowAccuracyAt1:         summary.TableRowAccuracyAt1,
				FallbackRatio:               summary.FallbackRatio,
				DeterminismTop1:             summary.DeterminismTop1,
				LatencyOverheadP95Ms:        summary.LatencyOverheadP95Ms,
				CitationAnchorMismatchCount: summary.CitationAnchorMismatchCount,
				Warnings:                    summary.Warnings,
			}

			if outPath != "" {
				if err := manifest.WritePinpointQualityReport(outPath, report); err != nil {
					return fmt.Errorf("write quality report: %w", err)
				}
			}

			out := output.New(cmd.OutOrStdout())
			failed := false
			for _, c := range checks {
				switch c.Result {
				case quality.ResultFail:
					out.Errorf("%s %s: fail", c.CheckID, c.Name)
					failed = true
				case quality.ResultWarn:
					out.Warningf("%s %s: warn", c.CheckID, c.Name)
				case quality.ResultPass:
					out.Successf("%s %s: pass", c.CheckID, c.Name)
				default:
					out.Status("", fmt.Sprintf("%s %s: pending", c.CheckID, c.Name))
				}
			}
			if failed {
				return fmt.Errorf("one or more stage gate checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&goldPath, "gold", "", "Path to a JSON gold reference set ([]quality.GoldReference)")
	cmd.Flags().StringVar(&queriesPath, "queries", "", "Path to a JSON hand-authored eval query set ([]quality.SemanticEvalQuery)")
	cmd.Flags().StringVar(&stage, "stage", "", "Gate stage to evaluate against: A or B (default: config quality.stage)")
	cmd.Flags().IntVar(&topK, "top-k", 5, "Top-K cutoff for hit scoring")
	cmd.Flags().StringVar(&outPath, "out", manifest.PinpointQualityReportFilename, "Path to write the quality report JSON to")

	return cmd
}

func loadGoldReferences(path string) ([]quality.GoldReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gold []quality.GoldReference
	if err := json.Unmarshal(data, &gold); err != nil {
		return nil, err
	}
	return gold, nil
}

func loadSemanticEvalQueries(path string) ([]quality.SemanticEvalQuery, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var queries []quality.SemanticEvalQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}
