package retrieval

import (
	"context"

	"github.com/PLeVasseur/iso26262-retrieval/internal/quality"
)

// QualityRunner adapts an Engine to internal/quality's Runner interface, so
// the validator can drive the same retrieval path a query caller uses.
type QualityRunner struct {
	Engine           *Engine
	Limit            int
	PinpointMaxUnits int
}

// Run executes query against r.Engine, translating the hydrated result set
// into the narrow RunOutput the evaluator scores against.
func (r QualityRunner) Run(ctx context.Context, query quality.SemanticEvalQuery, withPinpoint bool) (quality.RunOutput, error) {
	opts := Options{
		Limit:            r.Limit,
		WithPinpoint:     withPinpoint,
		PinpointMaxUnits: r.PinpointMaxUnits,
	}
	if query.PartFilter != nil {
		opts.Filter.Parts = map[int]struct{}{*query.PartFilter: {}}
	}

	results, err := r.Engine.Query(ctx, query.QueryText, opts)
	if err != nil {
		return quality.RunOutput{}, err
	}

	out := quality.RunOutput{
		RankedChunkIDs: make([]string, len(results)),
	}
	for i, res := range results {
		out.RankedChunkIDs[i] = res.ChunkID
	}
	if withPinpoint && len(results) > 0 {
		out.PinpointTopUnitChunkID = results[0].ChunkID
		out.PinpointFallbackUsed = results[0].PinpointFallbackUsed
	}
	return out, nil
}
