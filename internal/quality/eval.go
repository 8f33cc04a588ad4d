package quality

import (
	"context"
	"time"

	"github.com/PLeVasseur/iso26262-retrieval/internal/textutil"
)

// RunOutput is one retrieval-engine invocation's result, as the evaluator
// needs it: the ranked chunk IDs (for top-k hit / first-hit-rank) and, when
// pinpoint was requested, the top pinpoint unit's chunk and fallback state.
type RunOutput struct {
	RankedChunkIDs         []string
	PinpointTopUnitChunkID string
	PinpointFallbackUsed   bool
	PinpointMismatchCount  int
}

// Runner executes one SemanticEvalQuery against the retrieval engine,
// optionally with pinpoint localization enabled.
type Runner interface {
	Run(ctx context.Context, query SemanticEvalQuery, withPinpoint bool) (RunOutput, error)
}

// QueryEvalRecord is one query's scored outcome.
type QueryEvalRecord struct {
	QueryID               string
	Intent                string
	TopKHit               bool
	FirstHitRank          int // 0 when intent doesn't track rank or no hit
	IsTableQuery          bool
	PinpointTopUnitHit    bool
	PinpointFallbackUsed  bool
	PinpointMismatchCount int
	DeterminismMatch      bool
	OverheadDeltaMs       float64
}

// EvaluateQuery runs query three times: twice with pinpoint enabled (to
// score top-1 determinism) and once without (to score pinpoint's latency
// overhead), then scores the result against query.ExpectedChunkIDs.
func EvaluateQuery(ctx context.Context, runner Runner, query SemanticEvalQuery, topK int) (QueryEvalRecord, error) {
	startA := time.Now()
	runA, err := runner.Run(ctx, query, true)
	if err != nil {
		return QueryEvalRecord{}, err
	}
	durWithPinpoint := time.Since(startA)

	runB, err := runner.Run(ctx, query, true)
	if err != nil {
		return QueryEvalRecord{}, err
	}

	startC := time.Now()
	runC, err := runner.Run(ctx, query, false)
	if err != nil {
		return QueryEvalRecord{}, err
	}
	durWithoutPinpoint := time.Since(startC)

	expected := make(map[string]struct{}, len(query.ExpectedChunkIDs))
	for _, id := range query.ExpectedChunkIDs {
		expected[id] = struct{}{}
	}

	record := QueryEvalRecord{
		QueryID:               query.QueryID,
		Intent:                query.Intent,
		IsTableQuery:          textutil.LooksLikeTableReferenceQuery(query.QueryText),
		PinpointFallbackUsed:  runA.PinpointFallbackUsed,
		PinpointMismatchCount: runA.PinpointMismatchCount,
		DeterminismMatch:      runA.PinpointTopUnitChunkID == runB.PinpointTopUnitChunkID,
		OverheadDeltaMs:       float64(durWithPinpoint.Microseconds()-durWithoutPinpoint.Microseconds()) / 1000.0,
	}

	limit := topK
	if limit <= 0 || limit > len(runA.RankedChunkIDs) {
		limit = len(runA.RankedChunkIDs)
	}
	for i, id := range runA.RankedChunkIDs[:limit] {
		if _, ok := expected[id]; ok {
			record.TopKHit = true
			if countsFirstHitRank(query.Intent) && record.FirstHitRank == 0 {
				record.FirstHitRank = i + 1
			}
		}
	}

	if runA.PinpointTopUnitChunkID != "" {
		if _, ok := expected[runA.PinpointTopUnitChunkID]; ok {
			record.PinpointTopUnitHit = true
		}
	}

	_ = runC // retained only for its timing side effect above
	return record, nil
}

// EvaluateQueries runs EvaluateQuery over every query, collecting records in
// order; a failing query aborts the whole batch (fail-fast, per the
// no-partial-runs contract).
func EvaluateQueries(ctx context.Context, runner Runner, queries []SemanticEvalQuery, topK int) ([]QueryEvalRecord, error) {
	records := make([]QueryEvalRecord, 0, len(queries))
	for _, q := range queries {
		rec, err := EvaluateQuery(ctx, runner, q, topK)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
