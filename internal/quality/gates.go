package quality

// Stage A/B thresholds for the five pinpoint quality metrics; values may
// be tuned, the contract is their use as hard/soft gates.
const (
	PinpointAt1StageAMin = 0.70
	PinpointAt1StageBMin = 0.82

	TableAt1StageAMin = 0.70
	TableAt1StageBMin = 0.85

	FallbackRatioStageAMax = 0.35
	FallbackRatioStageBMax = 0.20

	DeterminismTop1StageAMin = 0.95
	DeterminismTop1StageBMin = 0.98

	OverheadP95StageAMaxMs = 60.0
	OverheadP95StageBMaxMs = 40.0
)

// wp2Result derives a non-pending QualityCheck result from the gate stage
// and two flags: hard_fail (the metric misses even the looser Stage A
// bound, a fail at any stage) and stage_b_fail (the metric misses the
// stricter Stage B bound but clears Stage A — a warn only once the run is
// being held to Stage B).
func wp2Result(stage GateStage, hardFail, stageBFail bool) CheckResult {
	if hardFail {
		return ResultFail
	}
	if stage == StageB && stageBFail {
		return ResultWarn
	}
	return ResultPass
}

// StageMetricCheck builds one QualityCheck: pending when metric is absent,
// otherwise the stage-derived result.
func StageMetricCheck(checkID, name string, stage GateStage, metric *float64, hardFail, stageBFail bool) QualityCheck {
	if metric == nil {
		return QualityCheck{CheckID: checkID, Name: name, Result: ResultPending}
	}
	return QualityCheck{CheckID: checkID, Name: name, Result: wp2Result(stage, hardFail, stageBFail)}
}

func minMetricCheck(checkID, name string, stage GateStage, metric *float64, stageAMin, stageBMin float64) QualityCheck {
	if metric == nil {
		return QualityCheck{CheckID: checkID, Name: name, Result: ResultPending}
	}
	hardFail := *metric < stageAMin
	stageBFail := *metric < stageBMin
	return StageMetricCheck(checkID, name, stage, metric, hardFail, stageBFail)
}

func maxMetricCheck(checkID, name string, stage GateStage, metric *float64, stageAMax, stageBMax float64) QualityCheck {
	if metric == nil {
		return QualityCheck{CheckID: checkID, Name: name, Result: ResultPending}
	}
	hardFail := *metric > stageAMax
	stageBFail := *metric > stageBMax
	return StageMetricCheck(checkID, name, stage, metric, hardFail, stageBFail)
}

// EvaluateGateChecks produces the five stage-gate QualityChecks for a
// Summary at the given stage.
func EvaluateGateChecks(stage GateStage, s Summary) []QualityCheck {
	return []QualityCheck{
		minMetricCheck("pinpoint_at_1", "pinpoint@1 relevance", stage, s.PinpointAt1Relevance, PinpointAt1StageAMin, PinpointAt1StageBMin),
		minMetricCheck("table_at_1", "table@1 accuracy", stage, s.TableRowAccuracyAt1, TableAt1StageAMin, TableAt1StageBMin),
		maxMetricCheck("fallback_ratio", "pinpoint fallback ratio", stage, s.FallbackRatio, FallbackRatioStageAMax, FallbackRatioStageBMax),
		minMetricCheck("determinism_top1", "top-1 determinism", stage, s.DeterminismTop1, DeterminismTop1StageAMin, DeterminismTop1StageBMin),
		maxMetricCheck("overhead_p95_ms", "pinpoint latency overhead p95", stage, s.LatencyOverheadP95Ms, OverheadP95StageAMaxMs, OverheadP95StageBMaxMs),
	}
}
