// Package quality implements the semantic quality validator: gold-driven
// evaluation, exact-intent probe synthesis, pinpoint accuracy/determinism/
// overhead metrics, stage-gated pass/fail checks, and the two statistical
// tests (sign test, bootstrap CI) used to compare two evaluation runs.
//
// Grounded on original_source/src/commands/validate/semantic_quality*.rs:
// semantic_quality_exact.rs (probe synthesis), semantic_quality_stats.rs
// (sign test + bootstrap CI), semantic_quality_pinpoint.rs (stage-gate
// thresholds), semantic_quality_shared.rs (stage_metric_check).
package quality

// GateStage is the successive quality-threshold stage a run is evaluated
// against.
type GateStage string

const (
	StageA GateStage = "stage_a"
	StageB GateStage = "stage_b"
)

// CheckResult is the outcome of one QualityCheck.
type CheckResult string

const (
	ResultPending CheckResult = "pending"
	ResultPass    CheckResult = "pass"
	ResultFail    CheckResult = "fail"
	ResultWarn    CheckResult = "warn"
)

// QualityCheck is one named stage-gate outcome.
type QualityCheck struct {
	CheckID string
	Name    string
	Result  CheckResult
}

// GoldReference is one row of the hand-curated gold set a validation run is
// scored against. The target_*/canonical_ref/ref_resolution_mode fields are
// optional and absent on legacy gold rows.
type GoldReference struct {
	ID                  string
	DocID               string
	Reference           string
	ExpectedPagePattern string
	MustMatchTerms      []string
	Status              string
	TargetID            string
	TargetRefRaw        string
	CanonicalRef        string
	RefResolutionMode   string
}

// SemanticEvalQuery is one query the evaluator runs against the retrieval
// engine, whether hand-authored or synthesized from a gold reference.
type SemanticEvalQuery struct {
	QueryID          string
	QueryText        string
	Intent           string
	MustHitTop1      bool
	PartFilter       *int
	ExpectedChunkIDs []string
}

// Intent values recognized by first-hit-rank scoring.
const (
	IntentExactRef      = "exact_ref"
	IntentExactRefProbe = "exact_ref_probe"
	IntentKeyword       = "keyword"
	IntentTableIntent   = "table_intent"
)

// countsFirstHitRank reports whether intent is one of the three intents the
// evaluator tracks a first-hit-rank for.
func countsFirstHitRank(intent string) bool {
	switch intent {
	case IntentExactRef, IntentKeyword, IntentTableIntent:
		return true
	default:
		return false
	}
}
