// Package manifest writes the JSON run manifests and lockfiles the core
// emits as its external interface: the embedding run manifest, the
// semantic model config lock, and the pinpoint quality report. For the
// pinpoint evaluation manifest it defines only the filename, and for the
// citation parity baseline lockfile only mode/path parsing and the
// metadata-only guard; it has no writer for either.
//
// Grounded on original_source/src/commands/embed/types.rs
// (EmbeddingRunManifest, SemanticModelConfigLock field sets) and this
// repo's --json output convention for info commands (json.NewEncoder
// with two-space indent).
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/PLeVasseur/iso26262-retrieval/internal/embed"
	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
)

// EmbeddingDBSchemaVersion is the chunk-store schema version an embedding
// run manifest records itself against.
const EmbeddingDBSchemaVersion = "0.4.0"

// SemanticModelConfigLockPath is the default path for the model config
// lockfile, relative to a run's manifest directory.
const SemanticModelConfigLockPath = "manifests/semantic_model_config.lock.json"

// PinpointEvalManifestFilename and PinpointQualityReportFilename are the
// fixed filenames a pinpoint validation run writes under its manifest
// directory.
const (
	PinpointEvalManifestFilename  = "pinpoint_eval_queries.json"
	PinpointQualityReportFilename = "pinpoint_quality_report.json"
	PinpointEvalManifestSource    = "validate-pinpoint-bootstrap-v1"
)

// ManifestVersion is the current schema version stamped into every
// manifest/lockfile this package writes.
const ManifestVersion = 1

// EmbeddingRunManifest reports one embedding pipeline run's inputs,
// outputs, and outcome.
type EmbeddingRunManifest struct {
	ManifestVersion    uint32   `json:"manifest_version"`
	RunID              string   `json:"run_id"`
	GeneratedAt        string   `json:"generated_at"`
	ModelID            string   `json:"model_id"`
	ModelName          string   `json:"model_name"`
	EmbeddingDim       int      `json:"embedding_dim"`
	Normalization      string   `json:"normalization"`
	Backend            string   `json:"backend"`
	DBSchemaVersion    string   `json:"db_schema_version"`
	RefreshMode        string   `json:"refresh_mode"`
	ChunkTypeFilter    []string `json:"chunk_type_filter"`
	EligibleChunks     int      `json:"eligible_chunks"`
	EmbeddedChunks     int      `json:"embedded_chunks"`
	UpdatedChunks      int      `json:"updated_chunks"`
	SkippedEmptyChunks int      `json:"skipped_empty_chunks"`
	StaleRowsBefore    int      `json:"stale_rows_before"`
	StaleRowsAfter     int      `json:"stale_rows_after"`
	BatchSize          int      `json:"batch_size"`
	DurationMs         int64    `json:"duration_ms"`
	Status             string   `json:"status"`
	Warnings           []string `json:"warnings"`
}

// SemanticModelConfigLock freezes the embedding model identity a chunk
// store's vectors were generated against.
type SemanticModelConfigLock struct {
	ManifestVersion uint32 `json:"manifest_version"`
	ModelID         string `json:"model_id"`
	ModelName       string `json:"model_name"`
	EmbeddingDim    int    `json:"embedding_dim"`
	Normalization   string `json:"normalization"`
	RuntimeBackend  string `json:"runtime_backend"`
	CreatedAt       string `json:"created_at"`
	Checksum        string `json:"checksum"`
}

// PinpointUnitEval is one judged pinpoint unit in a quality report.
type PinpointUnitEval struct {
	UnitID                   string  `json:"unit_id"`
	UnitType                 string  `json:"unit_type"`
	Score                    float64 `json:"score"`
	TextPreview              string  `json:"text_preview"`
	RowKey                   string  `json:"row_key,omitempty"`
	TokenSignature           string  `json:"token_signature"`
	CitationAnchorCompatible bool    `json:"citation_anchor_compatible"`
}

// PinpointQueryEval is one evaluated pinpoint probe's top result.
type PinpointQueryEval struct {
	QueryID      string            `json:"query_id"`
	TopUnit      *PinpointUnitEval `json:"top_unit,omitempty"`
	FallbackUsed bool              `json:"fallback_used"`
}

// PinpointQualityReport is the full pinpoint_quality_report.json payload.
type PinpointQualityReport struct {
	ManifestVersion             uint32              `json:"manifest_version"`
	Source                      string              `json:"source"`
	GeneratedAt                 string              `json:"generated_at"`
	Stage                       string              `json:"stage"`
	TotalQueries                int                 `json:"total_queries"`
	TableQueries                int                 `json:"table_queries"`
	HighConfidenceQueries       int                 `json:"high_confidence_queries"`
	PinpointAt1Relevance        *float64            `json:"pinpoint_at_1_relevance"`
	TableRowAccuracyAt1         *float64            `json:"table_row_accuracy_at_1"`
	FallbackRatio               *float64            `json:"fallback_ratio"`
	DeterminismTop1             *float64            `json:"determinism_top1"`
	LatencyOverheadP95Ms        *float64            `json:"latency_overhead_p95_ms"`
	CitationAnchorMismatchCount int                 `json:"citation_anchor_mismatch_count"`
	Queries                     []PinpointQueryEval `json:"queries"`
	Warnings                    []string            `json:"warnings"`
}

// fileLock is the cross-process write lock manifests take while writing,
// reusing internal/embed's flock-backed FileLock rather than a second
// locking implementation.
func fileLock(dir string) *embed.FileLock {
	return embed.NewFileLock(dir)
}

// writeJSON writes v as indented JSON to path, taking a cross-process
// lock on path's directory and writing via a temp file + rename so
// concurrent readers never observe a partial write.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "create manifest directory", err)
	}

	lock := fileLock(dir)
	if err := lock.Lock(); err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "lock manifest directory", err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return amerrors.New(amerrors.ErrCodeStoreWrite, "create temp manifest file", err)
	}
	tmpPath := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return amerrors.New(amerrors.ErrCodeStoreWrite, "encode manifest", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return amerrors.New(amerrors.ErrCodeStoreWrite, "close temp manifest file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return amerrors.New(amerrors.ErrCodeStoreWrite, "rename manifest into place", err)
	}
	return nil
}

// WriteEmbeddingRunManifest writes m to path.
func WriteEmbeddingRunManifest(path string, m EmbeddingRunManifest) error {
	return writeJSON(path, m)
}

// WriteSemanticModelConfigLock writes l to path (typically
// SemanticModelConfigLockPath under the run's manifest directory).
func WriteSemanticModelConfigLock(path string, l SemanticModelConfigLock) error {
	return writeJSON(path, l)
}

// WritePinpointQualityReport writes r to path (typically
// PinpointQualityReportFilename under the run's manifest directory).
func WritePinpointQualityReport(path string, r PinpointQualityReport) error {
	return writeJSON(path, r)
}
