package manifest

import (
	"strings"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
)

// CitationBaselineMode selects whether a citation-parity run refreshes its
// recorded baseline or merely checks against it.
type CitationBaselineMode string

const (
	// CitationBaselineBootstrap (re)writes the baseline lockfile from the
	// current run's output.
	CitationBaselineBootstrap CitationBaselineMode = "bootstrap"
	// CitationBaselineVerify checks the current run against the existing
	// baseline lockfile without modifying it. The default.
	CitationBaselineVerify CitationBaselineMode = "verify"
)

// DefaultCitationBaselinePath is where the citation parity baseline
// lockfile lives when no override is given.
const DefaultCitationBaselinePath = "manifests/citation_parity_baseline.lock.json"

// ParseCitationBaselineMode maps a raw flag value to a CitationBaselineMode.
// "bootstrap" and "rotate" (case-insensitive) both select Bootstrap; a nil
// or unrecognized value selects Verify.
func ParseCitationBaselineMode(raw *string) CitationBaselineMode {
	if raw == nil {
		return CitationBaselineVerify
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "bootstrap", "rotate":
		return CitationBaselineBootstrap
	default:
		return CitationBaselineVerify
	}
}

// ParseCitationBaselinePath resolves a raw --baseline-path flag value to
// the lockfile path to use, defaulting to DefaultCitationBaselinePath.
func ParseCitationBaselinePath(raw *string) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return DefaultCitationBaselinePath
	}
	return *raw
}

// textBearingKeys are payload keys the citation baseline lockfile's schema
// guard forbids: the lockfile records metadata only, never chunk/document
// text, so a baseline diff can never leak corpus content.
var textBearingKeys = []string{"text", "table_md", "snippet", "heading"}

// EnsureCitationBaselineMetadataOnly walks payload (as decoded from JSON:
// map[string]any / []any / scalars) and returns an error naming the first
// forbidden text-bearing key it finds at any depth.
func EnsureCitationBaselineMetadataOnly(payload any) error {
	if key, found := findTextBearingKey(payload); found {
		return amerrors.New(amerrors.ErrCodeLockfileInvalid, "citation baseline payload contains forbidden text-bearing key: "+key, nil)
	}
	return nil
}

func findTextBearingKey(value any) (string, bool) {
	switch v := value.(type) {
	case map[string]any:
		for key, nested := range v {
			for _, forbidden := range textBearingKeys {
				if strings.EqualFold(key, forbidden) {
					return key, true
				}
			}
			if key, found := findTextBearingKey(nested); found {
				return key, found
			}
		}
	case []any:
		for _, item := range v {
			if key, found := findTextBearingKey(item); found {
				return key, found
			}
		}
	}
	return "", false
}
