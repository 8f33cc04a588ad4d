// Package textutil provides the whitespace, tokenization, and query-intent
// predicates shared by the lexical retriever, the pinpoint engine, and the
// quality validator.
package textutil

import (
	"regexp"
	"sort"
	"strings"
)

// StopWords is the pinpoint tokenizer's stopword list.
var StopWords = buildStopWordSet([]string{
	"a", "an", "and", "as", "at", "by", "concept", "concerning", "for",
	"from", "guidance", "in", "into", "of", "on", "or", "related",
	"requirement", "requirements", "table", "that", "the", "to", "with",
})

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CondenseWhitespace collapses all runs of whitespace to a single space and
// trims the ends.
func CondenseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

var allDigits = regexp.MustCompile(`^[0-9]+$`)

// TokenizePinpointValue lowercases s, splits on any non-alphanumeric run,
// drops empty tokens, single-character tokens that are not all-digit, and
// stopwords, then dedupes and sorts the result.
func TokenizePinpointValue(s string) []string {
	lower := strings.ToLower(s)
	raw := nonAlphanumeric.Split(lower, -1)

	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, tok := range raw {
		if tok == "" {
			continue
		}
		if len(tok) == 1 && !allDigits.MatchString(tok) {
			continue
		}
		if _, stop := StopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}

	sort.Strings(out)
	return out
}

var clausePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)+$`)

// IsExactIntentQuery reports whether q (after trim+lowercase) names a
// specific table, annex, or clause reference.
func IsExactIntentQuery(q string) bool {
	norm := strings.ToLower(strings.TrimSpace(q))
	if norm == "" {
		return false
	}

	fields := strings.Fields(norm)

	if len(fields) >= 2 && fields[0] == "table" && isAllASCIIDigit(fields[1]) {
		return true
	}
	if len(fields) >= 2 && fields[0] == "annex" && isAllASCIIAlpha(fields[1]) {
		return true
	}
	if len(fields) >= 1 && clausePattern.MatchString(fields[0]) {
		return true
	}

	return false
}

// LooksLikeTableReferenceQuery reports whether q is exactly two whitespace
// tokens, "table" followed by an all-digit token.
func LooksLikeTableReferenceQuery(q string) bool {
	norm := strings.ToLower(strings.TrimSpace(q))
	fields := strings.Fields(norm)
	return len(fields) == 2 && fields[0] == "table" && isAllASCIIDigit(fields[1])
}

// QueryMentionsTableContext reports whether the lowercased query mentions
// "table", " row ", or " cell ".
func QueryMentionsTableContext(q string) bool {
	lower := strings.ToLower(q)
	return strings.Contains(lower, "table") ||
		strings.Contains(lower, " row ") ||
		strings.Contains(lower, " cell ")
}

func isAllASCIIDigit(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAllASCIIAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
