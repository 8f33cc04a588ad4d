// Package citation renders a hydrated candidate's standard reference into
// the fixed citation string a query result surfaces to a reader:
// "ISO <doc-family>-<part>:<year>, <reference-with-anchor>, PDF pages <range>".
//
// Generalized from an ISO-26262-only literal ("ISO 26262-{part}:{year}, ...")
// to a doc-family token derived from doc_id.
package citation

import (
	"fmt"
	"strings"
)

// Input is the subset of a hydrated candidate's fields citation rendering
// needs.
type Input struct {
	Family          string // e.g. "ISO26262" as parsed from doc_id
	Part            string
	Year            string
	Reference       string
	AnchorType      string // "", "marker", "paragraph"
	AnchorLabelNorm string
	PagePDFStart    *int
	PagePDFEnd      *int
}

// FormatPageRange renders a page span: "26-27" when both bounds are
// present and differ, a single number when they are present and equal or
// only one bound is present, and "unknown" when neither is present.
func FormatPageRange(start, end *int) string {
	switch {
	case start != nil && end != nil && *start == *end:
		return fmt.Sprintf("%d", *start)
	case start != nil && end != nil:
		return fmt.Sprintf("%d-%d", *start, *end)
	case start != nil:
		return fmt.Sprintf("%d", *start)
	case end != nil:
		return fmt.Sprintf("%d", *end)
	default:
		return "unknown"
	}
}

// RenderCitation formats in into the fixed citation string.
func RenderCitation(in Input) string {
	reference := in.Reference
	if reference == "" {
		reference = "(unreferenced chunk)"
	}

	referenceWithAnchor := reference
	switch {
	case in.AnchorType == "marker" && in.AnchorLabelNorm != "":
		base := MarkerBaseReference(reference)
		if strings.HasPrefix(in.AnchorLabelNorm, "NOTE") {
			referenceWithAnchor = fmt.Sprintf("%s, %s", base, in.AnchorLabelNorm)
		} else {
			referenceWithAnchor = fmt.Sprintf("%s(%s)", base, in.AnchorLabelNorm)
		}
	case in.AnchorType == "paragraph" && in.AnchorLabelNorm != "":
		base := MarkerBaseReference(reference)
		referenceWithAnchor = fmt.Sprintf("%s, para %s", base, in.AnchorLabelNorm)
	}

	return fmt.Sprintf("ISO %s-%s:%s, %s, PDF pages %s",
		docFamilyNumber(in.Family), in.Part, in.Year, referenceWithAnchor,
		FormatPageRange(in.PagePDFStart, in.PagePDFEnd))
}

// docFamilyNumber strips a leading "ISO" prefix from family (as parsed by
// store.ParseDocID, e.g. "ISO26262"), leaving the bare standard number
// ("26262") the rendered citation expects after "ISO ".
func docFamilyNumber(family string) string {
	if upper := strings.ToUpper(family); strings.HasPrefix(upper, "ISO") {
		return family[3:]
	}
	return family
}

// MarkerBaseReference strips the first suffix among " item ", " note ",
// " para ", " row " (first match wins, split-once semantics).
func MarkerBaseReference(reference string) string {
	for _, sep := range []string{" item ", " note ", " para ", " row "} {
		if idx := strings.Index(reference, sep); idx >= 0 {
			return reference[:idx]
		}
	}
	return reference
}
