package store

import (
	"regexp"
	"strconv"
)

// docIDPattern decomposes a doc_id like "ISO26262-6-2018" into a standard
// family ("ISO26262"), a part number, and a year.
var docIDPattern = regexp.MustCompile(`^([A-Za-z]+[0-9]*)-([0-9]+)-([0-9]{4})$`)

// DocIDParts is the decomposition of a doc_id into its standard family,
// part number, and publication year.
type DocIDParts struct {
	Family string
	Part   int
	Year   int
}

// ParseDocID decomposes a doc_id of the form "<family>-<part>-<year>" (e.g.
// "ISO26262-6-2018"). ok is false when doc_id does not match this shape.
func ParseDocID(docID string) (parts DocIDParts, ok bool) {
	m := docIDPattern.FindStringSubmatch(docID)
	if m == nil {
		return DocIDParts{}, false
	}

	part, err := strconv.Atoi(m[2])
	if err != nil {
		return DocIDParts{}, false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return DocIDParts{}, false
	}

	return DocIDParts{Family: m[1], Part: part, Year: year}, true
}
