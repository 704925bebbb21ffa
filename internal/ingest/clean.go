package ingest

import (
	"regexp"
	"strings"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRuns = regexp.MustCompile(`\n{2,}`)
	blankEdges  = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

// Clean normalizes extracted text: runs of whitespace collapse to single
// spaces, runs of newlines to single newlines, and the result is trimmed.
// An empty result is an *EmptyContentError since ingestion cannot proceed
// with nothing to index.
func Clean(text string) (string, error) {
	s := spaceRuns.ReplaceAllString(text, " ")
	s = blankEdges.ReplaceAllString(s, "\n")
	s = newlineRuns.ReplaceAllString(s, "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &EmptyContentError{}
	}
	return s, nil
}
