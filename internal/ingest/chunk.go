package ingest

import (
	"strings"
)

const (
	// Fragments shorter than this after sentence splitting are noise
	// (stray headers, page numbers, orphaned punctuation).
	minFragmentLen = 10
	// Chunks shorter than this carry too little meaning to embed.
	minChunkLen = 50
	// Sentences longer than this fraction of the chunk size get split
	// further on clause punctuation.
	longUnitFraction = 0.8
)

// Chunker splits cleaned text into overlapping, size-bounded segments.
type Chunker struct {
	ChunkSize int // characters, soft bound
	Overlap   int // characters, approximated in whole words
}

// Split returns ordered chunk contents. For non-empty input it never
// returns an empty slice: if nothing survives the minimum-content
// threshold the whole text becomes a single chunk.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	units := c.units(text)

	var chunks []string
	var buf strings.Builder
	seeded := false // buffer holds only the overlap seed, no new units yet

	flush := func() {
		s := strings.TrimSpace(buf.String())
		if len(s) > minChunkLen {
			chunks = append(chunks, s)
			buf.Reset()
			seed := overlapTail(s, c.Overlap)
			if seed != "" {
				buf.WriteString(seed)
				seeded = true
			}
		} else {
			buf.Reset()
			seeded = false
		}
	}

	for _, u := range units {
		if buf.Len() > 0 && !seeded && buf.Len()+1+len(u) > c.ChunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(u)
		seeded = false
	}
	if s := strings.TrimSpace(buf.String()); len(s) > minChunkLen && !seeded {
		chunks = append(chunks, s)
	}

	// Never succeed with zero chunks for non-empty input.
	if len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// units splits text into sentence-like pieces, breaking very long
// sentences on clause punctuation when that yields more than one usable
// part. A long sentence that cannot be split is kept intact; content is
// never silently dropped.
func (c *Chunker) units(text string) []string {
	longLimit := int(float64(c.ChunkSize) * longUnitFraction)

	var units []string
	for _, s := range splitSentences(text) {
		if len(s) < minFragmentLen {
			continue
		}
		if len(s) <= longLimit {
			units = append(units, s)
			continue
		}
		parts := splitClauses(s)
		if len(parts) > 1 {
			units = append(units, parts...)
		} else {
			units = append(units, s)
		}
	}
	return units
}

// splitSentences breaks text on sentence-terminal punctuation, keeping the
// terminator attached to its sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// splitClauses breaks a long sentence on commas and semicolons, dropping
// parts too short to be meaningful.
func splitClauses(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == ',' || r == ';' {
			p := strings.TrimSpace(s[start : i+1])
			if len(p) >= minFragmentLen {
				out = append(out, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(s[start:]); len(p) >= minFragmentLen {
		out = append(out, p)
	}
	return out
}

// overlapTail returns roughly the last `overlap` characters of s, taken as
// whole words. The word-count approximation of the character budget is a
// deliberate simplification: overlap is approximate, not exact.
func overlapTail(s string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	total := 0
	for _, w := range words {
		total += len(w)
	}
	avg := total / len(words)
	k := overlap / (avg + 1)
	if k < 1 {
		k = 1
	}
	if k >= len(words) {
		return s
	}
	return strings.Join(words[len(words)-k:], " ")
}
