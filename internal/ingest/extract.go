package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// Extraction tries an ordered list of parsing strategies until one yields
// non-empty text. Real-world PDFs are frequently malformed, so a single
// parser is not acceptable; the strategy list is data so new fallbacks can
// be appended without touching control flow.

// Extracted is the raw extraction output.
type Extracted struct {
	Text      string
	PageCount int
}

type extractStrategy struct {
	name string
	fn   func(raw []byte) (Extracted, error)
}

// Extractor parses raw document bytes into text.
type Extractor struct {
	strategies []extractStrategy
}

// NewExtractor builds the default strategy chain: strict PDF extraction,
// then page-lenient PDF extraction, then a printable-text salvage pass.
func NewExtractor() *Extractor {
	return &Extractor{
		strategies: []extractStrategy{
			{name: "pdf", fn: extractPDF},
			{name: "pdf-lenient", fn: extractPDFLenient},
			{name: "text-salvage", fn: extractPrintable},
		},
	}
}

// Extract runs the strategy chain, stopping at the first strategy that
// yields non-empty text. If all fail it returns a *ParseError.
func (e *Extractor) Extract(raw []byte) (Extracted, error) {
	var errs []string
	for _, s := range e.strategies {
		out, err := s.fn(raw)
		if err != nil {
			log.Debug().Err(err).Str("strategy", s.name).Msg("extraction strategy failed")
			errs = append(errs, s.name+": "+err.Error())
			continue
		}
		if strings.TrimSpace(out.Text) == "" {
			errs = append(errs, s.name+": empty text")
			continue
		}
		return out, nil
	}
	return Extracted{}, &ParseError{Err: errors.New(strings.Join(errs, "; "))}
}

// extractPDF extracts text from every page and fails if any page fails.
func extractPDF(raw []byte) (Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Extracted{}, fmt.Errorf("open PDF: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Extracted{}, fmt.Errorf("page %d: %w", i, err)
		}
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return Extracted{Text: sb.String(), PageCount: numPages}, nil
}

// extractPDFLenient extracts what it can, skipping pages that fail to parse.
func extractPDFLenient(raw []byte) (Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Extracted{}, fmt.Errorf("open PDF: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("skipping unparseable page")
			continue
		}
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return Extracted{Text: sb.String(), PageCount: numPages}, nil
}

// extractPrintable salvages runs of printable text from arbitrary bytes.
// This is the last resort for plain-text uploads and PDFs the parser
// cannot open at all.
func extractPrintable(raw []byte) (Extracted, error) {
	const minRun = 4

	var sb strings.Builder
	var run []rune
	flush := func() {
		s := strings.TrimSpace(string(run))
		if len(s) >= minRun {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(s)
		}
		run = run[:0]
	}

	for i := 0; i < len(raw); {
		ch, size := utf8.DecodeRune(raw[i:])
		if ch == utf8.RuneError && size == 1 {
			flush()
			i++
			continue
		}
		if ch == '\n' || ch == '\t' || unicode.IsPrint(ch) {
			run = append(run, ch)
		} else {
			flush()
		}
		i += size
	}
	flush()

	return Extracted{Text: sb.String(), PageCount: 0}, nil
}
