package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Validator probes a source locator before any expensive work begins.
// The probe is read-only: a HEAD request for http(s) sources, a stat for
// local files.
type Validator struct {
	HTTP     *http.Client
	MaxBytes int64
}

// acceptedTypes are content types we know how to extract text from.
// Octet-stream is allowed because many servers mislabel PDFs.
var acceptedTypes = []string{
	"application/pdf",
	"application/octet-stream",
	"text/plain",
}

// Validate checks the locator is reachable, correctly typed, and within the
// size ceiling. A failure is always a *ValidationError.
func (v *Validator) Validate(ctx context.Context, locator string) error {
	if strings.TrimSpace(locator) == "" {
		return &ValidationError{Reason: "empty source locator"}
	}

	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		return v.validateLocal(strings.TrimPrefix(locator, "file://"))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Reason: "unsupported scheme: " + u.Scheme}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, locator, nil)
	if err != nil {
		return &ValidationError{Reason: "invalid URL: " + err.Error()}
	}
	resp, err := v.HTTP.Do(req)
	if err != nil {
		return &ValidationError{Reason: "source unreachable: " + err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ValidationError{Reason: "source returned status " + resp.Status}
	}

	ct := resp.Header.Get("Content-Type")
	if base, _, found := strings.Cut(ct, ";"); found {
		ct = base
	}
	ct = strings.TrimSpace(strings.ToLower(ct))
	if ct != "" && !accepted(ct) {
		return &ValidationError{Reason: "unsupported content type: " + ct}
	}

	if v.MaxBytes > 0 && resp.ContentLength > v.MaxBytes {
		return &ValidationError{Reason: fmt.Sprintf("document too large: %d bytes (limit %d)",
			resp.ContentLength, v.MaxBytes)}
	}
	return nil
}

func (v *Validator) validateLocal(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Reason: "file not accessible: " + err.Error()}
	}
	if fi.IsDir() {
		return &ValidationError{Reason: "source is a directory: " + path}
	}
	if v.MaxBytes > 0 && fi.Size() > v.MaxBytes {
		return &ValidationError{Reason: fmt.Sprintf("document too large: %d bytes (limit %d)",
			fi.Size(), v.MaxBytes)}
	}
	return nil
}

func accepted(ct string) bool {
	for _, t := range acceptedTypes {
		if ct == t {
			return true
		}
	}
	return false
}
