package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads raw document bytes with bounded retries.
type Fetcher struct {
	HTTP       *http.Client
	MaxRetries int
	MaxBytes   int64
}

// transientError marks a failure worth retrying (timeout, 5xx, reset).
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Fetch downloads the document at locator. Transient failures are retried
// with exponential backoff up to MaxRetries attempts; exhaustion yields a
// *DownloadError. Local file paths are read directly.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		b, err := os.ReadFile(strings.TrimPrefix(locator, "file://"))
		if err != nil {
			return nil, &DownloadError{URL: locator, Err: err}
		}
		if f.MaxBytes > 0 && int64(len(b)) > f.MaxBytes {
			return nil, &DownloadError{URL: locator,
				Err: fmt.Errorf("document exceeds %d byte limit", f.MaxBytes)}
		}
		return b, nil
	}

	retries := f.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		b, err := f.fetchOnce(ctx, locator)
		if err != nil {
			var te *transientError
			if errors.As(err, &te) {
				log.Warn().Err(err).Str("url", locator).Int("attempt", attempt).Msg("download attempt failed")
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, &DownloadError{URL: locator, Err: err}
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		// Timeouts and connection resets surface here
		return nil, &transientError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, &transientError{err: fmt.Errorf("server error: %s", resp.Status)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	// Second guard against oversized documents; the validator's check only
	// saw the declared Content-Length.
	r := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		r = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &transientError{err: err}
	}
	if f.MaxBytes > 0 && int64(len(b)) > f.MaxBytes {
		return nil, fmt.Errorf("document exceeds %d byte limit", f.MaxBytes)
	}
	return b, nil
}

// NewHTTPClient builds the shared HTTP client used by the validator and
// fetcher with a per-attempt timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
