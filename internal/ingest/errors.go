package ingest

import "fmt"

// Ingestion failures fall into a fixed taxonomy. Each stage has its own
// error type so the orchestrator can record where a run died; none of them
// escape past Pipeline.Ingest.

// ValidationError means the source failed pre-flight checks. Not retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// DownloadError means the download failed after retry exhaustion.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ParseError means every extraction strategy failed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("text extraction failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyContentError means cleaning left nothing to index.
type EmptyContentError struct{}

func (e *EmptyContentError) Error() string {
	return "no extractable text content"
}

// EmbeddingError means the embedding provider failed mid-run. The run is
// aborted before any vectors are persisted.
type EmbeddingError struct {
	Batch int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d failed: %v", e.Batch, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// PersistenceError means the chunk store write failed.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("chunk persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
