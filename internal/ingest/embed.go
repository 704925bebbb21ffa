package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/openclass/coursepilot/internal/ai"
)

// Embedder turns chunk texts into vectors in sequential, rate-limited
// batches. Batches are intentionally serialized, not parallelized: the
// pacing between provider calls is backpressure against rate limits.
type Embedder struct {
	Client    ai.Client
	BatchSize int

	limiter *rate.Limiter
}

// NewEmbedder creates an embedder pacing one provider call per delay.
func NewEmbedder(client ai.Client, batchSize int, delay time.Duration) *Embedder {
	if batchSize <= 0 {
		batchSize = 10
	}
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Embedder{
		Client:    client,
		BatchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// EmbedAll embeds texts in input order. Any batch failure aborts the whole
// phase with an *EmbeddingError; no partial vector set is returned. On
// success the output count equals the input count.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.BatchSize {
		end := i + e.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchNum := i/e.BatchSize + 1

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &EmbeddingError{Batch: batchNum, Err: err}
		}

		out, err := e.Client.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, &EmbeddingError{Batch: batchNum, Err: err}
		}
		if len(out) != end-i {
			return nil, &EmbeddingError{Batch: batchNum,
				Err: fmt.Errorf("provider returned %d vectors for %d texts", len(out), end-i)}
		}
		vecs = append(vecs, out...)

		log.Debug().Int("batch", batchNum).Int("texts", end-i).Msg("embedded batch")
	}

	if len(vecs) != len(texts) {
		return nil, &EmbeddingError{Err: fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs))}
	}
	return vecs, nil
}
