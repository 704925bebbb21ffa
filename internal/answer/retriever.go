package answer

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

// Retriever embeds a question and ranks stored chunks by cosine similarity.
// The query must be embedded by the same provider used at ingestion time so
// the vector spaces match.
type Retriever struct {
	Client     ai.Client
	Store      store.ChunkStore
	MaxResults int
	Threshold  float64
}

// Retrieve returns chunks with similarity >= Threshold, sorted by score
// descending with ties broken by ascending chunk index. An empty candidate
// set yields an empty result, not an error; the caller decides fallback
// messaging.
func (r *Retriever) Retrieve(ctx context.Context, question string, scope store.Scope) ([]models.RetrievalResult, error) {
	question = strings.TrimSpace(question)

	vecs, err := r.Client.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		log.Warn().Int("vectors", len(vecs)).Msg("unexpected embedding count for query")
		return []models.RetrievalResult{}, nil
	}
	qv := vecs[0]

	candidates, err := r.Store.QueryChunks(ctx, scope)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		score := CosineSimilarity(qv, c.Embedding)
		if score < r.Threshold {
			continue
		}
		results = append(results, models.RetrievalResult{Chunk: c, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})

	max := r.MaxResults
	if max <= 0 {
		max = 5
	}
	if len(results) > max {
		results = results[:max]
	}
	return results, nil
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|) in [-1, 1]. Mismatched
// lengths or a zero-norm vector yield 0, never NaN or a panic.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}
