package answer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

// Service answers learner questions against ingested course material.
// The query path performs no writes and is safe under unbounded read
// concurrency.
type Service struct {
	retriever *Retriever
	generator *Generator
	suggester *Suggester
}

// Config bounds retrieval and prompt assembly.
type Config struct {
	MaxResults    int
	Threshold     float64
	ContextBudget int
	HistoryTurns  int
}

// NewService creates an answer service with the provided AI client and store.
func NewService(client ai.Client, chunks store.ChunkStore, cfg Config) *Service {
	return &Service{
		retriever: &Retriever{
			Client:     client,
			Store:      chunks,
			MaxResults: cfg.MaxResults,
			Threshold:  cfg.Threshold,
		},
		generator: &Generator{
			Client:        client,
			ContextBudget: cfg.ContextBudget,
			HistoryTurns:  cfg.HistoryTurns,
		},
		suggester: &Suggester{Client: client},
	}
}

// Ask retrieves relevant chunks, generates a grounded answer with citations
// and attaches follow-up suggestions. A learner always receives an
// answer-shaped response; retrieval failures degrade to the apology
// message instead of surfacing as errors.
func (s *Service) Ask(ctx context.Context, question string, history []models.ChatTurn, scope store.Scope) models.Answer {
	results, err := s.retriever.Retrieve(ctx, question, scope)
	if err != nil {
		log.Error().Err(err).Str("course", scope.CourseID).Msg("retrieval failed")
		return models.Answer{
			Answer:      ApologyMessage,
			Sources:     []models.Source{},
			Suggestions: []string{},
		}
	}

	text := s.generator.Generate(ctx, question, results, history)

	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{
			MaterialID: r.Chunk.MaterialID,
			Title:      r.Chunk.Title,
			ChunkIndex: r.Chunk.ChunkIndex,
			Score:      r.Score,
		})
	}

	suggestions := s.suggester.Suggest(ctx, question, text, sources)

	return models.Answer{
		Answer:      text,
		Sources:     sources,
		Suggestions: suggestions,
	}
}
