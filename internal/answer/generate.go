package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/pkg/models"
)

const (
	// NoMaterialMessage is returned when retrieval found nothing relevant;
	// the model is not called at all in that case.
	NoMaterialMessage = "I couldn't find any course material relevant to your question. " +
		"Try rephrasing it, or check that the material for this course has been uploaded."

	// ApologyMessage is returned when the model provider fails.
	ApologyMessage = "Sorry, I couldn't generate an answer right now. Please try again in a moment."

	systemPrompt = "You are a study assistant for course materials. " +
		"Answer only from the provided context. " +
		"If the context is insufficient to answer, say so explicitly. " +
		"Name the source material you based your answer on."
)

// Generator assembles a bounded context from ranked chunks plus recent
// conversation turns and asks the model for a grounded answer.
type Generator struct {
	Client        ai.Client
	ContextBudget int // characters of retrieved context
	HistoryTurns  int
}

// Generate builds the prompt and calls the model at low temperature.
// Provider failures come back as a fixed apology, never as an error.
func (g *Generator) Generate(ctx context.Context, question string, results []models.RetrievalResult, history []models.ChatTurn) string {
	if len(results) == 0 {
		return NoMaterialMessage
	}

	prompt := g.buildPrompt(question, results, history)

	out, err := g.Client.Complete(ctx, systemPrompt, prompt, 0.2, 1024)
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
		return ApologyMessage
	}
	if strings.TrimSpace(out) == "" {
		return ApologyMessage
	}
	return out
}

// buildPrompt concatenates [source: title] blocks in ranking order up to
// the context budget. A chunk that would overflow the budget is omitted
// whole, never cut mid-sentence.
func (g *Generator) buildPrompt(question string, results []models.RetrievalResult, history []models.ChatTurn) string {
	budget := g.ContextBudget
	if budget <= 0 {
		budget = 8000
	}

	var sb strings.Builder
	used := 0
	for _, r := range results {
		block := fmt.Sprintf("[source: %s]\n%s\n\n", r.Chunk.Title, r.Chunk.Content)
		if used+len(block) > budget {
			continue
		}
		sb.WriteString(block)
		used += len(block)
	}

	turns := g.HistoryTurns
	if turns <= 0 {
		turns = 3
	}
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, t := range history {
			sb.WriteString("Q: " + t.Question + "\n")
			sb.WriteString("A: " + t.Answer + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Question: " + question)
	return sb.String()
}
