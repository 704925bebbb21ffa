package answer

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/pkg/models"
)

const maxSuggestions = 3

// fallbackSuggestions are served whenever the model yields nothing usable.
// The caller always receives a list from Suggest, never an error.
var fallbackSuggestions = []string{
	"Can you explain this topic in simpler terms?",
	"What are the key points I should remember?",
	"How does this relate to the rest of the course?",
}

// Suggester asks the model for follow-up questions related to an answer.
type Suggester struct {
	Client ai.Client
}

// Suggest returns up to 3 follow-up questions. With no sources it returns
// an empty list; on any provider or parsing failure it returns the fixed
// fallback set.
func (s *Suggester) Suggest(ctx context.Context, question, answer string, sources []models.Source) []string {
	if len(sources) == 0 {
		return []string{}
	}

	titles := make([]string, 0, len(sources))
	seen := map[string]bool{}
	for _, src := range sources {
		if !seen[src.Title] {
			seen[src.Title] = true
			titles = append(titles, src.Title)
		}
	}

	sys := "You suggest follow-up study questions. Reply with exactly 3 questions as a numbered list, nothing else."
	user := "The learner asked: " + question + "\n" +
		"They received this answer (based on " + strings.Join(titles, ", ") + "):\n" +
		answer + "\n\n" +
		"Suggest 3 related follow-up questions."

	out, err := s.Client.Complete(ctx, sys, user, 0.8, 256)
	if err != nil {
		log.Warn().Err(err).Msg("follow-up suggestion failed, using fallback")
		return append([]string(nil), fallbackSuggestions...)
	}

	suggestions := parseSuggestions(out)
	if len(suggestions) == 0 {
		return append([]string(nil), fallbackSuggestions...)
	}
	return suggestions
}

// parseSuggestions is a tolerant line parser: it keeps lines that look like
// numbered or bulleted list entries, strips the markers, drops entries that
// are too short to be questions, and caps at 3. Model output is
// unstructured text by design; this must never fail.
func parseSuggestions(out string) []string {
	var suggestions []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		stripped, ok := stripListMarker(line)
		if !ok {
			continue
		}
		if len(stripped) < 10 {
			continue
		}
		suggestions = append(suggestions, stripped)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

// stripListMarker removes a leading "1." / "2)" / "-" / "*" / "•" marker.
// Returns false for lines that are not list entries.
func stripListMarker(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	for _, marker := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}
