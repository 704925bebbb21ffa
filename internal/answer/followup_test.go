package answer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

func sampleSources() []models.Source {
	return []models.Source{
		{MaterialID: "mat-1", Title: "Lecture 1", ChunkIndex: 0, Score: 0.95},
		{MaterialID: "mat-1", Title: "Lecture 1", ChunkIndex: 3, Score: 0.91},
		{MaterialID: "mat-2", Title: "Problem Set", ChunkIndex: 1, Score: 0.88},
	}
}

func TestSuggestNoSourcesReturnsEmpty(t *testing.T) {
	called := false
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			called = true
			return "1. something", nil
		},
	}}

	got := s.Suggest(context.Background(), "q", "a", nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
	if called {
		t.Error("model must not be called without sources")
	}
}

func TestSuggestParsesNumberedList(t *testing.T) {
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			return "Here are some ideas:\n" +
				"1. What is the second law of thermodynamics?\n" +
				"2) How does entropy relate to disorder?\n" +
				"3. Can entropy ever decrease locally?\n", nil
		},
	}}

	got := s.Suggest(context.Background(), "q", "a", sampleSources())
	want := []string{
		"What is the second law of thermodynamics?",
		"How does entropy relate to disorder?",
		"Can entropy ever decrease locally?",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestSuggestParsesBulletedList(t *testing.T) {
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			return "- What drives heat transfer?\n" +
				"* Why is work path-dependent here?\n" +
				"• What assumptions does the ideal gas law make?\n", nil
		},
	}}

	got := s.Suggest(context.Background(), "q", "a", sampleSources())
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %#v", got)
	}
	for _, sg := range got {
		if strings.ContainsAny(sg[:1], "-*•") {
			t.Errorf("marker not stripped: %q", sg)
		}
	}
}

func TestSuggestDropsShortEntriesAndCaps(t *testing.T) {
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			return "1. Why?\n" + // too short, dropped
				"2. What is the Carnot efficiency limit?\n" +
				"3. How do refrigerators move heat uphill?\n" +
				"4. What is a reversible process exactly?\n" +
				"5. Where does exergy come into the picture?\n", nil
		},
	}}

	got := s.Suggest(context.Background(), "q", "a", sampleSources())
	if len(got) != 3 {
		t.Fatalf("expected cap of 3, got %d: %#v", len(got), got)
	}
	for _, sg := range got {
		if sg == "Why?" {
			t.Error("short entry should have been dropped")
		}
	}
}

func TestSuggestProviderFailureFallsBack(t *testing.T) {
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			return "", errors.New("model unavailable")
		},
	}}

	got := s.Suggest(context.Background(), "q", "a", sampleSources())
	if !reflect.DeepEqual(got, fallbackSuggestions) {
		t.Errorf("expected fallback set, got %#v", got)
	}
}

func TestSuggestUnparseableOutputFallsBack(t *testing.T) {
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			return "I am sorry, I cannot think of any follow-up questions right now.", nil
		},
	}}

	got := s.Suggest(context.Background(), "q", "a", sampleSources())
	if !reflect.DeepEqual(got, fallbackSuggestions) {
		t.Errorf("expected fallback set, got %#v", got)
	}
}

func TestSuggestHighTemperature(t *testing.T) {
	var gotTemp float32
	s := &Suggester{Client: &MockAIClient{
		CompleteFunc: func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
			gotTemp = temperature
			return "1. What follows from this result?", nil
		},
	}}
	s.Suggest(context.Background(), "q", "a", sampleSources())
	if gotTemp < 0.5 {
		t.Errorf("suggestions should run at a creative temperature, got %v", gotTemp)
	}
}

func TestStripListMarker(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1. First question", "First question", true},
		{"12) Twelfth question", "Twelfth question", true},
		{"- dashed entry", "dashed entry", true},
		{"* starred entry", "starred entry", true},
		{"• bulleted entry", "bulleted entry", true},
		{"plain prose line", "", false},
		{"", "", false},
		{"42 is not a marker", "", false},
	}
	for _, tt := range tests {
		got, ok := stripListMarker(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("stripListMarker(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestServiceAskDegradesOnRetrievalFailure(t *testing.T) {
	svc := NewService(&MockAIClient{
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	}, &MockChunkStore{}, Config{MaxResults: 5, Threshold: 0.7})

	ans := svc.Ask(context.Background(), "question", nil, store.Scope{CourseID: "phys-101"})
	if ans.Answer != ApologyMessage {
		t.Errorf("expected apology, got %q", ans.Answer)
	}
	if len(ans.Sources) != 0 || len(ans.Suggestions) != 0 {
		t.Error("degraded answer must carry empty sources and suggestions")
	}
}

func TestServiceAskNoMaterial(t *testing.T) {
	svc := NewService(&MockAIClient{}, &MockChunkStore{}, Config{MaxResults: 5, Threshold: 0.7})

	ans := svc.Ask(context.Background(), "question", nil, store.Scope{})
	if ans.Answer != NoMaterialMessage {
		t.Errorf("expected no-material message, got %q", ans.Answer)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("expected no sources, got %#v", ans.Sources)
	}
	if len(ans.Suggestions) != 0 {
		t.Errorf("no sources means no suggestions, got %#v", ans.Suggestions)
	}
}
