package answer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

// MockAIClient implements the ai.Client interface for testing
type MockAIClient struct {
	EmbedFunc    func(ctx context.Context, texts []string) ([][]float32, error)
	CompleteFunc func(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
	DimFunc      func() int
}

func (m *MockAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (m *MockAIClient) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user, temperature, maxTokens)
	}
	return "mock answer", nil
}

func (m *MockAIClient) Dim() int {
	if m.DimFunc != nil {
		return m.DimFunc()
	}
	return 3
}

// MockChunkStore implements store.ChunkStore for testing
type MockChunkStore struct {
	QueryFunc func(ctx context.Context, scope store.Scope) ([]models.Chunk, error)
}

func (m *MockChunkStore) ReplaceChunks(ctx context.Context, materialID string, chunks []models.Chunk) error {
	return nil
}

func (m *MockChunkStore) QueryChunks(ctx context.Context, scope store.Scope) ([]models.Chunk, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, scope)
	}
	return nil, nil
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical unit vectors", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector left", []float32{0, 0}, []float32{1, 2}, 0},
		{"zero vector right", []float32{1, 2}, []float32{0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty vectors", []float32{}, []float32{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.IsNaN(got) {
				t.Fatal("similarity must never be NaN")
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityProperties(t *testing.T) {
	v := []float32{0.3, -1.7, 2.2, 0.01}
	w := []float32{1.1, 0.4, -0.6, 3.5}

	if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-6 {
		t.Errorf("self-similarity = %v, want ~1", got)
	}
	if a, b := CosineSimilarity(v, w), CosineSimilarity(w, v); a != b {
		t.Errorf("similarity not symmetric: %v vs %v", a, b)
	}
	if got := CosineSimilarity(v, w); got < -1 || got > 1 {
		t.Errorf("similarity %v out of [-1, 1]", got)
	}
}

func chunkWithVec(id string, idx int, vec []float32) models.Chunk {
	return models.Chunk{
		ID:         id,
		MaterialID: "mat-1",
		ChunkIndex: idx,
		Content:    "content of " + id,
		Title:      "Lecture Notes",
		Embedding:  vec,
	}
}

func TestRetrieveFiltersAndOrders(t *testing.T) {
	// Query vector is (1,0,0). c0 and c4 are parallel to it (score 1),
	// c1 scores ~0.707, c2 ~0.995, c3 is orthogonal (score 0).
	candidates := []models.Chunk{
		chunkWithVec("c0", 0, []float32{0.95, 0, 0}),
		chunkWithVec("c1", 1, []float32{0.5, 0.5, 0}),
		chunkWithVec("c2", 2, []float32{0.99, 0.1, 0}),
		chunkWithVec("c3", 3, []float32{0, 1, 0}),
		chunkWithVec("c4", 4, []float32{0.8, 0, 0}),
	}

	r := &Retriever{
		Client: &MockAIClient{},
		Store: &MockChunkStore{QueryFunc: func(ctx context.Context, scope store.Scope) ([]models.Chunk, error) {
			return candidates, nil
		}},
		MaxResults: 10,
		Threshold:  0.9,
	}

	results, err := r.Retrieve(context.Background(), "what is entropy", store.Scope{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	for _, res := range results {
		if res.Score < 0.9 {
			t.Errorf("result %s below threshold: %v", res.Chunk.ID, res.Score)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at %d", i)
		}
		if results[i].Score == results[i-1].Score &&
			results[i].Chunk.ChunkIndex < results[i-1].Chunk.ChunkIndex {
			t.Errorf("tie at %d not broken by ascending chunk index", i)
		}
	}

	// c0 and c4 are parallel to the query (score 1.0); the tie must be
	// broken by chunk index, so c0 precedes c4.
	var pos0, pos4 = -1, -1
	for i, res := range results {
		switch res.Chunk.ID {
		case "c0":
			pos0 = i
		case "c4":
			pos4 = i
		case "c3":
			t.Error("orthogonal chunk must be filtered out")
		}
	}
	if pos0 == -1 || pos4 == -1 {
		t.Fatal("parallel chunks missing from results")
	}
	if pos0 > pos4 {
		t.Error("tie between c0 and c4 not broken by ascending chunk index")
	}
}

func TestRetrieveTruncatesToMaxResults(t *testing.T) {
	var candidates []models.Chunk
	for i := 0; i < 20; i++ {
		candidates = append(candidates, chunkWithVec("c", i, []float32{1, 0, 0}))
	}

	r := &Retriever{
		Client: &MockAIClient{},
		Store: &MockChunkStore{QueryFunc: func(ctx context.Context, scope store.Scope) ([]models.Chunk, error) {
			return candidates, nil
		}},
		MaxResults: 5,
		Threshold:  0.7,
	}

	results, err := r.Retrieve(context.Background(), "q", store.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Errorf("expected 5 results, got %d", len(results))
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	r := &Retriever{
		Client:     &MockAIClient{},
		Store:      &MockChunkStore{},
		MaxResults: 5,
		Threshold:  0.7,
	}
	results, err := r.Retrieve(context.Background(), "anything", store.Scope{CourseID: "empty"})
	if err != nil {
		t.Fatalf("empty scope must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestRetrieveEmbedError(t *testing.T) {
	r := &Retriever{
		Client: &MockAIClient{
			EmbedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
				return nil, errors.New("provider down")
			},
		},
		Store: &MockChunkStore{},
	}
	_, err := r.Retrieve(context.Background(), "q", store.Scope{})
	if err == nil {
		t.Fatal("expected error from failed query embedding")
	}
}

func TestRetrieveScopePassedThrough(t *testing.T) {
	var gotScope store.Scope
	r := &Retriever{
		Client: &MockAIClient{},
		Store: &MockChunkStore{QueryFunc: func(ctx context.Context, scope store.Scope) ([]models.Chunk, error) {
			gotScope = scope
			return nil, nil
		}},
	}
	_, err := r.Retrieve(context.Background(), "q", store.Scope{CourseID: "phys-101"})
	if err != nil {
		t.Fatal(err)
	}
	if gotScope.CourseID != "phys-101" {
		t.Errorf("scope not passed through: %+v", gotScope)
	}
}
