package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
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
		out[i] = []float32{0.1, 0.2, 0.3}
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

func TestEmbedAllBatchOrder(t *testing.T) {
	// 10 texts with batch size 5 must produce 2 provider calls whose
	// concatenated output preserves input order.
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	var batches [][]string
	client := &MockAIClient{
		EmbedFunc: func(ctx context.Context, in []string) ([][]float32, error) {
			batches = append(batches, append([]string(nil), in...))
			out := make([][]float32, len(in))
			for i, s := range in {
				// encode the input position into the vector
				var n float32
				_, _ = fmt.Sscanf(s, "chunk %f", &n)
				out[i] = []float32{n}
			}
			return out, nil
		},
	}

	e := NewEmbedder(client, 5, time.Millisecond)
	vecs, err := e.EmbedAll(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedAll failed: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 5 || len(batches[1]) != 5 {
		t.Errorf("expected batches of 5, got %d and %d", len(batches[0]), len(batches[1]))
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: got %v", i, v)
		}
	}
}

func TestEmbedAllUnevenFinalBatch(t *testing.T) {
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	var sizes []int
	client := &MockAIClient{
		EmbedFunc: func(ctx context.Context, in []string) ([][]float32, error) {
			sizes = append(sizes, len(in))
			out := make([][]float32, len(in))
			for i := range in {
				out[i] = []float32{1}
			}
			return out, nil
		},
	}

	e := NewEmbedder(client, 3, time.Millisecond)
	vecs, err := e.EmbedAll(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedAll failed: %v", err)
	}
	if len(vecs) != 7 {
		t.Errorf("expected 7 vectors, got %d", len(vecs))
	}
	want := []int{3, 3, 1}
	if len(sizes) != len(want) {
		t.Fatalf("expected %d batches, got %d", len(want), len(sizes))
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestEmbedAllProviderFailureAborts(t *testing.T) {
	calls := 0
	client := &MockAIClient{
		EmbedFunc: func(ctx context.Context, in []string) ([][]float32, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("rate limited")
			}
			out := make([][]float32, len(in))
			for i := range in {
				out[i] = []float32{1}
			}
			return out, nil
		},
	}

	e := NewEmbedder(client, 2, time.Millisecond)
	_, err := e.EmbedAll(context.Background(), []string{"a", "b", "c", "d", "e"})

	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if ee.Batch != 2 {
		t.Errorf("expected failure in batch 2, got batch %d", ee.Batch)
	}
	if calls != 2 {
		t.Errorf("expected abort after failing batch, got %d calls", calls)
	}
}

func TestEmbedAllCountMismatch(t *testing.T) {
	client := &MockAIClient{
		EmbedFunc: func(ctx context.Context, in []string) ([][]float32, error) {
			return [][]float32{{1}}, nil // always one vector, regardless of input
		},
	}

	e := NewEmbedder(client, 10, time.Millisecond)
	_, err := e.EmbedAll(context.Background(), []string{"a", "b"})

	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError for count mismatch, got %v", err)
	}
}

func TestEmbedAllEmptyInput(t *testing.T) {
	e := NewEmbedder(&MockAIClient{}, 10, time.Millisecond)
	vecs, err := e.EmbedAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 0 {
		t.Errorf("expected no vectors, got %d", len(vecs))
	}
}

func TestEmbedAllContextCancelled(t *testing.T) {
	client := &MockAIClient{}
	e := NewEmbedder(client, 1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EmbedAll(ctx, []string{"a", "b", "c"})
	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError wrapping context error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}
