package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
)

// Client provides embedding and text-generation capabilities.
type Client interface {
	// Embed returns one fixed-length vector per input text, in input order.
	// The same call shape serves single-query and batch use.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Complete sends a system instruction plus a user message to the model.
	Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Provider   Provider
	Location   string
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a deterministic implementation of the Client interface for
// testing and local development. Embeddings are derived from token hashes so
// similar texts rank near each other and reruns are reproducible.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim == 0 {
		dim = 64
	}
	return &StubClient{dim: dim}
}

// Embed implements the embedding functionality
func (s *StubClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v := make([]float32, s.dim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[int(h.Sum32())%s.dim]++
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm > 0 {
			n := float32(math.Sqrt(norm))
			for i := range v {
				v[i] /= n
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Complete implements the generation functionality
func (s *StubClient) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	// Echo enough of the input to be useful in dev
	line := user
	if i := strings.IndexByte(line, '\n'); i > 0 {
		line = line[:i]
	}
	if len(line) > 120 {
		line = line[:120]
	}
	return "[stub] " + line, nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
