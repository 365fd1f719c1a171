package domain

import "context"

// KeyPrefix namespaces every key this service writes to the store.
const KeyPrefix = "shopsync:"

// EmbeddingResult holds a vector and the token usage that produced it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into a fixed-dimension embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
