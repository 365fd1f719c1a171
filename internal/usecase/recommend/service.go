// Package recommend answers similarity queries over the synchronized index.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
)

// Index is the read-side search contract.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]document.Match, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Service runs KNN queries against the item index.
type Service struct {
	index        Index
	embedder     Embedder
	defaultLimit int
	maxLimit     int
}

// New creates a recommendation service.
func New(index Index, embedder Embedder) *Service {
	return &Service{
		index:        index,
		embedder:     embedder,
		defaultLimit: 10,
		maxLimit:     100,
	}
}

// WithLimits configures result count bounds.
func (s *Service) WithLimits(defaultLimit, maxLimit int) *Service {
	if defaultLimit > 0 {
		s.defaultLimit = defaultLimit
	}
	if maxLimit > 0 {
		s.maxLimit = maxLimit
	}
	return s
}

// Similar returns the items closest to the query text, best first.
func (s *Service) Similar(ctx context.Context, query string, limit int) ([]document.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrMalformedPayload)
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	result, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	matches, err := s.index.Search(ctx, result.Embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return matches, nil
}
