// Package index implements the vector index collaborator over Redis FT:
// one hash per live item, an HNSW index over the embedding vectors, and
// upsert/delete-by-identifier semantics that are idempotent by key.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/shopsync/internal/db"
	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
)

// IndexName is the FT index over item hashes.
const IndexName = domain.KeyPrefix + "items:idx"

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes index construction.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the vector index contracts of the sync and recommend services.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates a vector index repository for vectors of the given dimension.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// WithHNSW overrides HNSW construction parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the FT index if it does not exist yet. Called once
// at startup; racing creations collapse into ErrIndexExists, ignored.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{itemKeyPrefix()},
		Fields: []db.IndexField{
			{Name: fieldVector, Type: db.FieldVector, Dimensions: r.dim, HNSWM: r.hnsw.M, EFConstruct: r.hnsw.EFConstruct},
			{Name: "title", Type: db.FieldText},
			{Name: "vendor", Type: db.FieldTag},
			{Name: "tags", Type: db.FieldText},
			{Name: "price", Type: db.FieldNumeric},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes the indexed document, overwriting any previous revision.
func (r *Repo) Upsert(ctx context.Context, doc *document.Document) error {
	if r.dim > 0 && len(doc.Vector()) != r.dim {
		return fmt.Errorf("vector dimension %d, index expects %d: %w",
			len(doc.Vector()), r.dim, domain.ErrIndexWrite)
	}
	if err := r.store.HSet(ctx, itemKey(doc.ID()), buildHashFields(doc)); err != nil {
		return domain.Retryable(fmt.Errorf("upsert %s: %w: %w", doc.ID(), err, domain.ErrIndexWrite))
	}
	return nil
}

// Touch advances only the stored revision counter, for metadata-only
// changes that do not alter vector or text.
func (r *Repo) Touch(ctx context.Context, id string, revision int) error {
	exists, err := r.store.Exists(ctx, itemKey(id))
	if err != nil {
		return domain.Retryable(fmt.Errorf("check %s: %w: %w", id, err, domain.ErrIndexWrite))
	}
	if !exists {
		return fmt.Errorf("touch %s: %w", id, domain.ErrItemNotFound)
	}
	fields := map[string]string{fieldRevision: fmt.Sprintf("%d", revision)}
	if err := r.store.HSet(ctx, itemKey(id), fields); err != nil {
		return domain.Retryable(fmt.Errorf("touch %s: %w: %w", id, err, domain.ErrIndexWrite))
	}
	return nil
}

// Delete removes the indexed document. Deleting an absent id succeeds.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, itemKey(id)); err != nil {
		return domain.Retryable(fmt.Errorf("delete %s: %w: %w", id, err, domain.ErrIndexWrite))
	}
	return nil
}

// Get returns the indexed document, or domain.ErrItemNotFound.
func (r *Repo) Get(ctx context.Context, id string) (document.Document, error) {
	fields, err := r.store.HGetAll(ctx, itemKey(id))
	if err != nil {
		return document.Document{}, fmt.Errorf("get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return document.Document{}, domain.ErrItemNotFound
	}
	return parseHashFields(id, fields), nil
}

// Exists reports whether an indexed document is present for id.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, itemKey(id))
	if err != nil {
		return false, fmt.Errorf("check %s: %w", id, err)
	}
	return ok, nil
}

// Search runs a KNN similarity query and returns the k nearest items.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]document.Match, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"title", "vendor", "handle", "tags", "price", fieldRevision, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	matches := make([]document.Match, 0, len(result.Entries))
	for _, entry := range result.Entries {
		matches = append(matches, document.Match{
			ID:    extractID(entry.Key),
			Score: entry.Score,
			Meta:  metaFromFields(entry.Fields),
		})
	}
	return matches, nil
}
