package syncer

import (
	"context"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

// ChangeLog is the durable state contract: last-applied snapshots,
// tombstones, reflections and the dead-letter record.
type ChangeLog interface {
	Snapshot(ctx context.Context, id string) (snapshot.Snapshot, bool, error)
	IsTombstoned(ctx context.Context, id string) (bool, error)
	CommitUpdate(ctx context.Context, snap snapshot.Snapshot, ref reflection.Reflection) error
	CommitDelete(ctx context.Context, id string, ref reflection.Reflection) error
	DeadLetter(ctx context.Context, rec domain.DeadLetter) error
}

// Index defines the vector index mutations the engine issues.
type Index interface {
	Upsert(ctx context.Context, doc *document.Document) error
	Touch(ctx context.Context, id string, revision int) error
	Delete(ctx context.Context, id string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
