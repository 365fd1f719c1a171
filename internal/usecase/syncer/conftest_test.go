package syncer

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

// mockChangeLog implements ChangeLog with function fields.
type mockChangeLog struct {
	snapshotFn     func(ctx context.Context, id string) (snapshot.Snapshot, bool, error)
	isTombstonedFn func(ctx context.Context, id string) (bool, error)
	commitUpdateFn func(ctx context.Context, snap snapshot.Snapshot, ref reflection.Reflection) error
	commitDeleteFn func(ctx context.Context, id string, ref reflection.Reflection) error

	updates     []reflection.Reflection
	snaps       []snapshot.Snapshot
	deletes     []reflection.Reflection
	deadLetters []domain.DeadLetter
}

func (m *mockChangeLog) Snapshot(ctx context.Context, id string) (snapshot.Snapshot, bool, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, id)
	}
	return snapshot.Snapshot{}, false, nil
}

func (m *mockChangeLog) IsTombstoned(ctx context.Context, id string) (bool, error) {
	if m.isTombstonedFn != nil {
		return m.isTombstonedFn(ctx, id)
	}
	return false, nil
}

func (m *mockChangeLog) CommitUpdate(ctx context.Context, snap snapshot.Snapshot, ref reflection.Reflection) error {
	m.updates = append(m.updates, ref)
	m.snaps = append(m.snaps, snap)
	if m.commitUpdateFn != nil {
		return m.commitUpdateFn(ctx, snap, ref)
	}
	return nil
}

func (m *mockChangeLog) CommitDelete(ctx context.Context, id string, ref reflection.Reflection) error {
	m.deletes = append(m.deletes, ref)
	if m.commitDeleteFn != nil {
		return m.commitDeleteFn(ctx, id, ref)
	}
	return nil
}

func (m *mockChangeLog) DeadLetter(_ context.Context, rec domain.DeadLetter) error {
	m.deadLetters = append(m.deadLetters, rec)
	return nil
}

// mockIndex implements Index with function fields.
type mockIndex struct {
	upsertFn func(ctx context.Context, doc *document.Document) error
	touchFn  func(ctx context.Context, id string, revision int) error
	deleteFn func(ctx context.Context, id string) error

	upserts []document.Document
	touches []int
	deleted []string
}

func (m *mockIndex) Upsert(ctx context.Context, doc *document.Document) error {
	m.upserts = append(m.upserts, *doc)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, doc)
	}
	return nil
}

func (m *mockIndex) Touch(ctx context.Context, id string, revision int) error {
	m.touches = append(m.touches, revision)
	if m.touchFn != nil {
		return m.touchFn(ctx, id, revision)
	}
	return nil
}

func (m *mockIndex) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockEmbedder implements Embedder with a function field.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
	texts   []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.texts = append(m.texts, text)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 7}, nil
}

func newTestService(t *testing.T) (*Service, *mockChangeLog, *mockIndex, *mockEmbedder) {
	t.Helper()
	cl := &mockChangeLog{}
	idx := &mockIndex{}
	emb := &mockEmbedder{}
	svc := New(cl, idx, emb, Config{
		Backoff: Backoff{Base: time.Millisecond, Ceiling: 2 * time.Millisecond, MaxAttempts: 3},
	}, zap.NewNop())
	svc.now = func() int64 { return 1700000000 }
	return svc, cl, idx, emb
}

func testItem(id, title string) *catalog.Item {
	return &catalog.Item{
		ID:       id,
		Title:    title,
		BodyHTML: "<p>A fine thing</p>",
		Vendor:   "Acme",
		Handle:   "a-fine-thing",
		Tags:     "tools, metal",
		Variants: []catalog.Variant{{Price: "19.99"}},
	}
}

func createEvent(id, title string) catalog.ChangeEvent {
	return catalog.ChangeEvent{
		Kind:       catalog.KindCreated,
		ItemID:     id,
		Item:       testItem(id, title),
		DeliveryID: "delivery-" + id,
	}
}

func updateEvent(id, title string) catalog.ChangeEvent {
	ev := createEvent(id, title)
	ev.Kind = catalog.KindUpdated
	return ev
}

func deleteEvent(id string) catalog.ChangeEvent {
	return catalog.ChangeEvent{
		Kind:       catalog.KindDeleted,
		ItemID:     id,
		DeliveryID: "delivery-del-" + id,
	}
}
