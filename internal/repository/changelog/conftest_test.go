package changelog

import (
	"context"
	"testing"

	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn          func(ctx context.Context, key string) ([]byte, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	lrangeFn       func(ctx context.Context, key string, start, stop int64) ([]string, error)
	llenFn         func(ctx context.Context, key string) (int64, error)
	ltrimFn        func(ctx context.Context, key string, start, stop int64) error
	rpushFn        func(ctx context.Context, key string, values ...string) error
	commitUpdateFn func(ctx context.Context, snapKey string, snapJSON []byte, reflKey string, reflJSON []byte, retain int) error
	commitDeleteFn func(ctx context.Context, snapKey, tombKey, reflKey string, reflJSON []byte, retain int) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.lrangeFn != nil {
		return m.lrangeFn(ctx, key, start, stop)
	}
	return nil, nil
}

func (m *mockStore) LLen(ctx context.Context, key string) (int64, error) {
	if m.llenFn != nil {
		return m.llenFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if m.ltrimFn != nil {
		return m.ltrimFn(ctx, key, start, stop)
	}
	return nil
}

func (m *mockStore) RPush(ctx context.Context, key string, values ...string) error {
	if m.rpushFn != nil {
		return m.rpushFn(ctx, key, values...)
	}
	return nil
}

func (m *mockStore) CommitUpdate(ctx context.Context, snapKey string, snapJSON []byte, reflKey string, reflJSON []byte, retain int) error {
	if m.commitUpdateFn != nil {
		return m.commitUpdateFn(ctx, snapKey, snapJSON, reflKey, reflJSON, retain)
	}
	return nil
}

func (m *mockStore) CommitDelete(ctx context.Context, snapKey, tombKey, reflKey string, reflJSON []byte, retain int) error {
	if m.commitDeleteFn != nil {
		return m.commitDeleteFn(ctx, snapKey, tombKey, reflKey, reflJSON, retain)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, 0)
	return repo, ms
}

func testSnapshot(t *testing.T, id string, revision int) snapshot.Snapshot {
	t.Helper()
	return snapshot.Snapshot{
		ItemID:    id,
		Title:     "Hammer",
		Vendor:    "Acme",
		Price:     "19.99",
		EmbedText: "Product: Hammer. Vendor: Acme. Tags: . Description: ",
		Revision:  revision,
		AppliedAt: 1700000000,
	}
}
