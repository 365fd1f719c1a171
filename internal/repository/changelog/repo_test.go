package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/shopsync/internal/db"
	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

func testReflection(t *testing.T, id string, revision int) reflection.Reflection {
	t.Helper()
	ref, err := reflection.New(id, reflection.KindUpdated,
		[]reflection.FieldChange{{Field: snapshot.FieldTitle, Old: "Hammer", New: "Mallet"}},
		"title changed from \"Hammer\" to \"Mallet\"", revision, 1700000000)
	if err != nil {
		t.Fatalf("build reflection: %v", err)
	}
	return ref
}

// --- Snapshot ---

func TestSnapshot_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	want := testSnapshot(t, "42", 3)
	raw, _ := json.Marshal(want)

	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key != "shopsync:snap:42" {
			t.Errorf("unexpected key: %s", key)
		}
		return raw, nil
	}

	snap, ok, err := repo.Snapshot(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if snap.Title != "Hammer" || snap.Revision != 3 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSnapshot_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	_, ok, err := repo.Snapshot(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing snapshot")
	}
}

func TestSnapshot_StoreErrorIsRetryable(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("conn refused")
	}

	_, _, err := repo.Snapshot(context.Background(), "42")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsRetryable(err) {
		t.Errorf("store errors should be retryable, got %v", err)
	}
}

func TestSnapshot_CorruptJSON(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("{not json"), nil
	}

	_, _, err := repo.Snapshot(context.Background(), "42")
	if !errors.Is(err, domain.ErrStoreConsistency) {
		t.Fatalf("expected ErrStoreConsistency, got %v", err)
	}
}

func TestSnapshot_IDMismatch(t *testing.T) {
	repo, ms := newTestRepo(t)
	other := testSnapshot(t, "99", 3)
	raw, _ := json.Marshal(other)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return raw, nil
	}

	_, _, err := repo.Snapshot(context.Background(), "42")
	if !errors.Is(err, domain.ErrStoreConsistency) {
		t.Fatalf("expected ErrStoreConsistency, got %v", err)
	}
}

// --- IsTombstoned ---

func TestIsTombstoned(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, key string) (bool, error) {
		if key != "shopsync:tomb:42" {
			t.Errorf("unexpected key: %s", key)
		}
		return true, nil
	}

	tombed, err := repo.IsTombstoned(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tombed {
		t.Fatal("expected tombed=true")
	}
}

func TestIsTombstoned_StoreErrorIsRetryable(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) {
		return false, errors.New("timeout")
	}

	_, err := repo.IsTombstoned(context.Background(), "42")
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

// --- CommitUpdate ---

func TestCommitUpdate_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	snap := testSnapshot(t, "42", 3)
	ref := testReflection(t, "42", 3)

	var committed bool
	ms.commitUpdateFn = func(_ context.Context, snapKey string, snapJSON []byte, reflKey string, reflJSON []byte, retain int) error {
		committed = true
		if snapKey != "shopsync:snap:42" || reflKey != "shopsync:refl:42" {
			t.Errorf("unexpected keys: %s %s", snapKey, reflKey)
		}
		if retain != DefaultRetention {
			t.Errorf("expected retain=%d, got %d", DefaultRetention, retain)
		}
		var gotSnap snapshot.Snapshot
		if err := json.Unmarshal(snapJSON, &gotSnap); err != nil || gotSnap.Revision != 3 {
			t.Errorf("bad snapshot payload: %v %+v", err, gotSnap)
		}
		var gotRef reflection.Reflection
		if err := json.Unmarshal(reflJSON, &gotRef); err != nil || gotRef.Kind != reflection.KindUpdated {
			t.Errorf("bad reflection payload: %v %+v", err, gotRef)
		}
		return nil
	}

	if err := repo.CommitUpdate(context.Background(), snap, ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !committed {
		t.Fatal("store commit not invoked")
	}
}

func TestCommitUpdate_IDMismatch(t *testing.T) {
	repo, ms := newTestRepo(t)
	var committed bool
	ms.commitUpdateFn = func(_ context.Context, _ string, _ []byte, _ string, _ []byte, _ int) error {
		committed = true
		return nil
	}

	err := repo.CommitUpdate(context.Background(), testSnapshot(t, "42", 3), testReflection(t, "99", 3))
	if !errors.Is(err, domain.ErrStoreConsistency) {
		t.Fatalf("expected ErrStoreConsistency, got %v", err)
	}
	if committed {
		t.Error("mismatched commit must not reach the store")
	}
}

func TestCommitUpdate_RevisionMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.CommitUpdate(context.Background(), testSnapshot(t, "42", 3), testReflection(t, "42", 4))
	if !errors.Is(err, domain.ErrStoreConsistency) {
		t.Fatalf("expected ErrStoreConsistency, got %v", err)
	}
}

func TestCommitUpdate_StoreErrorIsRetryable(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.commitUpdateFn = func(_ context.Context, _ string, _ []byte, _ string, _ []byte, _ int) error {
		return errors.New("conn reset")
	}

	err := repo.CommitUpdate(context.Background(), testSnapshot(t, "42", 3), testReflection(t, "42", 3))
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

// --- CommitDelete ---

func TestCommitDelete_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ref, err := reflection.New("42", reflection.KindDeleted, nil, "item deleted", 4, 1700000000)
	if err != nil {
		t.Fatalf("build reflection: %v", err)
	}

	var committed bool
	ms.commitDeleteFn = func(_ context.Context, snapKey, tombKey, reflKey string, _ []byte, retain int) error {
		committed = true
		if snapKey != "shopsync:snap:42" || tombKey != "shopsync:tomb:42" || reflKey != "shopsync:refl:42" {
			t.Errorf("unexpected keys: %s %s %s", snapKey, tombKey, reflKey)
		}
		if retain != DefaultRetention {
			t.Errorf("expected retain=%d, got %d", DefaultRetention, retain)
		}
		return nil
	}

	if err := repo.CommitDelete(context.Background(), "42", ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !committed {
		t.Fatal("store commit not invoked")
	}
}

func TestCommitDelete_IDMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	ref, _ := reflection.New("99", reflection.KindDeleted, nil, "item deleted", 1, 1700000000)

	err := repo.CommitDelete(context.Background(), "42", ref)
	if !errors.Is(err, domain.ErrStoreConsistency) {
		t.Fatalf("expected ErrStoreConsistency, got %v", err)
	}
}

// --- Reflections ---

func TestReflections_Pagination(t *testing.T) {
	repo, ms := newTestRepo(t)
	ref := testReflection(t, "42", 3)
	raw, _ := json.Marshal(ref)

	ms.lrangeFn = func(_ context.Context, key string, start, stop int64) ([]string, error) {
		if key != "shopsync:refl:42" {
			t.Errorf("unexpected key: %s", key)
		}
		if start != 10 || stop != 14 {
			t.Errorf("unexpected range: [%d, %d]", start, stop)
		}
		return []string{string(raw)}, nil
	}

	refs, err := repo.Reflections(context.Background(), "42", 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 || refs[0].Revision != 3 {
		t.Errorf("unexpected reflections: %+v", refs)
	}
}

func TestReflections_CorruptEntry(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.lrangeFn = func(_ context.Context, _ string, _, _ int64) ([]string, error) {
		return []string{"{broken"}, nil
	}

	_, err := repo.Reflections(context.Background(), "42", 0, 10)
	if !errors.Is(err, domain.ErrStoreConsistency) {
		t.Fatalf("expected ErrStoreConsistency, got %v", err)
	}
}

// --- Dead letters ---

func TestDeadLetter_PushAndTrim(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo = repo.WithDeadLetterCap(50)

	var pushed, trimmed bool
	ms.rpushFn = func(_ context.Context, key string, values ...string) error {
		pushed = true
		if key != "shopsync:deadletters" {
			t.Errorf("unexpected key: %s", key)
		}
		var rec domain.DeadLetter
		if err := json.Unmarshal([]byte(values[0]), &rec); err != nil || rec.ItemID != "42" {
			t.Errorf("bad dead letter payload: %v %+v", err, rec)
		}
		return nil
	}
	ms.ltrimFn = func(_ context.Context, _ string, start, stop int64) error {
		trimmed = true
		if start != -50 || stop != -1 {
			t.Errorf("unexpected trim range: [%d, %d]", start, stop)
		}
		return nil
	}

	err := repo.DeadLetter(context.Background(), domain.DeadLetter{
		ID: "dl-1", ItemID: "42", EventKind: "updated", Reason: "boom", Attempts: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pushed || !trimmed {
		t.Fatalf("expected push and trim, got pushed=%v trimmed=%v", pushed, trimmed)
	}
}

func TestDeadLetters_SkipsCorruptEntries(t *testing.T) {
	repo, ms := newTestRepo(t)
	good, _ := json.Marshal(domain.DeadLetter{ID: "dl-1", ItemID: "42"})

	ms.lrangeFn = func(_ context.Context, _ string, start, stop int64) ([]string, error) {
		if start != -10 || stop != -1 {
			t.Errorf("unexpected range: [%d, %d]", start, stop)
		}
		return []string{"{broken", string(good)}, nil
	}

	recs, err := repo.DeadLetters(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].ItemID != "42" {
		t.Errorf("unexpected records: %+v", recs)
	}
}
