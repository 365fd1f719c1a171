// Package changelog implements the durable change-log store: per-item
// snapshots, append-only reflection histories, tombstones, and the
// dead-letter record.
package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/shopsync/internal/db"
	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

// DefaultRetention caps each item's reflection history. Oldest entries are
// evicted first once the cap is reached.
const DefaultRetention = 1000

// DefaultDeadLetterCap bounds the global dead-letter record.
const DefaultDeadLetterCap = 1000

// store is the consumer interface for the change-log (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	RPush(ctx context.Context, key string, values ...string) error
	CommitUpdate(ctx context.Context, snapKey string, snapJSON []byte, reflKey string, reflJSON []byte, retain int) error
	CommitDelete(ctx context.Context, snapKey, tombKey, reflKey string, reflJSON []byte, retain int) error
}

// Repo implements usecase/sync.ChangeLog.
type Repo struct {
	store         store
	retain        int
	deadLetterCap int
}

// New creates a change-log repository. retain caps each item's reflection
// history; non-positive values fall back to DefaultRetention.
func New(s store, retain int) *Repo {
	if retain <= 0 {
		retain = DefaultRetention
	}
	return &Repo{store: s, retain: retain, deadLetterCap: DefaultDeadLetterCap}
}

// WithDeadLetterCap overrides the dead-letter record retention cap.
func (r *Repo) WithDeadLetterCap(n int) *Repo {
	if n > 0 {
		r.deadLetterCap = n
	}
	return r
}

// Snapshot returns the last applied snapshot for id. ok is false when the
// item was never indexed (or was deleted).
func (r *Repo) Snapshot(ctx context.Context, id string) (snapshot.Snapshot, bool, error) {
	raw, err := r.store.Get(ctx, snapKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return snapshot.Snapshot{}, false, nil
		}
		return snapshot.Snapshot{}, false, domain.Retryable(fmt.Errorf("get snapshot %s: %w", id, err))
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A stored snapshot that no longer parses means the snapshot and the
		// index can no longer be compared; the lane must halt.
		return snapshot.Snapshot{}, false,
			fmt.Errorf("corrupt snapshot for %s: %w: %w", id, err, domain.ErrStoreConsistency)
	}
	if snap.ItemID != id || snap.Revision < 1 {
		return snapshot.Snapshot{}, false,
			fmt.Errorf("snapshot for %s carries id %q rev %d: %w",
				id, snap.ItemID, snap.Revision, domain.ErrStoreConsistency)
	}
	return snap, true, nil
}

// IsTombstoned reports whether id was terminally deleted.
func (r *Repo) IsTombstoned(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, tombKey(id))
	if err != nil {
		return false, domain.Retryable(fmt.Errorf("check tombstone %s: %w", id, err))
	}
	return ok, nil
}

// CommitUpdate atomically supersedes the snapshot and appends the
// reflection. Both land or neither does.
func (r *Repo) CommitUpdate(ctx context.Context, snap snapshot.Snapshot, ref reflection.Reflection) error {
	if snap.ItemID != ref.ItemID {
		return fmt.Errorf("snapshot %q vs reflection %q: %w", snap.ItemID, ref.ItemID, domain.ErrStoreConsistency)
	}
	if snap.Revision != ref.Revision {
		return fmt.Errorf("snapshot rev %d vs reflection rev %d for %s: %w",
			snap.Revision, ref.Revision, snap.ItemID, domain.ErrStoreConsistency)
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	reflJSON, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}

	id := snap.ItemID
	if err := r.store.CommitUpdate(ctx, snapKey(id), snapJSON, reflKey(id), reflJSON, r.retain); err != nil {
		return domain.Retryable(fmt.Errorf("commit update %s: %w", id, err))
	}
	return nil
}

// CommitDelete atomically removes the snapshot, tombstones the item, and
// appends the terminal reflection.
func (r *Repo) CommitDelete(ctx context.Context, id string, ref reflection.Reflection) error {
	if ref.ItemID != id {
		return fmt.Errorf("delete %q vs reflection %q: %w", id, ref.ItemID, domain.ErrStoreConsistency)
	}

	reflJSON, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}

	if err := r.store.CommitDelete(ctx, snapKey(id), tombKey(id), reflKey(id), reflJSON, r.retain); err != nil {
		return domain.Retryable(fmt.Errorf("commit delete %s: %w", id, err))
	}
	return nil
}

// Reflections returns the reflection history for id ordered by revision
// ascending, paginated by offset/limit.
func (r *Repo) Reflections(ctx context.Context, id string, offset, limit int) ([]reflection.Reflection, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = r.retain
	}

	raw, err := r.store.LRange(ctx, reflKey(id), int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("list reflections %s: %w", id, err))
	}

	refs := make([]reflection.Reflection, 0, len(raw))
	for _, entry := range raw {
		var ref reflection.Reflection
		if err := json.Unmarshal([]byte(entry), &ref); err != nil {
			return nil, fmt.Errorf("corrupt reflection for %s: %w: %w", id, err, domain.ErrStoreConsistency)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// DeadLetter appends a record to the bounded dead-letter list.
func (r *Repo) DeadLetter(ctx context.Context, rec domain.DeadLetter) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	key := deadLetterKey()
	if err := r.store.RPush(ctx, key, string(data)); err != nil {
		return fmt.Errorf("push dead letter: %w", err)
	}
	if err := r.store.LTrim(ctx, key, int64(-r.deadLetterCap), -1); err != nil {
		return fmt.Errorf("trim dead letters: %w", err)
	}
	return nil
}

// DeadLetters returns up to limit most recent dead-letter records, newest last.
func (r *Repo) DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	if limit <= 0 || limit > r.deadLetterCap {
		limit = r.deadLetterCap
	}

	raw, err := r.store.LRange(ctx, deadLetterKey(), int64(-limit), -1)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	recs := make([]domain.DeadLetter, 0, len(raw))
	for _, entry := range raw {
		var rec domain.DeadLetter
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func snapKey(id string) string { return domain.KeyPrefix + "snap:" + id }
func tombKey(id string) string { return domain.KeyPrefix + "tomb:" + id }
func reflKey(id string) string { return domain.KeyPrefix + "refl:" + id }
func deadLetterKey() string    { return domain.KeyPrefix + "deadletters" }
