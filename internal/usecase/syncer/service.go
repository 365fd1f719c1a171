// Package syncer turns change events into idempotent index mutations.
// It owns the per-item decision of whether an event creates, updates,
// touches or deletes the indexed document, and records a reflection for
// every applied mutation.
package syncer

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/diff"
	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
	"github.com/kailas-cloud/shopsync/internal/metrics"
	"github.com/kailas-cloud/shopsync/internal/normalize"
)

// Config tunes the sync engine.
type Config struct {
	Backoff      Backoff
	TrackTouches bool
}

// Service is the index synchronizer. Process is safe for concurrent use
// across items; the lane dispatcher guarantees per-item serial calls.
type Service struct {
	changeLog    ChangeLog
	index        Index
	embedder     Embedder
	backoff      Backoff
	trackTouches bool
	logger       *zap.Logger
	now          func() int64

	mu     stdsync.Mutex
	halted map[string]bool
}

// New creates a sync service.
func New(changeLog ChangeLog, index Index, embedder Embedder, cfg Config, logger *zap.Logger) *Service {
	b := cfg.Backoff
	if b.MaxAttempts < 1 {
		b = DefaultBackoff
	}
	return &Service{
		changeLog:    changeLog,
		index:        index,
		embedder:     embedder,
		backoff:      b,
		trackTouches: cfg.TrackTouches,
		logger:       logger,
		now:          func() int64 { return time.Now().Unix() },
		halted:       make(map[string]bool),
	}
}

// Process applies one change event, retrying transient failures with
// backoff. Exhausted retries and permanent failures land the event in
// the dead-letter record; the error is returned for logging either way.
func (s *Service) Process(ctx context.Context, ev catalog.ChangeEvent) error {
	if s.isHalted(ev.ItemID) {
		err := fmt.Errorf("item lane halted: %w", domain.ErrStoreConsistency)
		s.deadLetter(ctx, ev, 0, err.Error())
		return err
	}

	start := time.Now()
	attempts := 0
	var lastErr error

	for attempt := 1; attempt <= s.backoff.MaxAttempts; attempt++ {
		attempts = attempt
		outcome, err := s.apply(ctx, ev)
		if err == nil {
			metrics.EventsTotal.WithLabelValues(string(ev.Kind), outcome).Inc()
			metrics.EventApplyDuration.WithLabelValues(string(ev.Kind)).Observe(time.Since(start).Seconds())
			return nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrStoreConsistency) {
			// Durable state disagrees with itself; stop mutating this
			// item until an operator looks at it.
			s.halt(ev.ItemID)
			break
		}
		if !domain.IsRetryable(err) || attempt == s.backoff.MaxAttempts {
			break
		}

		metrics.RetriesTotal.Inc()
		s.logger.Warn("Retrying change event",
			zap.String("item_id", ev.ItemID),
			zap.String("kind", string(ev.Kind)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if werr := s.backoff.Wait(ctx, attempt); werr != nil {
			lastErr = werr
			break
		}
	}

	s.deadLetter(ctx, ev, attempts, lastErr.Error())
	return lastErr
}

// apply runs a single attempt. The outcome labels the metrics counter.
func (s *Service) apply(ctx context.Context, ev catalog.ChangeEvent) (string, error) {
	tombed, err := s.changeLog.IsTombstoned(ctx, ev.ItemID)
	if err != nil {
		return "", fmt.Errorf("check tombstone: %w", err)
	}
	if tombed {
		// Deletion wins over any late or replayed event for the item.
		s.logger.Debug("Ignoring event for tombstoned item",
			zap.String("item_id", ev.ItemID), zap.String("kind", string(ev.Kind)))
		return metrics.OutcomeSkipped, nil
	}

	if ev.Kind == catalog.KindDeleted {
		return s.applyDelete(ctx, ev)
	}
	return s.applyUpsert(ctx, ev)
}

func (s *Service) applyDelete(ctx context.Context, ev catalog.ChangeEvent) (string, error) {
	prior, known, err := s.changeLog.Snapshot(ctx, ev.ItemID)
	if err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}

	if err := s.index.Delete(ctx, ev.ItemID); err != nil {
		return "", fmt.Errorf("delete document: %w", err)
	}

	revision := 1
	var changes []reflection.FieldChange
	if known {
		revision = prior.Revision + 1
		gone := snapshot.Snapshot{ItemID: ev.ItemID}
		changes = diff.Compute(&gone, &prior)
	}

	ref, err := reflection.New(ev.ItemID, reflection.KindDeleted, changes,
		diff.Summary(reflection.KindDeleted, changes), revision, s.now())
	if err != nil {
		return "", fmt.Errorf("build reflection: %w", err)
	}
	if err := s.changeLog.CommitDelete(ctx, ev.ItemID, ref); err != nil {
		return "", fmt.Errorf("commit delete: %w", err)
	}

	s.logger.Info("Item deleted",
		zap.String("item_id", ev.ItemID), zap.Int("revision", revision))
	return metrics.OutcomeApplied, nil
}

func (s *Service) applyUpsert(ctx context.Context, ev catalog.ChangeEvent) (string, error) {
	snap, err := normalize.Item(ev.Item)
	if err != nil {
		return "", fmt.Errorf("normalize item: %w", err)
	}

	prior, known, err := s.changeLog.Snapshot(ctx, snap.ItemID)
	if err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}

	// A create and an update converge to the same decision: what matters
	// is whether we have applied state for the item, not which webhook
	// topic the sender chose.
	kind := reflection.KindCreated
	revision := 1
	var changes []reflection.FieldChange
	if known {
		kind = reflection.KindUpdated
		revision = prior.Revision + 1
		changes = diff.Compute(&snap, &prior)
		if len(changes) == 0 {
			if !s.trackTouches {
				return metrics.OutcomeSkipped, nil
			}
			return s.applyTouch(ctx, snap, prior, revision)
		}
	} else {
		changes = diff.Compute(&snap, nil)
	}

	embedText := normalize.EmbedText(&snap)
	result, err := s.embedder.Embed(ctx, embedText)
	if err != nil {
		return "", fmt.Errorf("vectorize item: %w", err)
	}

	snap.EmbedText = embedText
	snap.Revision = revision
	snap.AppliedAt = s.now()

	doc, err := document.New(snap.ItemID, embedText, result.Embedding, snap.Fields(), revision)
	if err != nil {
		return "", fmt.Errorf("build document: %w", err)
	}
	if err := s.index.Upsert(ctx, &doc); err != nil {
		return "", fmt.Errorf("upsert document: %w", err)
	}

	ref, err := reflection.New(snap.ItemID, kind, changes,
		diff.Summary(kind, changes), revision, snap.AppliedAt)
	if err != nil {
		return "", fmt.Errorf("build reflection: %w", err)
	}
	if err := s.changeLog.CommitUpdate(ctx, snap, ref); err != nil {
		return "", fmt.Errorf("commit update: %w", err)
	}

	s.logger.Info("Item synchronized",
		zap.String("item_id", snap.ItemID),
		zap.String("kind", string(kind)),
		zap.Int("revision", revision),
		zap.Int("changed_fields", len(changes)),
		zap.Int("tokens", result.TotalTokens),
	)
	return metrics.OutcomeApplied, nil
}

// applyTouch records a content-free change (e.g. only the upstream
// timestamp moved). The document keeps its vector; only the revision
// advances, so reflections stay aligned with the indexed state.
func (s *Service) applyTouch(
	ctx context.Context, next, prior snapshot.Snapshot, revision int,
) (string, error) {
	next.EmbedText = prior.EmbedText
	next.Revision = revision
	next.AppliedAt = s.now()

	err := s.index.Touch(ctx, next.ItemID, revision)
	if errors.Is(err, domain.ErrItemNotFound) {
		// Snapshot survived but the document is gone; rebuild it.
		result, eerr := s.embedder.Embed(ctx, next.EmbedText)
		if eerr != nil {
			return "", fmt.Errorf("vectorize item: %w", eerr)
		}
		doc, derr := document.New(next.ItemID, next.EmbedText, result.Embedding, next.Fields(), revision)
		if derr != nil {
			return "", fmt.Errorf("build document: %w", derr)
		}
		if uerr := s.index.Upsert(ctx, &doc); uerr != nil {
			return "", fmt.Errorf("rebuild document: %w", uerr)
		}
	} else if err != nil {
		return "", fmt.Errorf("touch document: %w", err)
	}

	ref, err := reflection.New(next.ItemID, reflection.KindTouched, nil,
		diff.Summary(reflection.KindTouched, nil), revision, next.AppliedAt)
	if err != nil {
		return "", fmt.Errorf("build reflection: %w", err)
	}
	if err := s.changeLog.CommitUpdate(ctx, next, ref); err != nil {
		return "", fmt.Errorf("commit touch: %w", err)
	}

	s.logger.Debug("Item touched",
		zap.String("item_id", next.ItemID), zap.Int("revision", revision))
	return metrics.OutcomeApplied, nil
}

func (s *Service) deadLetter(ctx context.Context, ev catalog.ChangeEvent, attempts int, reason string) {
	rec := domain.DeadLetter{
		ID:         uuid.NewString(),
		ItemID:     ev.ItemID,
		EventKind:  string(ev.Kind),
		DeliveryID: ev.DeliveryID,
		Reason:     reason,
		Attempts:   attempts,
		OccurredAt: s.now(),
	}
	if err := s.changeLog.DeadLetter(ctx, rec); err != nil {
		s.logger.Error("Failed to record dead letter",
			zap.String("item_id", ev.ItemID), zap.Error(err))
	}

	metrics.DeadLettersTotal.Inc()
	metrics.EventsTotal.WithLabelValues(string(ev.Kind), metrics.OutcomeDeadLettered).Inc()

	s.logger.Error("Change event dead-lettered",
		zap.String("item_id", ev.ItemID),
		zap.String("kind", string(ev.Kind)),
		zap.String("delivery_id", ev.DeliveryID),
		zap.Int("attempts", attempts),
		zap.String("reason", reason),
	)
}

func (s *Service) isHalted(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted[itemID]
}

func (s *Service) halt(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted[itemID] = true
}
