package chi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
	healthuc "github.com/kailas-cloud/shopsync/internal/usecase/health"
)

type mockSubmitter struct {
	submitFn func(ev catalog.ChangeEvent) error
	events   []catalog.ChangeEvent
}

func (m *mockSubmitter) Submit(ev catalog.ChangeEvent) error {
	m.events = append(m.events, ev)
	if m.submitFn != nil {
		return m.submitFn(ev)
	}
	return nil
}

type mockDeduper struct {
	seen    map[string]bool
	forgets []string
}

func (m *mockDeduper) Seen(deliveryID string) bool {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	was := m.seen[deliveryID]
	m.seen[deliveryID] = true
	return was
}

func (m *mockDeduper) Forget(deliveryID string) {
	m.forgets = append(m.forgets, deliveryID)
	delete(m.seen, deliveryID)
}

type mockChangeLog struct {
	snapshotFn     func(ctx context.Context, id string) (snapshot.Snapshot, bool, error)
	isTombstonedFn func(ctx context.Context, id string) (bool, error)
	reflectionsFn  func(ctx context.Context, id string, offset, limit int) ([]reflection.Reflection, error)
	deadLettersFn  func(ctx context.Context, limit int) ([]domain.DeadLetter, error)
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

func (m *mockChangeLog) Reflections(ctx context.Context, id string, offset, limit int) ([]reflection.Reflection, error) {
	if m.reflectionsFn != nil {
		return m.reflectionsFn(ctx, id, offset, limit)
	}
	return nil, nil
}

func (m *mockChangeLog) DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	if m.deadLettersFn != nil {
		return m.deadLettersFn(ctx, limit)
	}
	return nil, nil
}

type mockRecommender struct {
	similarFn func(ctx context.Context, query string, limit int) ([]document.Match, error)
}

func (m *mockRecommender) Similar(ctx context.Context, query string, limit int) ([]document.Match, error) {
	if m.similarFn != nil {
		return m.similarFn(ctx, query, limit)
	}
	return nil, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type testHarness struct {
	server    *Server
	router    *chirouter.Mux
	submitter *mockSubmitter
	dedup     *mockDeduper
	changeLog *mockChangeLog
	recommend *mockRecommender
}

func newTestHarness(t *testing.T, secret string) *testHarness {
	t.Helper()

	h := &testHarness{
		submitter: &mockSubmitter{},
		dedup:     &mockDeduper{},
		changeLog: &mockChangeLog{},
		recommend: &mockRecommender{},
	}
	h.server = NewServer(
		h.submitter, h.dedup, h.changeLog, h.recommend,
		healthuc.New(&mockPinger{}, nil),
		WebhookConfig{Secret: secret},
		zap.NewNop(),
	)
	h.router = chirouter.NewRouter()
	h.server.Register(h.router)
	return h
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
