// Package chi is the HTTP edge: webhook intake plus the read-side API
// over reflections, snapshots and the search index.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
	healthuc "github.com/kailas-cloud/shopsync/internal/usecase/health"
)

// Error response codes returned to API clients.
const (
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "item_not_found"
	codeItemDeleted      = "item_deleted"
	codePayloadTooLarge  = "payload_too_large"
	codeEmbeddingError   = "embedding_provider_error"
	codeShuttingDown     = "shutting_down"
	codeInternalError    = "internal_error"
)

// Submitter hands an authenticated change event to the sync engine.
type Submitter interface {
	Submit(ev catalog.ChangeEvent) error
}

// Deduper filters replayed webhook deliveries.
type Deduper interface {
	Seen(deliveryID string) bool
	Forget(deliveryID string)
}

// ChangeLogReader is the read-side contract over durable sync state.
type ChangeLogReader interface {
	Snapshot(ctx context.Context, id string) (snapshot.Snapshot, bool, error)
	IsTombstoned(ctx context.Context, id string) (bool, error)
	Reflections(ctx context.Context, id string, offset, limit int) ([]reflection.Reflection, error)
	DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}

// Recommender answers similarity queries.
type Recommender interface {
	Similar(ctx context.Context, query string, limit int) ([]document.Match, error)
}

// WebhookConfig holds the intake settings for the webhook endpoints.
type WebhookConfig struct {
	// Secret signs webhook payloads; empty disables verification.
	Secret string
	// SignatureHeader carries the sender's HMAC (base64).
	SignatureHeader string
	// DeliveryIDHeader carries the sender's delivery identifier.
	DeliveryIDHeader string
	// MaxBodyBytes caps the accepted payload size.
	MaxBodyBytes int64
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the HTTP handlers to the use case services.
type Server struct {
	events        Submitter
	dedup         Deduper
	changeLog     ChangeLogReader
	recommend     Recommender
	health        *healthuc.Service
	webhook       WebhookConfig
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	events Submitter,
	dedup Deduper,
	changeLog ChangeLogReader,
	recommend Recommender,
	health *healthuc.Service,
	webhook WebhookConfig,
	logger *zap.Logger,
) *Server {
	if webhook.SignatureHeader == "" {
		webhook.SignatureHeader = DefaultSignatureHeader
	}
	if webhook.DeliveryIDHeader == "" {
		webhook.DeliveryIDHeader = DefaultDeliveryIDHeader
	}
	if webhook.MaxBodyBytes <= 0 {
		webhook.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		events:    events,
		dedup:     dedup,
		changeLog: changeLog,
		recommend: recommend,
		health:    health,
		webhook:   webhook,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrMalformedPayload, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingError),
	}
	return s
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chirouter.Router) {
	r.Post("/webhooks/shopify/products-create", s.handleWebhook(catalog.KindCreated))
	r.Post("/webhooks/shopify/products-update", s.handleWebhook(catalog.KindUpdated))
	r.Post("/webhooks/shopify/products-deletion", s.handleWebhook(catalog.KindDeleted))

	r.Get("/items/{id}/snapshot", s.handleSnapshot)
	r.Get("/items/{id}/reflections", s.handleReflections)
	r.Get("/search", s.handleSearch)
	r.Get("/deadletters", s.handleDeadLetters)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// snapshotResponse is the public shape of a last-applied snapshot.
type snapshotResponse struct {
	ItemID      string `json:"item_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
	Handle      string `json:"handle"`
	Tags        string `json:"tags"`
	Price       string `json:"price"`
	Revision    int    `json:"revision"`
	AppliedAt   int64  `json:"applied_at"`
}

// handleSnapshot handles GET /items/{id}/snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")

	snap, ok, err := s.changeLog.Snapshot(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !ok {
		tombed, terr := s.changeLog.IsTombstoned(r.Context(), id)
		if terr == nil && tombed {
			writeError(w, http.StatusGone, codeItemDeleted, "item was deleted")
			return
		}
		writeError(w, http.StatusNotFound, codeNotFound, "no applied state for item")
		return
	}

	writeJSON(w, http.StatusOK, snapshotResponse{
		ItemID:      snap.ItemID,
		Title:       snap.Title,
		Description: snap.Description,
		Vendor:      snap.Vendor,
		Handle:      snap.Handle,
		Tags:        snap.Tags,
		Price:       snap.Price,
		Revision:    snap.Revision,
		AppliedAt:   snap.AppliedAt,
	})
}

// handleReflections handles GET /items/{id}/reflections.
func (s *Server) handleReflections(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	refs, err := s.changeLog.Reflections(r.Context(), id, offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":     id,
		"offset":      offset,
		"limit":       limit,
		"reflections": refs,
	})
}

// handleSearch handles GET /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0)

	matches, err := s.recommend.Similar(r.Context(), query, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": matches,
		"total": len(matches),
	})
}

// handleDeadLetters handles GET /deadletters.
func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)

	recs, err := s.changeLog.DeadLetters(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": recs,
		"total": len(recs),
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrMalformedPayload,
		domain.ErrEmbeddingUnavailable,
		domain.ErrAuthFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
