package chi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/lane"
	"github.com/kailas-cloud/shopsync/internal/metrics"
)

// Webhook intake defaults, matching the Shopify delivery conventions.
const (
	DefaultSignatureHeader  = "X-Shopify-Hmac-Sha256"
	DefaultDeliveryIDHeader = "X-Shopify-Webhook-Id"
	DefaultMaxBodyBytes     = 1 << 20 // 1 MiB
)

// handleWebhook builds the intake handler for one webhook topic. The
// handler authenticates, deduplicates and enqueues; it never waits for
// the mutation to apply.
func (s *Server) handleWebhook(kind catalog.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.webhook.MaxBodyBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "payload too large")
				return
			}
			writeError(w, http.StatusBadRequest, codeBadRequest, "cannot read body")
			return
		}

		if !s.verifySignature(r, body) {
			metrics.EventsTotal.WithLabelValues(string(kind), metrics.OutcomeRejected).Inc()
			s.logger.Warn("Webhook signature rejected",
				zap.String("kind", string(kind)), zap.String("ip", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid webhook signature")
			return
		}

		ev, err := decodeEvent(kind, body)
		if err != nil {
			metrics.EventsTotal.WithLabelValues(string(kind), metrics.OutcomeRejected).Inc()
			writeError(w, http.StatusBadRequest, codeBadRequest, "malformed webhook payload")
			return
		}
		ev.DeliveryID = s.deliveryID(r, body)
		ev.ReceivedAt = time.Now()

		if s.dedup.Seen(ev.DeliveryID) {
			metrics.EventsTotal.WithLabelValues(string(kind), metrics.OutcomeDuplicate).Inc()
			s.logger.Debug("Duplicate webhook delivery",
				zap.String("delivery_id", ev.DeliveryID), zap.String("item_id", ev.ItemID))
			s.ack(w)
			return
		}

		if err := s.events.Submit(ev); err != nil {
			// The event never reached a lane: release the delivery ID so
			// the sender's retry is processed instead of acked as a
			// duplicate.
			s.dedup.Forget(ev.DeliveryID)
			if errors.Is(err, lane.ErrClosed) {
				writeError(w, http.StatusServiceUnavailable, codeShuttingDown, "service is shutting down")
				return
			}
			s.handleDomainError(w, err)
			return
		}

		s.ack(w)
	}
}

// ack acknowledges receipt. The sender only needs to know the delivery
// landed; processing outcome is visible through reflections.
func (s *Server) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// decodeEvent parses the webhook body into a change event.
func decodeEvent(kind catalog.EventKind, body []byte) (catalog.ChangeEvent, error) {
	if kind == catalog.KindDeleted {
		id, err := catalog.ParseDeletion(body)
		if err != nil {
			return catalog.ChangeEvent{}, err
		}
		if id == "" {
			return catalog.ChangeEvent{}, errors.New("deletion without item id")
		}
		return catalog.ChangeEvent{Kind: kind, ItemID: id}, nil
	}

	it, err := catalog.ParseItem(body)
	if err != nil {
		return catalog.ChangeEvent{}, err
	}
	if it.ID == "" {
		return catalog.ChangeEvent{}, errors.New("item without id")
	}
	return catalog.ChangeEvent{Kind: kind, ItemID: it.ID, Item: &it}, nil
}

// verifySignature checks the sender's HMAC-SHA256 over the raw body.
// An empty secret disables verification (local development only).
func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	if s.webhook.Secret == "" {
		return true
	}

	provided := r.Header.Get(s.webhook.SignatureHeader)
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.webhook.Secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(provided), []byte(expected))
}

// deliveryID returns the sender's delivery identifier, falling back to
// a body digest so replays without the header still deduplicate.
func (s *Server) deliveryID(r *http.Request, body []byte) string {
	if id := r.Header.Get(s.webhook.DeliveryIDHeader); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
