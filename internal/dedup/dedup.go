// Package dedup collapses the notification source's at-least-once delivery
// into effectively-once processing by remembering recently seen delivery
// identifiers for a bounded time window.
package dedup

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default sizing: 24h window, enough entries for sustained webhook traffic
// without unbounded growth.
const (
	DefaultWindow     = 24 * time.Hour
	DefaultMaxEntries = 100_000
)

// Registry is a time-windowed set of delivery identifiers, safe for
// concurrent use across webhook handlers.
type Registry struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

// NewRegistry creates a registry evicting entries after window, holding at
// most maxEntries. Non-positive arguments fall back to defaults.
func NewRegistry(window time.Duration, maxEntries int) *Registry {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Registry{
		cache: expirable.NewLRU[string, struct{}](maxEntries, nil, window),
	}
}

// Seen reports whether deliveryID was already observed within the window,
// marking it as observed either way. The check-and-mark is atomic so two
// concurrent re-deliveries cannot both pass.
func (r *Registry) Seen(deliveryID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cache.Get(deliveryID); ok {
		return true
	}
	r.cache.Add(deliveryID, struct{}{})
	return false
}

// Forget drops deliveryID so a later redelivery is processed again.
// Intake calls this when an accepted delivery could not be enqueued.
func (r *Registry) Forget(deliveryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(deliveryID)
}

// Len returns the current number of tracked identifiers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
