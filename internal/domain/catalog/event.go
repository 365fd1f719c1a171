package catalog

import "time"

// EventKind classifies a catalog mutation.
type EventKind string

const (
	// KindCreated is a new-item notification carrying the full item.
	KindCreated EventKind = "created"
	// KindUpdated is a changed-item notification carrying the full item.
	KindUpdated EventKind = "updated"
	// KindDeleted is a removed-item notification carrying the identifier only.
	KindDeleted EventKind = "deleted"
)

// ChangeEvent is a decoded, authenticated change notification. It lives
// only from receipt to application; nothing persists it beyond the
// deduplication window.
type ChangeEvent struct {
	Kind       EventKind
	ItemID     string
	Item       *Item // nil for KindDeleted
	DeliveryID string
	ReceivedAt time.Time
}
