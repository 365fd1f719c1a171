package domain

// DeadLetter records an event whose processing was abandoned after
// exhausting retries (or rejected as unprocessable), kept for manual
// inspection. Never produced for events that applied successfully.
type DeadLetter struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	EventKind  string `json:"event_kind"`
	DeliveryID string `json:"delivery_id"`
	Reason     string `json:"reason"`
	Attempts   int    `json:"attempts"`
	OccurredAt int64  `json:"occurred_at"`
}
