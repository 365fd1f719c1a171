// Package snapshot holds the last successfully applied normalized state of
// an item. Snapshots exist solely so the diff engine can compare an
// incoming update against what the index currently reflects.
package snapshot

// Field names, in the order diffs and summaries report them.
const (
	FieldPrice       = "price"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldVendor      = "vendor"
	FieldHandle      = "handle"
	FieldTags        = "tags"
)

// FieldOrder is the fixed priority ordering for diff output and summaries.
var FieldOrder = []string{
	FieldPrice, FieldTitle, FieldDescription, FieldVendor, FieldHandle, FieldTags,
}

// Snapshot is the normalized representation of one item at one revision.
// A snapshot is written only after the matching index mutation succeeded,
// so it never reflects in-flight or failed state.
type Snapshot struct {
	ItemID      string `json:"item_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
	Handle      string `json:"handle"`
	Tags        string `json:"tags"`
	Price       string `json:"price"`
	EmbedText   string `json:"embed_text"`
	Revision    int    `json:"revision"`
	AppliedAt   int64  `json:"applied_at"`
}

// Fields returns the diffable fields keyed by field name.
func (s *Snapshot) Fields() map[string]string {
	return map[string]string{
		FieldPrice:       s.Price,
		FieldTitle:       s.Title,
		FieldDescription: s.Description,
		FieldVendor:      s.Vendor,
		FieldHandle:      s.Handle,
		FieldTags:        s.Tags,
	}
}
