// Package reflection defines the append-only audit records describing what
// changed on an item and why. A reflection is never mutated after creation.
package reflection

import "fmt"

// Kind classifies the change a reflection records.
type Kind string

const (
	// KindCreated marks the first indexing of an item.
	KindCreated Kind = "created"
	// KindUpdated marks a content change on an indexed item.
	KindUpdated Kind = "updated"
	// KindDeleted marks the terminal removal of an item.
	KindDeleted Kind = "deleted"
	// KindTouched marks a metadata-only touch with no content change.
	KindTouched Kind = "touched"
)

// FieldChange is one before/after pair in a change diff. Old is "" for
// fields added by a first-ever create.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Reflection is one audit record for one applied mutation. Its revision
// equals the indexed document's revision at the time it was produced and
// is strictly increasing per item.
type Reflection struct {
	ItemID    string        `json:"item_id"`
	Kind      Kind          `json:"kind"`
	Diff      []FieldChange `json:"diff,omitempty"`
	Summary   string        `json:"summary"`
	Revision  int           `json:"revision"`
	CreatedAt int64         `json:"created_at"`
}

// New validates and creates a Reflection.
func New(itemID string, kind Kind, diff []FieldChange, summary string, revision int, createdAt int64) (Reflection, error) {
	if itemID == "" {
		return Reflection{}, fmt.Errorf("reflection item ID is required")
	}
	if revision < 1 {
		return Reflection{}, fmt.Errorf("reflection revision must be >= 1, got %d", revision)
	}
	switch kind {
	case KindCreated, KindUpdated, KindDeleted, KindTouched:
	default:
		return Reflection{}, fmt.Errorf("unknown reflection kind %q", kind)
	}
	return Reflection{
		ItemID:    itemID,
		Kind:      kind,
		Diff:      diff,
		Summary:   summary,
		Revision:  revision,
		CreatedAt: createdAt,
	}, nil
}
