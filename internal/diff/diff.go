// Package diff computes field-level change sets between an incoming
// normalized item and its last applied snapshot, plus the short
// human-readable summaries recorded on every reflection.
package diff

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/shopsync/internal/domain/reflection"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

// MaxSummaryLen caps change summaries so reflections stay short and
// reproducible regardless of field content.
const MaxSummaryLen = 256

// Compute returns the field changes between prior and next, ordered by the
// fixed field priority. A nil prior means a first-ever create: every
// non-empty field is reported as added (empty Old).
func Compute(next *snapshot.Snapshot, prior *snapshot.Snapshot) []reflection.FieldChange {
	nextFields := next.Fields()

	var priorFields map[string]string
	if prior != nil {
		priorFields = prior.Fields()
	}

	var changes []reflection.FieldChange
	for _, field := range snapshot.FieldOrder {
		oldVal := priorFields[field]
		newVal := nextFields[field]
		if prior == nil && newVal == "" {
			continue
		}
		if prior != nil && oldVal == newVal {
			continue
		}
		changes = append(changes, reflection.FieldChange{Field: field, Old: oldVal, New: newVal})
	}
	return changes
}

// Summary builds a deterministic short description of a change set. Fields
// appear in priority order; the price change spells out both values, other
// fields just note the update.
func Summary(kind reflection.Kind, changes []reflection.FieldChange) string {
	switch kind {
	case reflection.KindCreated:
		return "item created"
	case reflection.KindDeleted:
		return "item deleted"
	case reflection.KindTouched:
		return "metadata touch, content unchanged"
	}

	if len(changes) == 0 {
		return "no changes"
	}

	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Field == snapshot.FieldPrice {
			parts = append(parts, fmt.Sprintf("price changed from %s to %s", c.Old, c.New))
			continue
		}
		parts = append(parts, c.Field+" updated")
	}

	return truncate(strings.Join(parts, "; "), MaxSummaryLen)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const ellipsis = "..."
	cut := limit - len(ellipsis)
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
