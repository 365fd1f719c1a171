// Package normalize maps raw catalog items into the canonical document
// shape the index expects. The mapping is deterministic: identical item
// content always yields identical normalized output, which is what makes
// diffing stable and spares the embedding provider from no-op re-embeds.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/domain/snapshot"
)

// Item normalizes a catalog item. Missing optional fields become empty
// strings; a missing identifier is the only structural failure.
func Item(it *catalog.Item) (snapshot.Snapshot, error) {
	if it == nil || it.ID == "" {
		return snapshot.Snapshot{}, fmt.Errorf("missing item identifier: %w", domain.ErrNormalization)
	}

	snap := snapshot.Snapshot{
		ItemID:      it.ID,
		Title:       CollapseSpace(it.Title),
		Description: StripHTML(it.BodyHTML),
		Vendor:      CollapseSpace(it.Vendor),
		Handle:      CollapseSpace(it.Handle),
		Tags:        CollapseSpace(it.Tags),
		Price:       it.Price(),
	}
	snap.EmbedText = EmbedText(&snap)
	return snap, nil
}

// EmbedText builds the embeddable text in fixed field order.
func EmbedText(s *snapshot.Snapshot) string {
	return fmt.Sprintf("Product: %s. Vendor: %s. Tags: %s. Description: %s",
		s.Title, s.Vendor, s.Tags, s.Description)
}

// StripHTML extracts plain text from an HTML fragment, joining text nodes
// with single spaces and collapsing all whitespace runs.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	tok := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			text := strings.TrimSpace(string(tok.Text()))
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
	return CollapseSpace(b.String())
}

// CollapseSpace trims s and collapses internal whitespace runs to single
// spaces, so formatting-only edits never register as content changes.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
