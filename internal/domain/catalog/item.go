// Package catalog holds derived representations of the external commerce
// catalog. The catalog service owns the authoritative data; this service
// only ever consumes item payloads embedded in change notifications.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Variant is a sellable variation of an item. Only the price is relevant
// to indexing; the first variant's price is treated as the item price.
type Variant struct {
	Price string `json:"price"`
}

// Item is a catalog item as delivered in a webhook payload.
type Item struct {
	ID        string
	Title     string
	BodyHTML  string
	Vendor    string
	Handle    string
	Tags      string
	Variants  []Variant
	UpdatedAt time.Time
}

// itemJSON mirrors the webhook wire format. The upstream catalog sends
// numeric identifiers; they are normalized to strings on decode.
type itemJSON struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	BodyHTML  string          `json:"body_html"`
	Vendor    string          `json:"vendor"`
	Handle    string          `json:"handle"`
	Tags      string          `json:"tags"`
	Variants  []Variant       `json:"variants"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ParseItem decodes a webhook item payload. The identifier may arrive as a
// JSON number or string; both normalize to a string ID.
func ParseItem(data []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw itemJSON
	if err := dec.Decode(&raw); err != nil {
		return Item{}, fmt.Errorf("decode item: %w", err)
	}

	return Item{
		ID:        parseID(raw.ID),
		Title:     raw.Title,
		BodyHTML:  raw.BodyHTML,
		Vendor:    raw.Vendor,
		Handle:    raw.Handle,
		Tags:      raw.Tags,
		Variants:  raw.Variants,
		UpdatedAt: raw.UpdatedAt,
	}, nil
}

// ParseDeletion decodes a deletion payload, which carries the identifier only.
func ParseDeletion(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw struct {
		ID json.RawMessage `json:"id"`
	}
	if err := dec.Decode(&raw); err != nil {
		return "", fmt.Errorf("decode deletion: %w", err)
	}
	return parseID(raw.ID), nil
}

// parseID accepts a numeric or string JSON identifier. Absent or unparsable
// identifiers yield "", which downstream validation rejects.
func parseID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Price returns the first variant's price, or "0.00" when no variant exists.
func (it *Item) Price() string {
	if len(it.Variants) == 0 || it.Variants[0].Price == "" {
		return "0.00"
	}
	return it.Variants[0].Price
}
