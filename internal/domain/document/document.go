// Package document defines the indexed document shape: the derived record
// this service maintains inside the vector index for each live item.
package document

import "fmt"

// Document is one indexed item (immutable value object). Exactly one
// document exists per live item identifier; none for deleted items.
type Document struct {
	id        string
	embedText string
	vector    []float32
	meta      map[string]string
	revision  int
}

// New validates and creates a Document.
func New(id, embedText string, vector []float32, meta map[string]string, revision int) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if embedText == "" {
		return Document{}, fmt.Errorf("embeddable text is required")
	}
	if len(vector) == 0 {
		return Document{}, fmt.Errorf("vector is required")
	}
	if revision < 1 {
		return Document{}, fmt.Errorf("revision must be >= 1, got %d", revision)
	}
	return Document{
		id:        id,
		embedText: embedText,
		vector:    vector,
		meta:      cloneMeta(meta),
		revision:  revision,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, embedText string, vector []float32, meta map[string]string, revision int) Document {
	return Document{id: id, embedText: embedText, vector: vector, meta: meta, revision: revision}
}

// ID returns the item identifier.
func (d *Document) ID() string { return d.id }

// EmbedText returns the normalized text the vector was computed from.
func (d *Document) EmbedText() string { return d.embedText }

// Vector returns the embedding vector. Opaque to every consumer.
func (d *Document) Vector() []float32 { return d.vector }

// Meta returns the structured metadata snapshot.
func (d *Document) Meta() map[string]string { return d.meta }

// Revision returns the document revision counter.
func (d *Document) Revision() int { return d.revision }

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
