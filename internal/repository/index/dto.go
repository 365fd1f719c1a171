package index

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shopsync/internal/domain"
	"github.com/kailas-cloud/shopsync/internal/domain/document"
)

// Internal hash field names. Double-underscore keeps them clear of
// metadata field names.
const (
	fieldVector   = "__vector"
	fieldText     = "__text"
	fieldRevision = "__revision"
)

func itemKeyPrefix() string { return domain.KeyPrefix + "item:" }

func itemKey(id string) string { return itemKeyPrefix() + id }

func extractID(key string) string { return strings.TrimPrefix(key, itemKeyPrefix()) }

// buildHashFields flattens a Document into the HSET field map.
func buildHashFields(doc *document.Document) map[string]string {
	m := make(map[string]string, 3+len(doc.Meta()))
	m[fieldVector] = vectorToBytes(doc.Vector())
	m[fieldText] = doc.EmbedText()
	m[fieldRevision] = strconv.Itoa(doc.Revision())
	for k, v := range doc.Meta() {
		m[k] = v
	}
	return m
}

// parseHashFields hydrates a Document from a hash field map.
func parseHashFields(id string, fields map[string]string) document.Document {
	var embedText string
	var vector []float32
	var revision int
	meta := make(map[string]string)

	for k, v := range fields {
		switch k {
		case fieldVector:
			vector = bytesToVector(v)
		case fieldText:
			embedText = v
		case fieldRevision:
			revision, _ = strconv.Atoi(v)
		default:
			meta[k] = v
		}
	}

	return document.Reconstruct(id, embedText, vector, meta, revision)
}

// metaFromFields strips internal fields from a search hit's field map.
func metaFromFields(fields map[string]string) map[string]string {
	meta := make(map[string]string, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "__") {
			continue
		}
		meta[k] = v
	}
	return meta
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
