// Package db defines the storage facade the repositories build on.
// Consumers depend on the narrow sub-interfaces, never on the facade.
package db

import (
	"context"
	"time"
)

// Store is the full database facade.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	KVStore
	HashStore
	ListStore
	IndexManager
	Searcher
	Committer
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// HashStore provides hash-based operations for indexed documents.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ListStore provides ordered-list operations for reflection histories and
// the dead-letter record.
type ListStore interface {
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}

// Committer provides the atomic snapshot+reflection writes the change-log
// contract requires: both writes land or neither does.
type Committer interface {
	// CommitUpdate atomically sets the snapshot and appends the reflection,
	// trimming the reflection list to retain entries when retain > 0.
	CommitUpdate(ctx context.Context, snapKey string, snapJSON []byte, reflKey string, reflJSON []byte, retain int) error
	// CommitDelete atomically removes the snapshot, marks the tombstone,
	// and appends the terminal reflection.
	CommitDelete(ctx context.Context, snapKey, tombKey, reflKey string, reflJSON []byte, retain int) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
}

// Searcher provides KNN search over an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// FieldType enumerates FT schema field types.
type FieldType string

// Supported schema field types.
const (
	FieldText    FieldType = "TEXT"
	FieldTag     FieldType = "TAG"
	FieldNumeric FieldType = "NUMERIC"
	FieldVector  FieldType = "VECTOR"
)

// IndexField describes one schema field of an FT index.
type IndexField struct {
	Name string
	Type FieldType
	// Vector parameters, used when Type == FieldVector.
	Dimensions  int
	HNSWM       int
	EFConstruct int
}

// IndexDefinition describes an FT index over hash keys.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
