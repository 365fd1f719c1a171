package document

// Match is one similarity-search hit: an indexed item with its score and
// metadata snapshot.
type Match struct {
	ID    string            `json:"id"`
	Score float64           `json:"score"`
	Meta  map[string]string `json:"meta,omitempty"`
}
