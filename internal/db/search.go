package db

// TagFilter is an exact-match condition on a TAG field.
type TagFilter struct {
	Field string
	Value string
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      []TagFilter // ANDed pre-filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is cosine similarity in [0, 1], converted from the distance the server returns.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
