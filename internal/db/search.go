package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// ClauseKind selects how a TextClause matches its terms.
type ClauseKind int

const (
	// ClauseFuzzy matches terms in full-text fields within each term's edit distance.
	ClauseFuzzy ClauseKind = iota
	// ClauseExact matches terms against exact-match (tag) fields.
	ClauseExact
	// ClauseInfix matches terms as substrings of full-text fields.
	ClauseInfix
)

// Term is a single query token with its allowed edit distance.
type Term struct {
	Text     string
	Distance int
}

// TextClause is one disjunct of a TextQuery. Terms inside a clause are OR-ed.
type TextClause struct {
	Kind   ClauseKind
	Fields []string
	Terms  []Term
	Weight float64 // 0 = engine default
}

// TextQuery is the input for a full-text search. Clauses are OR-ed.
type TextQuery struct {
	IndexName    string
	Clauses      []TextClause
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
