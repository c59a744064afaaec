package models

// Document is a loaded source file. It is never modified after loading.
type Document struct {
	Path    string
	Content string
}

// Chunk represents a span of a document that gets its own embedding
type Chunk struct {
	Text   string
	Source string
}

// ScoredResult is a retrieved chunk with its similarity score.
type ScoredResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type Response struct {
	Query   string         `json:"query"`
	Answer  string         `json:"response"`
	Sources []ScoredResult `json:"source_documents"`
}
