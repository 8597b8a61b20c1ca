package domain

// SourceType classifies where a QARecord came from.
type SourceType string

const (
	SourceCurated  SourceType = "curated"
	SourceTicket   SourceType = "ticket"
	SourceImported SourceType = "imported"
)

// QARecord is an immutable curated question/answer entry. Records are never
// mutated in place; replacement is a new record with the same ID.
type QARecord struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Category   string     `json:"category,omitempty"`
	Keywords   []string   `json:"keywords,omitempty"`
	SourceType SourceType `json:"source_type"`
}

// RetrievedHit is a transient retrieval result. Similarity is in [0,1] and
// non-increasing with rank.
type RetrievedHit struct {
	Record     QARecord
	Similarity float64
	Rank       int
}

// Layer identifies which stage of the answer pipeline produced a Response.
type Layer string

const (
	LayerCurated    Layer = "curated"
	LayerRetrieval  Layer = "retrieval"
	LayerRAG        Layer = "rag"
	LayerGenerative Layer = "generative"
	LayerFallback   Layer = "fallback"
)

// Response is the stable output shape of the answer pipeline.
type Response struct {
	Text        string   `json:"text"`
	Confidence  float64  `json:"confidence"`
	Layer       Layer    `json:"layer"`
	Attribution []string `json:"attribution"`
	UsedContext bool     `json:"used_context"`
}

// AnswerOptions are per-request hints from the caller.
type AnswerOptions struct {
	UseKnowledgeBase bool
	MaxTokens        int
	Language         string
}

// DefaultAnswerOptions returns the options used when the caller passes none.
func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{UseKnowledgeBase: true}
}

// MatchMethod describes how the curated matcher found an answer.
type MatchMethod string

const (
	MatchExact   MatchMethod = "exact"
	MatchPartial MatchMethod = "partial"
	MatchKeyword MatchMethod = "keyword"
	MatchFuzzy   MatchMethod = "fuzzy"
)

// CuratedMatch is the result of a curated-table lookup.
type CuratedMatch struct {
	RecordID   string
	Answer     string
	Confidence float64
	Method     MatchMethod
}

// CorpusStats summarizes the persisted corpus and index state.
type CorpusStats struct {
	Records   int `json:"records"`
	Vectors   int `json:"vectors"`
	Dimension int `json:"dimension"`
}
