package port

import "academybot/internal/domain"

// CorpusStore owns the persisted QARecords. Records are replaced whole by ID,
// never mutated in place.
type CorpusStore interface {
	PutRecord(rec domain.QARecord) error

	GetRecord(id string) (domain.QARecord, error)

	DeleteRecord(id string) error

	ListRecords() ([]domain.QARecord, error)

	// ListBySource returns records with the given source type.
	ListBySource(src domain.SourceType) ([]domain.QARecord, error)

	Count() (int, error)

	Close() error
}

// VectorIndex stores and searches embedding vectors keyed by QARecord ID.
type VectorIndex interface {
	// Upsert adds or replaces the vector for id. The write is durable before
	// Upsert returns success.
	Upsert(id string, vector []float32, metadata map[string]string) error

	// Query returns up to k entries sorted by ascending cosine distance.
	Query(vector []float32, k int) ([]VectorResult, error)

	Delete(id string) error

	Count() (int, error)

	// Dimension returns the vector dimension recorded in the index, or 0 if
	// the index is empty and no dimension has been recorded yet.
	Dimension() int
}

// VectorResult is a single nearest-neighbor result.
type VectorResult struct {
	ID       string
	Distance float64
	Metadata map[string]string
}
