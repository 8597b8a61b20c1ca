package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"academybot/internal/domain"
	"academybot/internal/port"
)

// memCorpus is an in-memory port.CorpusStore.
type memCorpus struct {
	mu      sync.Mutex
	records map[string]domain.QARecord
}

func newMemCorpus(records ...domain.QARecord) *memCorpus {
	c := &memCorpus{records: make(map[string]domain.QARecord)}
	for _, rec := range records {
		c.records[rec.ID] = rec
	}
	return c
}

func (c *memCorpus) PutRecord(rec domain.QARecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.ID] = rec
	return nil
}

func (c *memCorpus) GetRecord(id string) (domain.QARecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return domain.QARecord{}, fmt.Errorf("record not found: %s", id)
	}
	return rec, nil
}

func (c *memCorpus) DeleteRecord(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
	return nil
}

func (c *memCorpus) ListRecords() ([]domain.QARecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.QARecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memCorpus) ListBySource(src domain.SourceType) ([]domain.QARecord, error) {
	all, _ := c.ListRecords()
	out := make([]domain.QARecord, 0, len(all))
	for _, rec := range all {
		if rec.SourceType == src {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *memCorpus) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records), nil
}

func (c *memCorpus) Close() error { return nil }

// memIndex is an in-memory brute-force port.VectorIndex.
type memIndex struct {
	mu        sync.Mutex
	dimension int
	vectors   map[string][]float32
	metadata  map[string]map[string]string
}

func newMemIndex(dimension int) *memIndex {
	return &memIndex{
		dimension: dimension,
		vectors:   make(map[string][]float32),
		metadata:  make(map[string]map[string]string),
	}
}

func (m *memIndex) Upsert(id string, vector []float32, metadata map[string]string) error {
	if len(vector) != m.dimension {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", m.dimension, len(vector))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = vector
	m.metadata[id] = metadata
	return nil
}

func (m *memIndex) Query(vector []float32, k int) ([]port.VectorResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]port.VectorResult, 0, len(m.vectors))
	for id, v := range m.vectors {
		results = append(results, port.VectorResult{
			ID:       id,
			Distance: 1 - cosine(vector, v),
			Metadata: m.metadata[id],
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (m *memIndex) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	delete(m.metadata, id)
	return nil
}

func (m *memIndex) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors), nil
}

func (m *memIndex) Dimension() int { return m.dimension }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fixedEmbedder returns preset vectors for known texts and a default vector
// otherwise.
type fixedEmbedder struct {
	dimension int
	byText    map[string][]float32
	fallback  []float32
	err       error
}

func newFixedEmbedder(dimension int) *fixedEmbedder {
	fallback := make([]float32, dimension)
	fallback[dimension-1] = 1
	return &fixedEmbedder{
		dimension: dimension,
		byText:    make(map[string][]float32),
		fallback:  fallback,
	}
}

func (e *fixedEmbedder) set(text string, vector []float32) {
	e.byText[text] = vector
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.byText[text]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

func (e *fixedEmbedder) Dimension() int    { return e.dimension }
func (e *fixedEmbedder) ModelName() string { return "fixed" }

// stubRouter is a scripted CompletionRouter.
type stubRouter struct {
	text        string
	provider    string
	err         error
	unavailable bool
	calls       int

	lastSystem string
	lastUser   string
}

func (r *stubRouter) Complete(_ context.Context, systemPrompt, userPrompt string, _ port.CompletionParams) (string, string, error) {
	r.calls++
	r.lastSystem = systemPrompt
	r.lastUser = userPrompt
	if r.err != nil {
		return "", "", r.err
	}
	return r.text, r.provider, nil
}

func (r *stubRouter) Available() bool { return !r.unavailable }

// stubRetriever returns fixed hits.
type stubRetriever struct {
	hits []domain.RetrievedHit
	err  error
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, _ int) ([]domain.RetrievedHit, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.hits, nil
}
