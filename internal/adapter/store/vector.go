package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"academybot/internal/port"
)

// BoltVectorIndex implements port.VectorIndex on bbolt with an in-memory
// cache for search. Brute-force cosine distance; the corpus is small enough
// that an ANN structure is not worth the complexity.
type BoltVectorIndex struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	vectors   map[string]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	metadata map[string]string
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// NewBoltVectorIndex creates a vector index backed by db. The dimension is
// checked against any dimension previously recorded in the database; a
// mismatch is fatal so stale indexes are never silently mixed with a new
// embedding model.
func NewBoltVectorIndex(db *bbolt.DB, dimension int) (*BoltVectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if stored := meta.Get(keyDimension); stored != nil {
			recorded := int(binary.BigEndian.Uint32(stored))
			if recorded != dimension {
				return fmt.Errorf("index dimension %d does not match embedder dimension %d; re-ingest the corpus", recorded, dimension)
			}
			return nil
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(dimension))
		return meta.Put(keyDimension, buf)
	})
	if err != nil {
		return nil, err
	}

	idx := &BoltVectorIndex{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string]vectorEntry),
	}

	if err := idx.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return idx, nil
}

// loadVectors loads all persisted vectors into memory.
func (s *BoltVectorIndex) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{
				vector:   stored.Vector,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
}

// Upsert adds or replaces the vector for id. The bbolt transaction commits
// before the in-memory cache is visible to readers, so a concurrent Query
// observes either the pre- or post-state.
func (s *BoltVectorIndex) Upsert(id string, vector []float32, metadata map[string]string) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	stored := storedVector{Vector: vector, Metadata: metadata}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Put([]byte(id), data)
	})
	if err != nil {
		return err
	}

	s.vectors[id] = vectorEntry{vector: vector, metadata: metadata}
	return nil
}

// Query returns up to k entries sorted by ascending cosine distance.
func (s *BoltVectorIndex) Query(vector []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	results := make([]port.VectorResult, 0, len(s.vectors))
	for id, entry := range s.vectors {
		dist := 1 - cosineSimilarity(vector, entry.vector)
		results = append(results, port.VectorResult{
			ID:       id,
			Distance: dist,
			Metadata: entry.metadata,
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

// Delete removes vectors by ID.
func (s *BoltVectorIndex) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Delete([]byte(id))
	})
	if err != nil {
		return err
	}

	delete(s.vectors, id)
	return nil
}

// Count returns the number of vectors in the index.
func (s *BoltVectorIndex) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// Dimension returns the configured vector dimension.
func (s *BoltVectorIndex) Dimension() int {
	return s.dimension
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
