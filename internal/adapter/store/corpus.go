package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.etcd.io/bbolt"

	"academybot/internal/domain"
)

var (
	bucketRecords = []byte("records")
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
	keyDimension  = []byte("dimension")
)

// ErrRecordNotFound is returned when a record ID is not in the corpus.
var ErrRecordNotFound = fmt.Errorf("record not found")

// BoltStore persists QARecords and their vectors in a single bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if needed) the corpus database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketRecords, bucketVectors, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// DB exposes the underlying database so the vector index can share it.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// PutRecord stores a record, normalizing its keywords. An existing record
// with the same ID is replaced whole.
func (s *BoltStore) PutRecord(rec domain.QARecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	rec.Question = strings.TrimSpace(rec.Question)
	if rec.Question == "" {
		return fmt.Errorf("record %s has empty question", rec.ID)
	}
	if strings.TrimSpace(rec.Answer) == "" {
		return fmt.Errorf("record %s has empty answer", rec.ID)
	}
	rec.Keywords = NormalizeKeywords(rec.Keywords)

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Put([]byte(rec.ID), data)
	})
}

// GetRecord loads a record by ID.
func (s *BoltStore) GetRecord(id string) (domain.QARecord, error) {
	var rec domain.QARecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// DeleteRecord removes a record by ID. Deleting a missing record is a no-op.
func (s *BoltStore) DeleteRecord(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Delete([]byte(id))
	})
}

// ListRecords returns all records sorted by ID.
func (s *BoltStore) ListRecords() ([]domain.QARecord, error) {
	var records []domain.QARecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec domain.QARecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip corrupted entries
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// ListBySource returns records with the given source type, sorted by ID.
func (s *BoltStore) ListBySource(src domain.SourceType) ([]domain.QARecord, error) {
	all, err := s.ListRecords()
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.QARecord, 0, len(all))
	for _, rec := range all {
		if rec.SourceType == src {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Count returns the number of stored records.
func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// NormalizeKeywords lowercases, trims and deduplicates keywords, preserving
// a stable sorted order.
func NormalizeKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
