package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"academybot/internal/domain"
	"academybot/internal/port"
)

// IngestUseCase loads corpus JSON documents into the corpus store and the
// vector index.
type IngestUseCase struct {
	corpus   port.CorpusStore
	index    port.VectorIndex
	embedder port.Embedder
	log      *zap.Logger

	// OnRecord, when set, is called once per ingested record (progress
	// reporting).
	OnRecord func()
}

// NewIngestUseCase creates an ingest pipeline over the given stores.
func NewIngestUseCase(corpus port.CorpusStore, index port.VectorIndex, embedder port.Embedder, log *zap.Logger) *IngestUseCase {
	return &IngestUseCase{
		corpus:   corpus,
		index:    index,
		embedder: embedder,
		log:      log,
	}
}

// corpusFile is the on-disk corpus shape: {"documents": [...]}.
type corpusFile struct {
	Documents []rawRecord `json:"documents"`
}

// rawRecord tolerates the loosely typed fields found in exported corpora:
// keywords may be a list or a single string, category may be missing.
type rawRecord struct {
	ID         string          `json:"id"`
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	Category   json.RawMessage `json:"category,omitempty"`
	Keywords   json.RawMessage `json:"keywords,omitempty"`
	SourceType string          `json:"source_type,omitempty"`
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	Added   int
	Skipped int
}

// IngestFile parses one corpus JSON file and loads its records.
func (u *IngestUseCase) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return IngestResult{}, fmt.Errorf("failed to parse corpus file %s: %w", path, err)
	}

	return u.ingestRecords(ctx, file.Documents)
}

// IngestFiles ingests several corpus files, summing the results.
func (u *IngestUseCase) IngestFiles(ctx context.Context, paths []string) (IngestResult, error) {
	var total IngestResult
	for _, path := range paths {
		res, err := u.IngestFile(ctx, path)
		if err != nil {
			return total, err
		}
		total.Added += res.Added
		total.Skipped += res.Skipped
	}
	return total, nil
}

func (u *IngestUseCase) ingestRecords(ctx context.Context, raws []rawRecord) (IngestResult, error) {
	var result IngestResult

	records := make([]domain.QARecord, 0, len(raws))
	for _, raw := range raws {
		rec, ok := u.normalize(raw)
		if !ok {
			result.Skipped++
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return result, nil
	}

	// Embed question+answer pairs in one batched call.
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Question + "\n" + rec.Answer
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("failed to embed corpus records: %w", err)
	}
	if len(vectors) != len(records) {
		return result, fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records))
	}

	for i, rec := range records {
		if err := u.corpus.PutRecord(rec); err != nil {
			u.log.Warn("skipping record", zap.String("id", rec.ID), zap.Error(err))
			result.Skipped++
			continue
		}

		metadata := map[string]string{}
		if rec.Category != "" {
			metadata["category"] = rec.Category
		}
		if err := u.index.Upsert(rec.ID, vectors[i], metadata); err != nil {
			return result, fmt.Errorf("failed to index record %s: %w", rec.ID, err)
		}

		result.Added++
		if u.OnRecord != nil {
			u.OnRecord()
		}
	}

	return result, nil
}

// normalize converts a raw record into a QARecord, dropping header rows and
// records without usable text. Heterogeneous metadata is normalized: keyword
// lists become lowercased sets, scalar keywords become a single entry,
// anything else is dropped.
func (u *IngestUseCase) normalize(raw rawRecord) (domain.QARecord, bool) {
	question := strings.TrimSpace(raw.Question)
	answer := strings.TrimSpace(raw.Answer)
	if question == "" || answer == "" {
		return domain.QARecord{}, false
	}

	// Exported ticket sheets carry their header row as a record.
	if question == "Questions" || question == "Answers" {
		return domain.QARecord{}, false
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return domain.QARecord{
		ID:         id,
		Question:   question,
		Answer:     answer,
		Category:   stringValue(raw.Category),
		Keywords:   stringList(raw.Keywords),
		SourceType: sourceType(raw.SourceType),
	}, true
}

// sourceType maps the raw field to a known source, defaulting to imported.
func sourceType(raw string) domain.SourceType {
	switch domain.SourceType(raw) {
	case domain.SourceCurated:
		return domain.SourceCurated
	case domain.SourceTicket:
		return domain.SourceTicket
	default:
		return domain.SourceImported
	}
}

// stringValue decodes a JSON value that should be a string; anything else
// becomes its string form or is dropped.
func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strings.TrimSpace(strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", n), "0"), "."))
	}
	return ""
}

// stringList decodes keywords that may arrive as a list or a single string.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return strings.Fields(s)
	}
	return nil
}
