package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"academybot/internal/adapter/analyzer"
	"academybot/internal/domain"
	"academybot/internal/port"
)

// RetrieveUseCase finds corpus records semantically close to a question.
// It never calls an LLM.
type RetrieveUseCase struct {
	embedder port.Embedder
	index    port.VectorIndex
	corpus   port.CorpusStore

	lexicalBonus      float64
	minQuestionTokens int
	log               *zap.Logger
}

// NewRetrieveUseCase creates a retriever over the given stores.
func NewRetrieveUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	corpus port.CorpusStore,
	lexicalBonus float64,
	minQuestionTokens int,
	log *zap.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:          embedder,
		index:             index,
		corpus:            corpus,
		lexicalBonus:      lexicalBonus,
		minQuestionTokens: minQuestionTokens,
		log:               log,
	}
}

// Retrieve returns up to k hits sorted by descending similarity. Records
// with trivially short questions are dropped to avoid trivia matches.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedHit, error) {
	if k <= 0 {
		return nil, nil
	}

	embeddings, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	raw, err := u.index.Query(embeddings[0], k*2)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	queryTokens := analyzer.Tokenize(analyzer.Canonicalize(query))

	hits := make([]domain.RetrievedHit, 0, len(raw))
	for _, result := range raw {
		rec, err := u.corpus.GetRecord(result.ID)
		if err != nil {
			u.log.Warn("indexed record missing from corpus", zap.String("id", result.ID))
			continue
		}

		if len(analyzer.Tokenize(analyzer.Canonicalize(rec.Question))) < u.minQuestionTokens {
			continue
		}

		similarity := 1 - result.Distance
		if similarity < 0 {
			similarity = 0
		}
		if u.lexicalBonus > 0 && len(rec.Keywords) > 0 {
			similarity += u.lexicalBonus * analyzer.OverlapRatio(queryTokens, rec.Keywords)
			if similarity > 1 {
				similarity = 1
			}
		}

		hits = append(hits, domain.RetrievedHit{
			Record:     rec,
			Similarity: similarity,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i
	}

	return hits, nil
}
