package port

import (
	"context"

	"academybot/internal/domain"
)

// Retriever searches the indexed corpus and returns top-k scored records.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedHit, error)
}
