package port

import "context"

// Embedder generates dense vector embeddings for text.
//
// Implementations must be safe for concurrent use. All vectors produced by a
// single Embedder share the dimension returned by Dimension.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
