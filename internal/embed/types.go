// Package embed generates vector embeddings for document content. The
// default backend is Ollama's HTTP API; a deterministic static embedder
// keeps tests and offline use working without a model server.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is how many texts go to the backend per request.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultDimensions is the vector size of the default model.
	DefaultDimensions = 768

	// StaticDimensions is the vector size of the static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier stored alongside vectors.
	ModelName() string

	// Available reports whether the backend is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. Cosine similarity between
// unit vectors reduces to a dot product, which is what the vector index
// computes. A zero vector is returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
