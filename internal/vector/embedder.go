// Package vector maintains the in-process similarity index over memory and
// task records. Embeddings come from an injected Embedder; the index itself
// is a brute-force cosine-distance scan over two id-keyed collections, each
// persisted as a full JSON snapshot after every mutation.
package vector

import "context"

// Embedder converts text to a fixed-length vector. Implementations must be
// deterministic for the same input text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Name identifies the embedder.
	Name() string
}
