package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is the default embedder: term frequencies hashed into a fixed
// number of buckets, L2-normalized. Unlike a trained TF-IDF vocabulary it
// carries no corpus state, so the same text always produces the same vector
// regardless of what else has been indexed.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing embedder with the given dimensionality.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = 512
	}
	return &Hashing{dims: dims}
}

// Embed converts text to a normalized term-frequency vector.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, word := range tokenize(text) {
		vec[bucket(word, h.dims)]++
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// Dimensions returns the bucket count.
func (h *Hashing) Dimensions() int { return h.dims }

// Name returns the embedder name.
func (h *Hashing) Name() string { return "hashing-tf" }

// bucket maps a token to a vector index.
func bucket(word string, dims int) int {
	f := fnv.New32a()
	f.Write([]byte(word))
	return int(f.Sum32() % uint32(dims))
}

// tokenize splits text into lowercase words.
func tokenize(text string) []string {
	var words []string
	var word strings.Builder

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		words = append(words, word.String())
	}

	return words
}
