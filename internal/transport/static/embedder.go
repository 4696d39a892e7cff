// Package static is an offline embedding provider: feature hashing of
// lowercase tokens and their character trigrams into a fixed-width vector.
// Identical input gives identical output.
package static

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/docvault/internal/domain"
)

// DefaultDimensions is used when the configured width is not positive.
const DefaultDimensions = 256

// Embedder hashes text into a unit vector.
type Embedder struct {
	dim int
}

// NewEmbedder creates a static embedder of the given width.
func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Embedder{dim: dim}
}

// Embed implements domain.Embedder. Token counts are the number of words.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}

	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		e.add(vec, "w:"+w, 1)
		runes := []rune("^" + w + "$")
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, "t:"+string(runes[i:i+3]), 0.5)
		}
	}
	normalize(vec)

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(words),
		TotalTokens:  len(words),
	}, nil
}

// Dimensions returns the vector width.
func (e *Embedder) Dimensions() int { return e.dim }

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

// add hashes feature to a bucket; one hash bit picks the sign.
func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
