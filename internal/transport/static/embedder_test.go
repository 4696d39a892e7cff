package static

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Hybrid search in Go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := e.Embed(ctx, "hybrid SEARCH in go!")

	if len(a.Embedding) != 64 {
		t.Fatalf("width = %d", len(a.Embedding))
	}
	if math.Abs(cosine(a.Embedding, b.Embedding)-1) > 1e-5 {
		t.Error("case and punctuation must not change the vector")
	}
	if math.Abs(cosine(a.Embedding, a.Embedding)-1) > 1e-5 {
		t.Error("vector is not unit length")
	}
	if a.TotalTokens != 4 {
		t.Errorf("TotalTokens = %d, want 4", a.TotalTokens)
	}
}

func TestEmbedder_SimilarTextIsCloser(t *testing.T) {
	e := NewEmbedder(512)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "goroutine scheduling")
	near, _ := e.Embed(ctx, "goroutines and the scheduler")
	far, _ := e.Embed(ctx, "baking sourdough bread")

	if cosine(q.Embedding, near.Embedding) <= cosine(q.Embedding, far.Embedding) {
		t.Errorf("near=%f far=%f", cosine(q.Embedding, near.Embedding), cosine(q.Embedding, far.Embedding))
	}
}

func TestEmbedder_EmptyTextIsZero(t *testing.T) {
	res, err := NewEmbedder(0).Embed(context.Background(), "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != DefaultDimensions {
		t.Errorf("width = %d", len(res.Embedding))
	}
	for _, x := range res.Embedding {
		if x != 0 {
			t.Fatal("empty text should embed to the zero vector")
		}
	}
}

func TestEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewEmbedder(8).Embed(ctx, "x"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestEmbedder_DefaultDimensions(t *testing.T) {
	if got := NewEmbedder(0).Dimensions(); got != DefaultDimensions {
		t.Errorf("Dimensions() = %d, want %d", got, DefaultDimensions)
	}
}
