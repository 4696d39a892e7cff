package embedding

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 7,
		TotalTokens:  7,
	}}
	core, logs := observer.New(zap.DebugLevel)
	p := NewInstrumentedEmbedder(inner, InstrumentedConfig{Provider: "openai", Model: "test-model"}, zap.New(core))

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 7 {
		t.Fatalf("result = %+v", result)
	}

	entries := logs.FilterMessage("Embedding request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["provider"]; got != "openai" {
		t.Errorf("provider field = %v", got)
	}
	if got := entries[0].ContextMap()["dimensions"]; got != int64(3) {
		t.Errorf("dimensions field = %v", got)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrRateLimited}
	core, logs := observer.New(zap.ErrorLevel)
	p := NewInstrumentedEmbedder(inner, InstrumentedConfig{Provider: "openai", Model: "test-model"}, zap.New(core))

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if logs.FilterMessage("Embedding request failed").Len() != 1 {
		t.Error("expected failure to be logged")
	}
}

func TestInstrumentedEmbedder_DimensionMismatch(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	p := NewInstrumentedEmbedder(inner, InstrumentedConfig{Provider: "openai", Model: "m", Dimensions: 3}, zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestInstrumentedEmbedder_CanceledLoggedAtDebug(t *testing.T) {
	inner := &mockEmbedder{err: context.Canceled}
	core, logs := observer.New(zap.DebugLevel)
	p := NewInstrumentedEmbedder(inner, InstrumentedConfig{Provider: "openai", Model: "m"}, zap.New(core))

	if _, err := p.Embed(context.Background(), "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if logs.FilterMessage("Embedding request failed").Len() != 0 {
		t.Error("cancellation must not be logged as a failure")
	}
	if logs.FilterMessage("Embedding request canceled").Len() != 1 {
		t.Error("expected a debug cancellation entry")
	}
}

type slowEmbedder struct{ delay time.Duration }

func (s slowEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	time.Sleep(s.delay)
	return domain.EmbeddingResult{Embedding: []float32{1}}, nil
}

func TestInstrumentedEmbedder_SlowCallWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewInstrumentedEmbedder(slowEmbedder{delay: 5 * time.Millisecond},
		InstrumentedConfig{Provider: "static", Model: "m", SlowThreshold: time.Millisecond}, zap.New(core))

	if _, err := p.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessage("Slow embedding request").Len() != 1 {
		t.Error("expected slow call warning")
	}
}
