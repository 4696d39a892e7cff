package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/domain"
)

// DefaultSlowThreshold is the provider latency above which a call is logged at warn.
const DefaultSlowThreshold = 2 * time.Second

// InstrumentedConfig configures NewInstrumentedEmbedder.
type InstrumentedConfig struct {
	Provider string
	Model    string
	// Dimensions, when positive, rejects provider vectors of any other length.
	Dimensions    int
	SlowThreshold time.Duration
}

// InstrumentedEmbedder logs every provider call and checks the vector shape.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	cfg    InstrumentedConfig
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps the provider embedder.
func NewInstrumentedEmbedder(inner domain.Embedder, cfg InstrumentedConfig, logger *zap.Logger) *InstrumentedEmbedder {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	return &InstrumentedEmbedder{
		inner:  inner,
		cfg:    cfg,
		logger: logger.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model)),
	}
}

// Embed delegates to the provider. Canceled calls are logged at debug.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err == nil && p.cfg.Dimensions > 0 && len(result.Embedding) != p.cfg.Dimensions {
		err = fmt.Errorf("%w: got %d dimensions, want %d",
			domain.ErrEmbeddingProviderError, len(result.Embedding), p.cfg.Dimensions)
	}

	if err != nil {
		fields := []zap.Field{
			zap.Duration("duration", duration),
			zap.Int("text_len", len(text)),
			zap.Error(err),
		}
		if errors.Is(err, context.Canceled) {
			p.logger.Debug("Embedding request canceled", fields...)
		} else {
			p.logger.Error("Embedding request failed", fields...)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	fields := []zap.Field{
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	}
	if duration >= p.cfg.SlowThreshold {
		p.logger.Warn("Slow embedding request", fields...)
	} else {
		p.logger.Debug("Embedding request completed", fields...)
	}

	return result, nil
}
