package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fathomdev/fathom/internal/config"
)

// New constructs the configured embedder, wrapped in an LRU cache.
//
// Provider "none" and an unreachable backend both return ErrUnavailable;
// the caller degrades to lexical-only retrieval rather than failing.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch cfg.Provider {
	case "", "ollama":
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      cfg.OllamaHost,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   60 * time.Second,
		})
	case "openai":
		inner, err = NewOpenAIEmbedder(cfg.OpenAIKey, cfg.Model)
	case "none":
		return nil, fmt.Errorf("%w: embeddings disabled by configuration", ErrUnavailable)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("embedding backend ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
