package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/nkobot/internal/config"
)

// Text providers selectable in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
	ProviderGemini = "gemini"
)

// NewClient builds the text client for the configured provider.
func NewClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg, log)
	case ProviderYandex:
		return NewYandex(cfg, log)
	case ProviderGemini:
		return NewGemini(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// NewImageGenerator builds the image generator, or returns nil when image
// generation is not configured.
func NewImageGenerator(ctx context.Context, cfg config.ImagesConfig, log *slog.Logger) (ImageGenerator, error) {
	if cfg.APIKey == "" {
		log.Info("Image generation disabled: no API key configured")
		return nil, nil
	}
	images, err := NewGeminiImages(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return images, nil
}
