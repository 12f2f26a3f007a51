package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/nkobot/internal/config"
)

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

func newGenaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return gi, nil
}

// NewGemini creates a Gemini text client.
func NewGemini(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := newGenaiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(cfg.MaxTokens),
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &GeminiClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}, nil
}

// Generate sends the transcript as Gemini contents. System messages become
// the system instruction.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	system, turns := systemAndTurns(req.Messages)

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	copyCfg := *c.contentConfig
	if system != "" {
		copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if req.Temperature != nil {
		t := *req.Temperature
		copyCfg.Temperature = &t
	}

	c.log.DebugContext(ctx, "Generating content", "content_count", len(contents))

	resp, err := c.generateContentWithRetries(ctx, contents, &copyCfg)
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, resp)
}

func (c *GeminiClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var (
		resp *genai.GenerateContentResponse
		err  error
	)

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				select {
				case <-time.After(c.retryDelay):
					continue
				case <-ctx.Done():
					return nil, fmt.Errorf("gemini API call cancelled while waiting to retry: %w", ctx.Err())
				}
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *GeminiClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GeminiImages draws pictures with an Imagen model through the Gemini API.
type GeminiImages struct {
	genaiClient *genai.Client
	log         *slog.Logger
	modelName   string
	aspectRatio string
}

// NewGeminiImages creates an image generator for cfg.
func NewGeminiImages(ctx context.Context, cfg config.ImagesConfig, log *slog.Logger) (*GeminiImages, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("images API key is required")
	}

	gi, err := newGenaiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	logger := log.With("component", "image_generator")
	logger.Info("Image generator initialized", "model", cfg.Model)
	return &GeminiImages{
		genaiClient: gi,
		log:         logger,
		modelName:   cfg.Model,
		aspectRatio: cfg.AspectRatio,
	}, nil
}

// GenerateImage returns the first generated image for prompt.
func (g *GeminiImages) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("image prompt is empty")
	}

	resp, err := g.genaiClient.Models.GenerateImages(ctx, g.modelName, prompt, &genai.GenerateImagesConfig{
		AspectRatio: g.aspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, ErrEmptyResponse
	}
	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			g.log.WarnContext(ctx, "Image filtered", "reason", generated.RAIFilteredReason)
			return nil, fmt.Errorf("image blocked by safety filter: %s", generated.RAIFilteredReason)
		}
		return nil, ErrEmptyResponse
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{Data: generated.Image.ImageBytes, MIMEType: mimeType}, nil
}
