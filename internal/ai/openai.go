package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/nkobot/internal/config"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint,
// including the Yandex Cloud one.
type OpenAIClient struct {
	client      *openai.Client
	log         *slog.Logger
	model       string
	temperature float32
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewOpenAI creates a client for cfg. When FolderID is set the model is
// addressed as gpt://<folder>/<model> and the folder is sent as the
// OpenAI-Project header, as Yandex Cloud expects.
func NewOpenAI(cfg config.AIConfig, log *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	model := cfg.Model
	transport := http.DefaultTransport
	if cfg.FolderID != "" {
		if !strings.Contains(model, "://") {
			model = fmt.Sprintf("gpt://%s/%s", cfg.FolderID, model)
		}
		h := http.Header{}
		h.Set("OpenAI-Project", cfg.FolderID)
		transport = headerTransport{rt: transport, headers: h}
	}
	clientCfg.HTTPClient = &http.Client{Transport: transport, Timeout: cfg.Timeout}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI-compatible client initialized", "model", model, "base_url", clientCfg.BaseURL)

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		log:         logger,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// Generate runs a chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	completion := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	}

	c.log.DebugContext(ctx, "Requesting chat completion", "message_count", len(messages))

	resp, err := c.createWithRetries(ctx, completion)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		c.log.WarnContext(ctx, "Chat completion returned empty content", "finish_reason", resp.Choices[0].FinishReason)
		return "", ErrEmptyResponse
	}

	c.log.DebugContext(ctx, "Chat completion received",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return text, nil
}

func (c *OpenAIClient) createWithRetries(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var (
		resp openai.ChatCompletionResponse
		err  error
	)

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Chat completion failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && retriableStatus(apiErr.HTTPStatusCode) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying chat completion", "delay", c.retryDelay, "code", apiErr.HTTPStatusCode)
				select {
				case <-time.After(c.retryDelay):
					continue
				case <-ctx.Done():
					return resp, fmt.Errorf("chat completion cancelled while waiting to retry: %w", ctx.Err())
				}
			}
			return resp, fmt.Errorf("chat completion failed after %d retries (code %d): %w", c.maxRetries, apiErr.HTTPStatusCode, err)
		}

		return resp, fmt.Errorf("chat completion failed: %w", err)
	}
	return resp, err
}

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusInternalServerError || code == http.StatusServiceUnavailable
}
