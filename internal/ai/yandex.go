package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Morwran/yagpt"

	"github.com/edgard/nkobot/internal/config"
)

// iamTokenTTL is kept below the 12 hour lifetime of Yandex IAM tokens.
const iamTokenTTL = time.Hour

// YandexClient calls the native YandexGPT completion API with an IAM token
// exchanged from an OAuth token.
type YandexClient struct {
	ya         yagpt.YaGPTFace
	oauthToken string
	log        *slog.Logger

	mu        sync.Mutex
	iamToken  string
	issuedAt  time.Time
	newIAMKey func() (string, error)
}

// NewYandex creates a YandexGPT client for the folder in cfg.
func NewYandex(cfg config.AIConfig, log *slog.Logger) (*YandexClient, error) {
	ya, err := yagpt.NewYagpt(cfg.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	c := &YandexClient{
		ya:         ya,
		oauthToken: cfg.OAuthToken,
		log:        log.With("component", "yandex_client"),
	}
	c.newIAMKey = c.exchangeOAuth

	if _, err := c.token(); err != nil {
		return nil, err
	}

	c.log.Info("YandexGPT client initialized", "model", yagpt.YaModelLite)
	return c, nil
}

func (c *YandexClient) exchangeOAuth() (string, error) {
	iam, err := yagpt.NewYaIam(c.oauthToken)
	if err != nil {
		return "", fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return "", fmt.Errorf("failed to create iam token: %w", err)
	}
	return resp.IamToken, nil
}

func (c *YandexClient) token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.iamToken != "" && time.Since(c.issuedAt) < iamTokenTTL {
		return c.iamToken, nil
	}

	token, err := c.newIAMKey()
	if err != nil {
		return "", err
	}
	c.iamToken = token
	c.issuedAt = time.Now()
	return token, nil
}

// Generate runs a YandexGPT completion. The per-request temperature is not
// supported by this API and is ignored.
func (c *YandexClient) Generate(ctx context.Context, req Request) (string, error) {
	token, err := c.token()
	if err != nil {
		return "", err
	}

	messages := make([]yagpt.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, yagpt.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := c.ya.CompletionWithCtx(ctx, token, messages)
	if err != nil {
		return "", fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 || resp.Alternatives[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	c.log.DebugContext(ctx, "YandexGPT completion received",
		"input_tokens", resp.Usage.InputTextTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Alternatives[0].Message.Content, nil
}
