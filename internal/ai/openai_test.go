package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/nkobot/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	})
	return string(body)
}

func testAIConfig(url string) config.AIConfig {
	return config.AIConfig{
		Provider:    ProviderOpenAI,
		APIKey:      "secret",
		BaseURL:     url,
		Model:       "yandexgpt-lite",
		Temperature: 0.8,
		MaxTokens:   1500,
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
	}
}

func TestOpenAIGenerate(t *testing.T) {
	t.Parallel()

	var (
		got     capturedRequest
		project string
		auth    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		project = r.Header.Get("OpenAI-Project")
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("  Готовый текст  "))
	}))
	defer srv.Close()

	cfg := testAIConfig(srv.URL)
	cfg.FolderID = "b1gfolder"
	client, err := NewOpenAI(cfg, discardLogger())
	require.NoError(t, err)

	temperature := float32(0.3)
	text, err := client.Generate(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "system"},
			{Role: RoleUser, Content: "hello"},
		},
		Temperature: &temperature,
	})
	require.NoError(t, err)

	assert.Equal(t, "Готовый текст", text)
	assert.Equal(t, "gpt://b1gfolder/yandexgpt-lite", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 0.0001)
	assert.Equal(t, 1500, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
	assert.Equal(t, "b1gfolder", project)
	assert.Equal(t, "Bearer secret", auth)
}

func TestOpenAIKeepsQualifiedModel(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, completionBody("ok"))
	}))
	defer srv.Close()

	cfg := testAIConfig(srv.URL)
	cfg.FolderID = "folder"
	cfg.Model = "gpt://other/yandexgpt/latest"
	client, err := NewOpenAI(cfg, discardLogger())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "gpt://other/yandexgpt/latest", got.Model)
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody("после повтора"))
	}))
	defer srv.Close()

	client, err := NewOpenAI(testAIConfig(srv.URL), discardLogger())
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "после повтора", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAI(testAIConfig(srv.URL), discardLogger())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmptyContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completionBody("   "))
	}))
	defer srv.Close()

	client, err := NewOpenAI(testAIConfig(srv.URL), discardLogger())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAI(config.AIConfig{Model: "m"}, discardLogger())
	assert.Error(t, err)
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), config.AIConfig{Provider: "claude"}, discardLogger())
	assert.ErrorContains(t, err, "unsupported ai provider")
}

func TestNewImageGeneratorDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	gen, err := NewImageGenerator(context.Background(), config.ImagesConfig{}, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, gen)
}
