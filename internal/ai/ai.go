// Package ai generates texts and images for the bot through a hosted model.
// Text providers are interchangeable behind Client: an OpenAI-compatible
// endpoint, YandexGPT, or Gemini. Images are generated with Gemini.
package ai

import (
	"context"
	"errors"
)

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Request is a single text generation call.
type Request struct {
	Messages []Message
	// Temperature overrides the configured temperature when set.
	Temperature *float32
}

// Client generates text from a chat transcript.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Image is a generated picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageGenerator draws a picture from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}

// systemAndTurns splits the transcript into the joined system text and the
// remaining turns.
func systemAndTurns(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
