package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrImagesDisabled is returned by Draw when no image generator is configured.
var ErrImagesDisabled = errors.New("image generation is not configured")

// Service implements the bot's generation modes on top of a text Client and
// an optional ImageGenerator.
type Service struct {
	client  Client
	images  ImageGenerator
	log     *slog.Logger
	timeout time.Duration
}

// NewService creates a Service. images may be nil. Every call is bounded by
// timeout when it is positive.
func NewService(client Client, images ImageGenerator, timeout time.Duration, log *slog.Logger) *Service {
	return &Service{
		client:  client,
		images:  images,
		log:     log.With("component", "ai_service"),
		timeout: timeout,
	}
}

// ImagesEnabled reports whether Draw can be used.
func (s *Service) ImagesEnabled() bool {
	return s.images != nil
}

// Single answers one prompt with the given system context.
func (s *Service) Single(ctx context.Context, system, prompt string) (string, error) {
	return s.generate(ctx, "single", Request{Messages: withSystem(system, Message{Role: RoleUser, Content: prompt})})
}

// Compose writes the final text from questionnaire answers.
func (s *Service) Compose(ctx context.Context, system string, answers []QA) (string, error) {
	if len(answers) == 0 {
		return "", fmt.Errorf("no answers to compose from")
	}
	messages := withSystem(joinSystem(ComposeSystemInstruction, system), Message{Role: RoleUser, Content: FormatAnswers(answers)})
	return s.generate(ctx, "compose", Request{Messages: messages})
}

// ContentPlan generates a content plan for the period and wishes in prompt.
func (s *Service) ContentPlan(ctx context.Context, system, prompt string) (string, error) {
	messages := withSystem(joinSystem(ContentPlanSystemInstruction, system), Message{Role: RoleUser, Content: prompt})
	return s.generate(ctx, "content_plan", Request{Messages: messages})
}

// Rewrite fixes grammar, spelling and punctuation in text.
func (s *Service) Rewrite(ctx context.Context, text string) (string, error) {
	return s.generate(ctx, "rewrite", Request{Messages: withSystem(RewriteSystemInstruction, Message{Role: RoleUser, Content: text})})
}

// BuildSystemPrompt turns an organisation description into a system prompt.
func (s *Service) BuildSystemPrompt(ctx context.Context, orgDescription string) (string, error) {
	temperature := SystemPromptTemperature
	return s.generate(ctx, "system_prompt", Request{
		Messages:    withSystem(SystemPromptBuilderInstruction, Message{Role: RoleUser, Content: orgDescription}),
		Temperature: &temperature,
	})
}

// Chat continues a conversation. history holds earlier turns, oldest first.
func (s *Service) Chat(ctx context.Context, system string, history []Message, prompt string) (string, error) {
	turns := make([]Message, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, Message{Role: RoleUser, Content: prompt})
	return s.generate(ctx, "chat", Request{Messages: withSystem(system, turns...)})
}

// Draw generates an image for prompt.
func (s *Service) Draw(ctx context.Context, prompt string) (*Image, error) {
	if s.images == nil {
		return nil, ErrImagesDisabled
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	img, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		s.log.ErrorContext(ctx, "Image generation failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("failed to draw image: %w", err)
	}
	s.log.InfoContext(ctx, "Image generated", "bytes", len(img.Data), "duration", time.Since(start))
	return img, nil
}

func (s *Service) generate(ctx context.Context, mode string, req Request) (string, error) {
	if last := req.Messages[len(req.Messages)-1]; strings.TrimSpace(last.Content) == "" {
		return "", fmt.Errorf("%s: prompt is empty", mode)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.client.Generate(ctx, req)
	if err != nil {
		s.log.ErrorContext(ctx, "Text generation failed", "mode", mode, "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("%s generation failed: %w", mode, err)
	}
	s.log.InfoContext(ctx, "Text generated", "mode", mode, "length", len(text), "duration", time.Since(start))
	return text, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func withSystem(system string, turns ...Message) []Message {
	messages := make([]Message, 0, len(turns)+1)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	return append(messages, turns...)
}

func joinSystem(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
