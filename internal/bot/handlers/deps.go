package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/nkobot/internal/ai"
	"github.com/edgard/nkobot/internal/config"
	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/queue"
)

// Generator produces the texts and images the bot sends. *ai.Service
// implements it.
type Generator interface {
	Single(ctx context.Context, system, prompt string) (string, error)
	Compose(ctx context.Context, system string, answers []ai.QA) (string, error)
	ContentPlan(ctx context.Context, system, prompt string) (string, error)
	Rewrite(ctx context.Context, text string) (string, error)
	BuildSystemPrompt(ctx context.Context, orgDescription string) (string, error)
	Chat(ctx context.Context, system string, history []ai.Message, prompt string) (string, error)
	Draw(ctx context.Context, prompt string) (*ai.Image, error)
	ImagesEnabled() bool
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger        *slog.Logger
	Config        *config.Config
	Store         database.Store
	AI            Generator
	Queue         *queue.Queue
	Questionnaire *questionnaire.Engine
}
