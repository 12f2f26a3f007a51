package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/nkobot/internal/ai"
	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/queue"
	"github.com/edgard/nkobot/internal/telegram"
	"github.com/edgard/nkobot/internal/text"
)

// NewMessageHandler returns the default handler. It receives every update
// no registered handler matched: menu buttons first, then free text routed
// by the user's dialogue state.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

// request is one incoming text message.
type request struct {
	userID int64
	chatID int64
	text   string
	log    *slog.Logger
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	if update.Message == nil || update.Message.From == nil {
		log.DebugContext(ctx, "Ignoring update without message or sender", "update_id", update.ID)
		return
	}

	req := request{
		userID: update.Message.From.ID,
		chatID: update.Message.Chat.ID,
		text:   strings.TrimSpace(update.Message.Text),
	}
	req.log = log.With("user_id", req.userID, "chat_id", req.chatID)

	if req.text == "" || strings.HasPrefix(req.text, "/") {
		reply(ctx, b, req.log, req.chatID, h.deps.Config.Messages.UseMenu, MainKeyboard())
		return
	}

	if h.handleButton(ctx, b, update, req) {
		return
	}

	state, err := h.deps.Store.GetUserState(ctx, req.userID)
	if err != nil {
		req.log.ErrorContext(ctx, "Failed to load user state", "error", err)
		reply(ctx, b, req.log, req.chatID, h.deps.Config.Messages.GeneralError, MainKeyboard())
		return
	}

	req.log.DebugContext(ctx, "Dispatching message", "state", state)
	switch state {
	case StateAwaitingPrompt:
		h.single(ctx, b, req)
	case StateQuestionnaire:
		h.answer(ctx, b, req)
	case StateAwaitingImage:
		h.draw(ctx, b, req)
	case StateAwaitingContentPlan:
		h.contentPlan(ctx, b, req)
	case StateAwaitingRewrite:
		h.rewrite(ctx, b, req)
	case StateAwaitingOrgDescription:
		h.saveOrgDescription(ctx, b, req)
	case StateMultiChat:
		h.chat(ctx, b, req)
	default:
		reply(ctx, b, req.log, req.chatID, h.deps.Config.Messages.UseMenu, MainKeyboard())
	}
}

// handleButton reacts to reply keyboard buttons. Buttons work in every
// state; choosing a mode abandons an unfinished questionnaire.
func (h messageHandler) handleButton(ctx context.Context, b *bot.Bot, update *models.Update, req request) bool {
	msgs := h.deps.Config.Messages
	presenter := telegram.NewPresenter(telegram.NewChat(b, req.chatID, req.log))

	switch req.text {
	case ButtonSolo:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		setState(ctx, h.deps, req.userID, StateAwaitingPrompt)
		reply(ctx, b, req.log, req.chatID, msgs.SoloSelected, nil)
		reply(ctx, b, req.log, req.chatID, msgs.EnterPrompt, removeKeyboard())

	case ButtonQuestionnaire:
		reply(ctx, b, req.log, req.chatID, msgs.QuestionnaireSelected, removeKeyboard())
		pinned := systemContext(ctx, h.deps, req.userID)
		if err := h.deps.Questionnaire.Start(ctx, req.userID, pinned, presenter); err != nil {
			req.log.ErrorContext(ctx, "Failed to start questionnaire", "error", err)
			showMainMenu(ctx, h.deps, b, req.chatID, req.userID)
			return true
		}
		setState(ctx, h.deps, req.userID, StateQuestionnaire)

	case ButtonSettings:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		setState(ctx, h.deps, req.userID, StateMenu)
		openSettings(ctx, h.deps, b, req.chatID, req.userID)

	case ButtonExtra:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		setState(ctx, h.deps, req.userID, StateMenu)
		reply(ctx, b, req.log, req.chatID, msgs.ExtraMenu, ExtraKeyboard(isAdmin(ctx, h.deps, req.userID)))

	case ButtonBack, ButtonToMenu:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		showMainMenu(ctx, h.deps, b, req.chatID, req.userID)

	case ButtonImage:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		if !h.deps.AI.ImagesEnabled() {
			showMainMenuWith(ctx, h.deps, b, req.chatID, req.userID, msgs.ImagesDisabled)
			return true
		}
		setState(ctx, h.deps, req.userID, StateAwaitingImage)
		reply(ctx, b, req.log, req.chatID, msgs.EnterImagePrompt, removeKeyboard())

	case ButtonContentPlan:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		setState(ctx, h.deps, req.userID, StateAwaitingContentPlan)
		reply(ctx, b, req.log, req.chatID, msgs.EnterContentPlan, removeKeyboard())

	case ButtonRewrite:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		setState(ctx, h.deps, req.userID, StateAwaitingRewrite)
		reply(ctx, b, req.log, req.chatID, msgs.EnterRewrite, removeKeyboard())

	case ButtonMultiChat:
		dropQuestionnaire(ctx, h.deps, req.userID, presenter)
		setState(ctx, h.deps, req.userID, StateMultiChat)
		reply(ctx, b, req.log, req.chatID, msgs.MultiChatSelected, MultiChatKeyboard())

	case ButtonNewDialog:
		if err := h.deps.Store.DeleteChatMessages(ctx, req.userID); err != nil {
			req.log.ErrorContext(ctx, "Failed to clear chat history", "error", err)
			reply(ctx, b, req.log, req.chatID, msgs.GeneralError, MultiChatKeyboard())
			return true
		}
		setState(ctx, h.deps, req.userID, StateMultiChat)
		reply(ctx, b, req.log, req.chatID, msgs.HistoryCleared, MultiChatKeyboard())

	case ButtonBotSettings:
		AdminOnly(h.deps)(NewAdminHandler(h.deps))(ctx, b, update)

	default:
		return false
	}
	return true
}

func (h messageHandler) single(ctx context.Context, b *bot.Bot, req request) {
	setState(ctx, h.deps, req.userID, StateMenu)
	runGeneration(ctx, h.deps, b, req.chatID, req.userID, "single", func(ctx context.Context, chat *telegram.Chat) error {
		result, err := h.deps.AI.Single(ctx, systemContext(ctx, h.deps, req.userID), req.text)
		if err != nil {
			return err
		}
		return sendResult(ctx, chat, result)
	})
}

func (h messageHandler) answer(ctx context.Context, b *bot.Bot, req request) {
	presenter := telegram.NewPresenter(telegram.NewChat(b, req.chatID, req.log))
	err := h.deps.Questionnaire.SubmitAnswer(ctx, req.userID, req.text, presenter)
	switch {
	case errors.Is(err, questionnaire.ErrNoSession):
		showMainMenuWith(ctx, h.deps, b, req.chatID, req.userID, h.deps.Config.Messages.UseMenu)
	case err != nil:
		req.log.ErrorContext(ctx, "Failed to submit answer", "error", err)
		reply(ctx, b, req.log, req.chatID, h.deps.Config.Messages.GeneralError, nil)
	}
}

func (h messageHandler) draw(ctx context.Context, b *bot.Bot, req request) {
	setState(ctx, h.deps, req.userID, StateMenu)
	runGeneration(ctx, h.deps, b, req.chatID, req.userID, "image", func(ctx context.Context, chat *telegram.Chat) error {
		img, err := h.deps.AI.Draw(ctx, req.text)
		if err != nil {
			return err
		}
		return chat.SendPhoto(ctx, img.Data, imageFilename(img.MIMEType), MainKeyboard())
	})
}

func imageFilename(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "image.jpg"
	case "image/webp":
		return "image.webp"
	default:
		return "image.png"
	}
}

func (h messageHandler) contentPlan(ctx context.Context, b *bot.Bot, req request) {
	setState(ctx, h.deps, req.userID, StateMenu)
	runGeneration(ctx, h.deps, b, req.chatID, req.userID, "content_plan", func(ctx context.Context, chat *telegram.Chat) error {
		result, err := h.deps.AI.ContentPlan(ctx, systemContext(ctx, h.deps, req.userID), req.text)
		if err != nil {
			return err
		}
		return sendResult(ctx, chat, result)
	})
}

func (h messageHandler) rewrite(ctx context.Context, b *bot.Bot, req request) {
	setState(ctx, h.deps, req.userID, StateMenu)
	runGeneration(ctx, h.deps, b, req.chatID, req.userID, "rewrite", func(ctx context.Context, chat *telegram.Chat) error {
		result, err := h.deps.AI.Rewrite(ctx, req.text)
		if err != nil {
			return err
		}
		return sendResult(ctx, chat, result)
	})
}

// saveOrgDescription stores the description right away and builds the
// system prompt from it on the user's queue slot.
func (h messageHandler) saveOrgDescription(ctx context.Context, b *bot.Bot, req request) {
	settings, err := h.deps.Store.GetUserSettings(ctx, req.userID)
	if err == nil {
		settings.OrgDescription = req.text
		settings.SystemPrompt = ""
		err = h.deps.Store.SaveUserSettings(ctx, settings)
	}
	if err != nil {
		req.log.ErrorContext(ctx, "Failed to save organisation description", "error", err)
		showMainMenuWith(ctx, h.deps, b, req.chatID, req.userID, h.deps.Config.Messages.GeneralError)
		return
	}

	showMainMenuWith(ctx, h.deps, b, req.chatID, req.userID, h.deps.Config.Messages.OrgDescriptionSaved)

	_, err = h.deps.Queue.Enqueue(req.userID, func(ctx context.Context) error {
		return h.buildSystemPrompt(ctx, req.userID, req.text)
	}, queue.WithName("system_prompt"))
	if err != nil {
		req.log.ErrorContext(ctx, "Failed to enqueue system prompt build", "error", err)
	}
}

func (h messageHandler) buildSystemPrompt(ctx context.Context, userID int64, description string) error {
	prompt, err := h.deps.AI.BuildSystemPrompt(ctx, description)
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "Failed to build system prompt", "error", err, "user_id", userID)
		return err
	}

	settings, err := h.deps.Store.GetUserSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to reload settings: %w", err)
	}
	if settings.OrgDescription != description {
		// The description changed while the prompt was being built.
		return nil
	}
	settings.SystemPrompt = prompt
	if err := h.deps.Store.SaveUserSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save system prompt: %w", err)
	}
	h.deps.Logger.InfoContext(ctx, "System prompt updated", "user_id", userID)
	return nil
}

// chat continues the multi-chat dialog with as much recent history as fits
// the configured token budget.
func (h messageHandler) chat(ctx context.Context, b *bot.Bot, req request) {
	cfg := h.deps.Config.Chat
	runGeneration(ctx, h.deps, b, req.chatID, req.userID, "multichat", func(ctx context.Context, chat *telegram.Chat) error {
		var stored []*database.ChatMessage
		if cfg.HistoryLimit > 0 {
			var err error
			if stored, err = h.deps.Store.GetRecentChatMessages(ctx, req.userID, cfg.HistoryLimit); err != nil {
				return fmt.Errorf("failed to load chat history: %w", err)
			}
		}

		texts := make([]string, len(stored))
		for i, m := range stored {
			texts[i] = m.Content
		}
		budget := cfg.HistoryTokens - text.EstimateTokens(req.text)
		history := make([]ai.Message, 0, len(stored))
		for _, m := range stored[text.FitWindow(texts, budget):] {
			role := ai.RoleUser
			if m.Role == database.RoleAssistant {
				role = ai.RoleAssistant
			}
			history = append(history, ai.Message{Role: role, Content: m.Content})
		}

		result, err := h.deps.AI.Chat(ctx, systemContext(ctx, h.deps, req.userID), history, req.text)
		if err != nil {
			return err
		}

		for _, m := range []*database.ChatMessage{
			{UserID: req.userID, Role: database.RoleUser, Content: req.text},
			{UserID: req.userID, Role: database.RoleAssistant, Content: result},
		} {
			if err := h.deps.Store.SaveChatMessage(ctx, m); err != nil {
				req.log.ErrorContext(ctx, "Failed to save chat message", "error", err)
			}
		}

		if _, err := chat.SendLong(ctx, result, MultiChatKeyboard()); err != nil {
			return fmt.Errorf("failed to deliver reply: %w", err)
		}
		return nil
	})
}
