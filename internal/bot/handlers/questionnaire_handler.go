package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/telegram"
)

// NewQuestionnaireCallbackHandler returns a handler for the questionnaire
// inline buttons.
func NewQuestionnaireCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return questionnaireCallbackHandler{deps}.Handle
}

type questionnaireCallbackHandler struct {
	deps HandlerDeps
}

func (h questionnaireCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "questionnaire_callback")

	cq := update.CallbackQuery
	if cq == nil {
		log.WarnContext(ctx, "Questionnaire handler received update without callback query", "update_id", update.ID)
		return
	}
	answerCallback(ctx, b, log, cq.ID)

	userID := cq.From.ID
	chatID := callbackChatID(cq)
	action, ok := questionnaire.ParseAction(strings.TrimPrefix(cq.Data, QuestionnaireCallbackPrefix))
	if !ok {
		log.WarnContext(ctx, "Unknown questionnaire action", "data", cq.Data, "user_id", userID)
		return
	}

	log = log.With("user_id", userID, "action", action)
	presenter := telegram.NewPresenter(telegram.NewChat(b, chatID, log))

	switch action {
	case questionnaire.ActionFinish:
		h.finish(ctx, b, chatID, userID, presenter)
	case questionnaire.ActionMenu:
		dropQuestionnaire(ctx, h.deps, userID, presenter)
		showMainMenu(ctx, h.deps, b, chatID, userID)
	default:
		err := h.deps.Questionnaire.Navigate(ctx, userID, action, presenter)
		switch {
		case errors.Is(err, questionnaire.ErrNoSession):
			log.DebugContext(ctx, "Ignoring navigation without a questionnaire")
		case err != nil:
			log.ErrorContext(ctx, "Failed to navigate questionnaire", "error", err)
			reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError, nil)
		}
	}
}

// finish seals the session when the button is pressed and composes that
// snapshot on the user's queue slot. Further presses, answers and a newer
// questionnaire started meanwhile leave the sealed answers untouched.
func (h questionnaireCallbackHandler) finish(ctx context.Context, b *bot.Bot, chatID, userID int64, p *telegram.Presenter) {
	log := h.deps.Logger.With("user_id", userID)

	session, err := h.deps.Questionnaire.Seal(ctx, userID)
	switch {
	case errors.Is(err, questionnaire.ErrNoSession):
		log.DebugContext(ctx, "Ignoring finish without a questionnaire")
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to seal questionnaire", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}

	setState(ctx, h.deps, userID, StateMenu)
	runGeneration(ctx, h.deps, b, chatID, userID, "questionnaire", func(ctx context.Context, chat *telegram.Chat) error {
		if err := h.deps.Questionnaire.Complete(ctx, userID, session, p); err != nil {
			return err
		}
		// The user may already be answering a newer questionnaire.
		if active, err := h.deps.Questionnaire.Active(ctx, userID); err == nil && active {
			return nil
		}
		_, err := chat.Send(ctx, h.deps.Config.Messages.MainMenu, MainKeyboard())
		return err
	})
}

func answerCallback(ctx context.Context, b *bot.Bot, log *slog.Logger, id string) {
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: id}); err != nil {
		log.ErrorContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// callbackChatID finds the chat a button was pressed in. Private chats share
// the user's id.
func callbackChatID(cq *models.CallbackQuery) int64 {
	switch {
	case cq.Message.Message != nil:
		return cq.Message.Message.Chat.ID
	case cq.Message.InaccessibleMessage != nil:
		return cq.Message.InaccessibleMessage.Chat.ID
	default:
		return cq.From.ID
	}
}
