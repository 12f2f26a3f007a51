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
	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/queue"
	"github.com/edgard/nkobot/internal/telegram"
)

// reply sends text to chatID and logs a failure.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text, ReplyMarkup: markup})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// fullName joins the first and last name of a Telegram user.
func fullName(u *models.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// isAdmin checks the configured admin list first and the users table next.
func isAdmin(ctx context.Context, deps HandlerDeps, userID int64) bool {
	if deps.Config.IsAdmin(userID) {
		return true
	}
	admin, err := deps.Store.IsAdmin(ctx, userID)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to check admin flag", "error", err, "user_id", userID)
		return false
	}
	return admin
}

// setState stores the user's conversation state and logs a failure.
func setState(ctx context.Context, deps HandlerDeps, userID int64, state string) {
	if err := deps.Store.SetUserState(ctx, userID, state); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to save user state", "error", err, "user_id", userID, "state", state)
	}
}

// dropQuestionnaire discards an unfinished questionnaire of the user.
func dropQuestionnaire(ctx context.Context, deps HandlerDeps, userID int64, p questionnaire.Presenter) {
	err := deps.Questionnaire.Navigate(ctx, userID, questionnaire.ActionMenu, p)
	if err != nil && !errors.Is(err, questionnaire.ErrNoSession) {
		deps.Logger.ErrorContext(ctx, "Failed to cancel questionnaire", "error", err, "user_id", userID)
	}
}

// showMainMenu returns the user to the main menu.
func showMainMenu(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID, userID int64) {
	showMainMenuWith(ctx, deps, b, chatID, userID, deps.Config.Messages.MainMenu)
}

// showMainMenuWith returns the user to the main menu with a custom text.
func showMainMenuWith(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID, userID int64, msg string) {
	setState(ctx, deps, userID, StateMenu)
	reply(ctx, b, deps.Logger, chatID, msg, MainKeyboard())
}

// systemContext loads the user's settings and renders them as the system
// prompt of a generation.
func systemContext(ctx context.Context, deps HandlerDeps, userID int64) string {
	settings, err := deps.Store.GetUserSettings(ctx, userID)
	if err != nil {
		deps.Logger.WarnContext(ctx, "Failed to load user settings, using defaults", "error", err, "user_id", userID)
		return ai.SystemContext(nil)
	}
	return ai.SystemContext(settings)
}

// generationFunc does the work of one queued generation and reports the
// outcome in chat.
type generationFunc func(ctx context.Context, chat *telegram.Chat) error

// runGeneration queues work on the user's serial slot. While it runs the
// chat shows the typing indicator; failures are reported in the chat.
func runGeneration(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID, userID int64, name string, work generationFunc) {
	log := deps.Logger.With("task", name, "user_id", userID)
	chat := telegram.NewChat(b, chatID, log)
	msgs := deps.Config.Messages

	if deps.Queue.Busy(userID) {
		reply(ctx, b, log, chatID, msgs.AlreadyRunning+"\n"+msgs.Queued, nil)
	}

	_, err := deps.Queue.Enqueue(userID, func(ctx context.Context) error {
		stop := chat.KeepTyping(ctx, 0)
		err := work(ctx, chat)
		stop()

		if err != nil {
			notifyFailure(context.WithoutCancel(ctx), deps, chat, err)
			return err
		}
		return nil
	}, queue.WithName(name))
	if err != nil {
		log.ErrorContext(ctx, "Failed to enqueue generation", "error", err)
		reply(ctx, b, log, chatID, msgs.GeneralError, MainKeyboard())
	}
}

func notifyFailure(ctx context.Context, deps HandlerDeps, chat *telegram.Chat, err error) {
	msgs := deps.Config.Messages

	var text string
	switch {
	case errors.Is(err, context.Canceled):
		// The user cancelled and was already told.
		return
	case errors.Is(err, context.DeadlineExceeded):
		text = msgs.Timeout
	case errors.Is(err, ai.ErrImagesDisabled):
		text = msgs.ImagesDisabled
	default:
		text = msgs.GeneralError
	}

	if _, sendErr := chat.Send(ctx, text, MainKeyboard()); sendErr != nil {
		deps.Logger.ErrorContext(ctx, "Failed to report generation failure", "error", sendErr, "chat_id", chat.ID())
	}
}

// sendResult delivers a generated text and returns the user to the main menu.
func sendResult(ctx context.Context, chat *telegram.Chat, result string) error {
	if _, err := chat.SendLong(ctx, result, MainKeyboard()); err != nil {
		return fmt.Errorf("failed to deliver result: %w", err)
	}
	return nil
}
