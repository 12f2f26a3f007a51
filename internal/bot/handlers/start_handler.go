package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/telegram"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the user and opens the main menu.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", from.ID)

	created, err := h.deps.Store.RegisterUser(ctx, &database.User{
		UserID:   from.ID,
		Username: from.Username,
		FullName: fullName(from),
		IsAdmin:  h.deps.Config.IsAdmin(from.ID),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to register user", "error", err, "user_id", from.ID)
	} else if created {
		log.InfoContext(ctx, "New user registered", "user_id", from.ID, "username", from.Username)
	}

	dropQuestionnaire(ctx, h.deps, from.ID, telegram.NewPresenter(telegram.NewChat(b, chatID, log)))
	setState(ctx, h.deps, from.ID, StateMenu)

	name := fullName(from)
	if name == "" {
		name = from.Username
	}
	reply(ctx, b, log, chatID, fmt.Sprintf(h.deps.Config.Messages.Welcome, name), MainKeyboard())
}
