package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

// Handle lists the commands and leaves the main keyboard in place, so the
// user can continue from the menu.
func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Help handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Showing help", "user_id", msg.From.ID)
	reply(ctx, b, log, msg.Chat.ID, h.deps.Config.Messages.Help, MainKeyboard())
}
