package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAdminHandler returns a handler for the /admin command. It is
// registered behind AdminOnly.
func NewAdminHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminHandler{deps}.Handle
}

type adminHandler struct {
	deps HandlerDeps
}

func (h adminHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Admin handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	users, err := h.deps.Store.CountUsers(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to count users", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}

	stats := h.deps.Queue.Stats()
	reply(ctx, b, log, chatID,
		fmt.Sprintf(h.deps.Config.Messages.AdminPanel, users, stats.Pending, stats.ActiveUsers), nil)
}
