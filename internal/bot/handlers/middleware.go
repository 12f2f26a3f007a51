// Package handlers contains Telegram bot command, message and callback
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly lets only admins through. Admins are the configured ids plus users
// flagged in the database. Others get the not authorized message.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			var userID, chatID int64
			switch {
			case update.Message != nil && update.Message.From != nil:
				userID, chatID = update.Message.From.ID, update.Message.Chat.ID
			case update.CallbackQuery != nil:
				userID, chatID = update.CallbackQuery.From.ID, callbackChatID(update.CallbackQuery)
			default:
				next(ctx, b, update)
				return
			}

			if isAdmin(ctx, deps, userID) {
				next(ctx, b, update)
				return
			}

			log := deps.Logger.With("middleware", "admin_only")
			log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)
			reply(ctx, b, log, chatID, deps.Config.Messages.NotAuthorized, nil)
		}
	}
}
