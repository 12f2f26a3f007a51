package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewQueueHandler returns a handler for the /queue command.
func NewQueueHandler(deps HandlerDeps) bot.HandlerFunc {
	return queueHandler{deps}.Handle
}

// queueHandler reports the task queue load and the sender's status.
type queueHandler struct {
	deps HandlerDeps
}

func (h queueHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "queue")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Queue handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	userID := update.Message.From.ID
	stats := h.deps.Queue.Stats()
	status := h.deps.Config.Messages.StatusFree
	if h.deps.Queue.Busy(userID) {
		status = h.deps.Config.Messages.StatusBusy
	}

	log.DebugContext(ctx, "Reporting queue stats", "user_id", userID, "pending", stats.Pending, "active_users", stats.ActiveUsers)
	reply(ctx, b, log, update.Message.Chat.ID,
		fmt.Sprintf(h.deps.Config.Messages.QueueStats, stats.Pending, stats.ActiveUsers, status), nil)
}

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

// cancelHandler cancels the sender's running task.
type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Cancel handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	userID := update.Message.From.ID
	text := h.deps.Config.Messages.NothingToCancel
	if h.deps.Queue.Cancel(userID) {
		log.InfoContext(ctx, "Task cancelled by user", "user_id", userID)
		text = h.deps.Config.Messages.TaskCancelled
	}
	reply(ctx, b, log, update.Message.Chat.ID, text, MainKeyboard())
}
