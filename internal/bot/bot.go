// Package bot implements the bot lifecycle: it runs the Telegram listener,
// the task queue dispatcher, the maintenance scheduler and the optional admin
// HTTP server, and shuts them down together.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/nkobot/internal/config"
	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/httpapi"
	"github.com/edgard/nkobot/internal/queue"
)

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	queue     *queue.Queue
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	http      *httpapi.Server
}

// NewBot creates the orchestrator. httpServer may be nil.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	q *queue.Queue,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
	httpServer *httpapi.Server,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		store:     store,
		queue:     q,
		tgBot:     tgBot,
		scheduler: scheduler,
		http:      httpServer,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Tasks already running on the queue get the configured shutdown
// timeout to finish.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.queue.Run(gCtx); err != nil {
			return fmt.Errorf("task queue failed: %w", err)
		}

		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), b.cfg.Queue.ShutdownTimeout)
		defer cancel()
		if err := b.queue.Wait(waitCtx); err != nil {
			b.logger.Warn("Running tasks did not finish before shutdown timeout", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.http != nil {
		g.Go(func() error {
			return b.http.Run(gCtx)
		})
	}

	b.notifyAdmins(gCtx)

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

// notifyAdmins tells every admin that the bot is up. Configured admins are
// notified even before they register.
func (b *Bot) notifyAdmins(ctx context.Context) {
	ids := slices.Clone(b.cfg.Telegram.AdminIDs)
	stored, err := b.store.GetAdminIDs(ctx)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to list admins for startup notice", "error", err)
	}
	ids = append(ids, stored...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		_, err := b.tgBot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: id, Text: b.cfg.Messages.StartupNotice})
		if err != nil {
			b.logger.WarnContext(ctx, "Failed to send startup notice", "error", err, "user_id", id)
		}
	}
	b.logger.InfoContext(ctx, "Startup notice sent", "admins", len(ids))
}
