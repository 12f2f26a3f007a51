// Package main contains the entrypoint for the Telegram bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/nkobot/internal/ai"
	"github.com/edgard/nkobot/internal/bot"
	"github.com/edgard/nkobot/internal/bot/handlers"
	"github.com/edgard/nkobot/internal/bot/tasks"
	"github.com/edgard/nkobot/internal/config"
	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/httpapi"
	"github.com/edgard/nkobot/internal/logger"
	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/queue"
	"github.com/edgard/nkobot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, runs the bot until ctx is cancelled and returns
// the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	client, err := ai.NewClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}
	images, err := ai.NewImageGenerator(ctx, cfg.Images, log)
	if err != nil {
		log.Error("Failed to initialize image generator", "error", err)
		return 1
	}
	if images == nil {
		log.Info("Image generation disabled")
	}
	generator := ai.NewService(client, images, cfg.AI.Timeout, log)

	questions, err := questionnaire.LoadQuestions(cfg.Questionnaire.QuestionsPath)
	if err != nil {
		log.Error("Failed to load questionnaire", "path", cfg.Questionnaire.QuestionsPath, "error", err)
		return 1
	}
	policy, err := questionnaire.ParseAnswerPolicy(cfg.Questionnaire.AnswerPolicy)
	if err != nil {
		log.Error("Invalid answer policy", "error", err)
		return 1
	}
	engine, err := questionnaire.NewEngine(log, questions, questionnaire.NewStore(store), handlers.NewComposer(generator, questions), policy)
	if err != nil {
		log.Error("Failed to create questionnaire engine", "error", err)
		return 1
	}

	taskQueue := queue.New(log)

	hDeps := handlers.HandlerDeps{
		Logger:        log,
		Config:        cfg,
		Store:         store,
		AI:            generator,
		Queue:         taskQueue,
		Questionnaire: engine,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, telegram.BotCommands(cmdHandlers)); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var httpServer *httpapi.Server
	if cfg.HTTP.Addr != "" {
		httpServer = httpapi.NewServer(cfg.HTTP.Addr, store, taskQueue, log)
	}

	app := bot.NewBot(log, cfg, store, taskQueue, tg, sched, httpServer)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
