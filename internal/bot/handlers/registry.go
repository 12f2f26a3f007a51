package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/nkobot/internal/telegram"
)

// Callback data prefixes of the inline keyboards.
const (
	QuestionnaireCallbackPrefix = telegram.QuestionCallbackPrefix
	SettingsCallbackPrefix      = "set:"
)

// RegisterAllCommands initializes and returns a map of all available bot
// commands and callback handlers. Plain text is handled by the default
// handler, see NewMessageHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Description: "Главное меню",
	}
	handlers["/help"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Description: "Помощь",
	}
	handlers["/queue"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "queue",
		Handler:     NewQueueHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Description: "Информация об очереди",
	}
	handlers["/cancel"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "cancel",
		Handler:     NewCancelHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Description: "Отмена текущей задачи",
	}
	handlers["/admin"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "admin",
		Handler:     NewAdminHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  []tgbot.Middleware{AdminOnly(deps)},
		Description: "Панель администратора",
	}

	handlers["questionnaire"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     QuestionnaireCallbackPrefix,
		Handler:     NewQuestionnaireCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}
	handlers["settings"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     SettingsCallbackPrefix,
		Handler:     NewSettingsCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
