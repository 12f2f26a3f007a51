package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/nkobot/internal/ai"
	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/telegram"
)

// Settings fields addressed by callback data "set:<field>[:<option>]".
const (
	settingStyle = "style"
	settingTone  = "tone"
	settingSize  = "size"
	settingOrg   = "org"
	settingShow  = "show"
	settingMenu  = "menu"
)

var (
	styleOptions = []string{"Информационный", "Разговорный", "Официальный", "Художественный"}
	toneOptions  = []string{"Дружелюбный", "Нейтральный", "Серьёзный", "Вдохновляющий"}
	sizeOptions  = []int{1, 2, 3}
)

func settingsText(format string, s *database.UserSettings) string {
	return fmt.Sprintf(format, s.Style, s.Tone, ai.SizeWords(s.Size))
}

func settingsKeyboard() *models.InlineKeyboardMarkup {
	button := func(text, field string) models.InlineKeyboardButton {
		return models.InlineKeyboardButton{Text: text, CallbackData: SettingsCallbackPrefix + field}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("Стиль", settingStyle), button("Тон", settingTone), button("Объём", settingSize)},
		{button("Об организации", settingOrg)},
		{button(ButtonToMenu, settingMenu)},
	}}
}

func optionsKeyboard(field string) *models.InlineKeyboardMarkup {
	var labels []string
	switch field {
	case settingStyle:
		labels = styleOptions
	case settingTone:
		labels = toneOptions
	case settingSize:
		for _, size := range sizeOptions {
			labels = append(labels, "~"+ai.SizeWords(size)+" слов")
		}
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(labels)+1)
	for i, label := range labels {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         label,
			CallbackData: fmt.Sprintf("%s%s:%d", SettingsCallbackPrefix, field, i),
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: ButtonBack, CallbackData: SettingsCallbackPrefix + settingShow}})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// openSettings shows the user's generation settings with the edit buttons.
func openSettings(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID, userID int64) {
	settings, err := deps.Store.GetUserSettings(ctx, userID)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to load user settings", "error", err, "user_id", userID)
		reply(ctx, b, deps.Logger, chatID, deps.Config.Messages.GeneralError, MainKeyboard())
		return
	}
	reply(ctx, b, deps.Logger, chatID, settingsText(deps.Config.Messages.SettingsHeader, settings), settingsKeyboard())
}

// applyOption stores option index idx of field into s.
func applyOption(s *database.UserSettings, field string, idx int) bool {
	switch field {
	case settingStyle:
		if idx < 0 || idx >= len(styleOptions) {
			return false
		}
		s.Style = styleOptions[idx]
	case settingTone:
		if idx < 0 || idx >= len(toneOptions) {
			return false
		}
		s.Tone = toneOptions[idx]
	case settingSize:
		if idx < 0 || idx >= len(sizeOptions) {
			return false
		}
		s.Size = sizeOptions[idx]
	default:
		return false
	}
	return true
}

// NewSettingsCallbackHandler returns a handler for the settings inline
// buttons.
func NewSettingsCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return settingsCallbackHandler{deps}.Handle
}

type settingsCallbackHandler struct {
	deps HandlerDeps
}

func (h settingsCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "settings_callback")

	cq := update.CallbackQuery
	if cq == nil {
		log.WarnContext(ctx, "Settings handler received update without callback query", "update_id", update.ID)
		return
	}
	answerCallback(ctx, b, log, cq.ID)

	userID := cq.From.ID
	chatID := callbackChatID(cq)
	log = log.With("user_id", userID, "data", cq.Data)

	var messageID int
	if cq.Message.Message != nil {
		messageID = cq.Message.Message.ID
	}
	chat := telegram.NewChat(b, chatID, log)

	field, option, hasOption := strings.Cut(strings.TrimPrefix(cq.Data, SettingsCallbackPrefix), ":")
	switch {
	case field == settingMenu:
		showMainMenu(ctx, h.deps, b, chatID, userID)
	case field == settingOrg:
		setState(ctx, h.deps, userID, StateAwaitingOrgDescription)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.EnterOrgDescription, removeKeyboard())
	case field == settingShow:
		h.render(ctx, log, chat, messageID, userID, "")
	case field != settingStyle && field != settingTone && field != settingSize:
		log.WarnContext(ctx, "Unknown settings field")
	case !hasOption:
		h.edit(ctx, log, chat, messageID, h.deps.Config.Messages.ChooseOption, optionsKeyboard(field))
	default:
		idx, err := strconv.Atoi(option)
		if err != nil {
			log.WarnContext(ctx, "Malformed settings option")
			return
		}
		h.save(ctx, log, chat, messageID, userID, field, idx)
	}
}

func (h settingsCallbackHandler) save(ctx context.Context, log *slog.Logger, chat *telegram.Chat, messageID int, userID int64, field string, idx int) {
	settings, err := h.deps.Store.GetUserSettings(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load user settings", "error", err)
		h.edit(ctx, log, chat, messageID, h.deps.Config.Messages.GeneralError, nil)
		return
	}
	if !applyOption(settings, field, idx) {
		log.WarnContext(ctx, "Unknown settings option", "field", field, "option", idx)
		return
	}
	if err := h.deps.Store.SaveUserSettings(ctx, settings); err != nil {
		log.ErrorContext(ctx, "Failed to save user settings", "error", err)
		h.edit(ctx, log, chat, messageID, h.deps.Config.Messages.GeneralError, nil)
		return
	}

	log.InfoContext(ctx, "User settings updated", "field", field)
	h.render(ctx, log, chat, messageID, userID, h.deps.Config.Messages.SettingsSaved+"\n\n")
}

func (h settingsCallbackHandler) render(ctx context.Context, log *slog.Logger, chat *telegram.Chat, messageID int, userID int64, prefix string) {
	settings, err := h.deps.Store.GetUserSettings(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load user settings", "error", err)
		return
	}
	h.edit(ctx, log, chat, messageID, prefix+settingsText(h.deps.Config.Messages.SettingsHeader, settings), settingsKeyboard())
}

// edit replaces the settings message, or sends a new one when the original
// is no longer accessible.
func (h settingsCallbackHandler) edit(ctx context.Context, log *slog.Logger, chat *telegram.Chat, messageID int, text string, markup models.ReplyMarkup) {
	var err error
	if messageID != 0 {
		err = chat.Edit(ctx, messageID, text, markup)
	} else {
		_, err = chat.Send(ctx, text, markup)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to show settings", "error", err)
	}
}
