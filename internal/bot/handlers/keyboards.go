package handlers

import (
	"github.com/go-telegram/bot/models"
)

// Reply keyboard buttons.
const (
	ButtonSolo          = "📝 Одиночный запрос"
	ButtonExtra         = "🗂️ Доп. функции"
	ButtonQuestionnaire = "❓ Запрос с уточнениями"
	ButtonSettings      = "🛠️ Настройки генерации"

	ButtonImage       = "● █▀█▄ Ɑ͞ ̶͞ ̶͞ ̶͞ لں͞ Генерация изображения"
	ButtonMultiChat   = "Мульти-чат"
	ButtonContentPlan = "📅 Генерация контент плана"
	ButtonRewrite     = "✏️ Исправление ошибок"
	ButtonBack        = "🔙 Назад"
	ButtonBotSettings = "⚙️ Настройки бота"

	ButtonNewDialog = "🧹 Новый диалог"
	ButtonToMenu    = "В меню"
)

func replyKeyboard(rows ...[]string) *models.ReplyKeyboardMarkup {
	keyboard := make([][]models.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]models.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, models.KeyboardButton{Text: text})
		}
		keyboard = append(keyboard, buttons)
	}
	return &models.ReplyKeyboardMarkup{
		Keyboard:        keyboard,
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// MainKeyboard is the main menu.
func MainKeyboard() *models.ReplyKeyboardMarkup {
	return replyKeyboard(
		[]string{ButtonSolo, ButtonExtra},
		[]string{ButtonQuestionnaire, ButtonSettings},
	)
}

// ExtraKeyboard is the extra functions menu. Admins also get the bot
// settings button.
func ExtraKeyboard(admin bool) *models.ReplyKeyboardMarkup {
	last := []string{ButtonContentPlan, ButtonBack}
	if admin {
		last = append(last, ButtonBotSettings)
	}
	return replyKeyboard(
		[]string{ButtonImage, ButtonMultiChat},
		[]string{ButtonRewrite},
		last,
	)
}

// MultiChatKeyboard stays visible during a multi-chat dialog.
func MultiChatKeyboard() *models.ReplyKeyboardMarkup {
	kb := replyKeyboard([]string{ButtonNewDialog}, []string{ButtonToMenu})
	kb.OneTimeKeyboard = false
	return kb
}

func removeKeyboard() *models.ReplyKeyboardRemove {
	return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
}
