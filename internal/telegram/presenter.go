package telegram

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/nkobot/internal/questionnaire"
)

// QuestionCallbackPrefix starts the callback data of questionnaire buttons.
const QuestionCallbackPrefix = "q:"

// Labels of the questionnaire buttons.
const (
	ButtonBack   = "⬅️"
	ButtonNext   = "➡️"
	ButtonMenu   = "🏠В меню"
	ButtonFinish = "✅ Отправить"
)

var actionLabels = map[questionnaire.Action]string{
	questionnaire.ActionBack:   ButtonBack,
	questionnaire.ActionNext:   ButtonNext,
	questionnaire.ActionMenu:   ButtonMenu,
	questionnaire.ActionFinish: ButtonFinish,
}

// Presenter shows questionnaire prompts in a chat with an inline keyboard:
// navigation on the first row, menu and finish on the second.
type Presenter struct {
	chat *Chat
}

var _ questionnaire.Presenter = (*Presenter)(nil)

// NewPresenter creates a Presenter for chat.
func NewPresenter(chat *Chat) *Presenter {
	return &Presenter{chat: chat}
}

// Send shows p as a new message. Prompts without actions carry the composed
// text and may span several messages.
func (p *Presenter) Send(ctx context.Context, prompt questionnaire.Prompt) (int, error) {
	if len(prompt.Actions) == 0 {
		return p.chat.SendLong(ctx, prompt.Text, nil)
	}
	return p.chat.Send(ctx, prompt.Text, ActionKeyboard(prompt.Actions))
}

// Edit replaces the question message in place.
func (p *Presenter) Edit(ctx context.Context, messageID int, prompt questionnaire.Prompt) error {
	var markup models.ReplyMarkup
	if len(prompt.Actions) > 0 {
		markup = ActionKeyboard(prompt.Actions)
	}
	return p.chat.Edit(ctx, messageID, prompt.Text, markup)
}

// ActionKeyboard builds the inline keyboard for actions.
func ActionKeyboard(actions []questionnaire.Action) *models.InlineKeyboardMarkup {
	var nav, control []models.InlineKeyboardButton
	for _, a := range actions {
		label, ok := actionLabels[a]
		if !ok {
			continue
		}
		button := models.InlineKeyboardButton{Text: label, CallbackData: QuestionCallbackPrefix + string(a)}
		switch a {
		case questionnaire.ActionBack, questionnaire.ActionNext:
			nav = append(nav, button)
		default:
			control = append(control, button)
		}
	}

	var rows [][]models.InlineKeyboardButton
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if len(control) > 0 {
		rows = append(rows, control)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
