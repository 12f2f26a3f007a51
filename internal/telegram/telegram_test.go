package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/telegram/telegramtest"
	"github.com/edgard/nkobot/internal/text"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChat(t *testing.T) (*Chat, *telegramtest.Server) {
	t.Helper()
	srv := telegramtest.NewServer(t)
	return NewChat(srv.NewBot(t), 42, discardLogger()), srv
}

func decodeKeyboard(t *testing.T, raw string) models.InlineKeyboardMarkup {
	t.Helper()
	var kb models.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(raw), &kb))
	return kb
}

func TestActionKeyboardLayout(t *testing.T) {
	t.Parallel()

	kb := ActionKeyboard([]questionnaire.Action{
		questionnaire.ActionBack, questionnaire.ActionNext, questionnaire.ActionMenu, questionnaire.ActionFinish,
	})
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, []models.InlineKeyboardButton{
		{Text: ButtonBack, CallbackData: "q:back"},
		{Text: ButtonNext, CallbackData: "q:next"},
	}, kb.InlineKeyboard[0])
	assert.Equal(t, []models.InlineKeyboardButton{
		{Text: ButtonMenu, CallbackData: "q:menu"},
		{Text: ButtonFinish, CallbackData: "q:finish"},
	}, kb.InlineKeyboard[1])

	onlyControls := ActionKeyboard([]questionnaire.Action{questionnaire.ActionMenu, questionnaire.ActionFinish})
	require.Len(t, onlyControls.InlineKeyboard, 1)
	assert.Len(t, onlyControls.InlineKeyboard[0], 2)
}

func TestPresenterSendsQuestionWithKeyboard(t *testing.T) {
	t.Parallel()
	chat, srv := newTestChat(t)
	p := NewPresenter(chat)

	id, err := p.Send(context.Background(), questionnaire.Prompt{
		Text:    "О чём пост?",
		Actions: []questionnaire.Action{questionnaire.ActionNext, questionnaire.ActionMenu, questionnaire.ActionFinish},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	calls := srv.Calls("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].Params["chat_id"])
	assert.Equal(t, "О чём пост?", calls[0].Params["text"])

	kb := decodeKeyboard(t, calls[0].Params["reply_markup"])
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "q:next", kb.InlineKeyboard[0][0].CallbackData)
}

func TestPresenterEditsInPlace(t *testing.T) {
	t.Parallel()
	chat, srv := newTestChat(t)
	p := NewPresenter(chat)

	err := p.Edit(context.Background(), 77, questionnaire.Prompt{
		Text:    "Вопрос 2",
		Actions: []questionnaire.Action{questionnaire.ActionBack, questionnaire.ActionMenu, questionnaire.ActionFinish},
	})
	require.NoError(t, err)

	calls := srv.Calls("editMessageText")
	require.Len(t, calls, 1)
	assert.Equal(t, "77", calls[0].Params["message_id"])
	assert.Equal(t, "Вопрос 2", calls[0].Params["text"])
	assert.Empty(t, srv.Calls("sendMessage"))
}

func TestEditIgnoresNotModified(t *testing.T) {
	t.Parallel()
	chat, srv := newTestChat(t)
	srv.Fail("editMessageText", "Bad Request: message is not modified: specified new message content and reply markup are exactly the same")

	require.NoError(t, chat.Edit(context.Background(), 5, "same", nil))

	srv.Fail("editMessageText", "Bad Request: message to edit not found")
	assert.Error(t, chat.Edit(context.Background(), 5, "same", nil))
}

func TestPresenterSendsComposedTextInChunks(t *testing.T) {
	t.Parallel()
	chat, srv := newTestChat(t)
	p := NewPresenter(chat)

	long := strings.Repeat("абзац текста. ", 600)
	_, err := p.Send(context.Background(), questionnaire.Prompt{Text: long})
	require.NoError(t, err)

	texts := srv.Texts()
	require.Len(t, texts, 3)
	for _, s := range texts {
		assert.LessOrEqual(t, len([]rune(s)), text.MaxMessageLength)
	}
	for _, c := range srv.Calls("sendMessage") {
		assert.Empty(t, c.Params["reply_markup"])
	}
}

func TestSendLongRejectsEmpty(t *testing.T) {
	t.Parallel()
	chat, _ := newTestChat(t)

	_, err := chat.SendLong(context.Background(), " \n ", nil)
	assert.Error(t, err)
}

func TestSendPhoto(t *testing.T) {
	t.Parallel()
	chat, srv := newTestChat(t)

	require.NoError(t, chat.SendPhoto(context.Background(), []byte("png-bytes"), "image.png", nil))

	calls := srv.Calls("sendPhoto")
	require.Len(t, calls, 1)
	assert.Equal(t, []byte("png-bytes"), calls[0].Files["photo"])
}

func TestKeepTypingUntilStopped(t *testing.T) {
	t.Parallel()
	chat, srv := newTestChat(t)

	stop := chat.KeepTyping(context.Background(), 10*time.Millisecond)
	srv.WaitFor(t, "sendChatAction", 2)
	stop()

	n := len(srv.Calls("sendChatAction"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(srv.Calls("sendChatAction")))
	assert.Contains(t, srv.Calls("sendChatAction")[0].Params["action"], "typing")
}

func TestBotCommandsSorted(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, *bot.Bot, *models.Update) {}
	cmds := BotCommands(map[string]RegisteredHandler{
		"/start":   {HandlerType: bot.HandlerTypeMessageText, Pattern: "start", Handler: noop, Description: "Главное меню"},
		"/cancel":  {HandlerType: bot.HandlerTypeMessageText, Pattern: "cancel", Handler: noop, Description: "Отмена"},
		"/hidden":  {HandlerType: bot.HandlerTypeMessageText, Pattern: "hidden", Handler: noop},
		"callback": {HandlerType: bot.HandlerTypeCallbackQueryData, Pattern: "q:", Handler: noop, Description: "x"},
	})

	assert.Equal(t, []models.BotCommand{
		{Command: "cancel", Description: "Отмена"},
		{Command: "start", Description: "Главное меню"},
	}, cmds)
}

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) { order = append(order, "handler") },
		[]bot.Middleware{mw("outer"), mw("inner")})
	h(context.Background(), nil, &models.Update{})

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestNewTelegramBotRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewTelegramBot("", discardLogger())
	assert.Error(t, err)
}
