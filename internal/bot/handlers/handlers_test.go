package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/nkobot/internal/ai"
	"github.com/edgard/nkobot/internal/config"
	"github.com/edgard/nkobot/internal/database"
	"github.com/edgard/nkobot/internal/questionnaire"
	"github.com/edgard/nkobot/internal/queue"
	"github.com/edgard/nkobot/internal/telegram/telegramtest"
)

const (
	adminID = int64(1)
	userID  = int64(7)
)

type genCall struct {
	mode    string
	system  string
	prompt  string
	history []ai.Message
	answers []ai.QA
}

type fakeGenerator struct {
	mu     sync.Mutex
	calls  []genCall
	result string
	err    error
	images bool
	block  chan struct{}
}

func (g *fakeGenerator) record(ctx context.Context, c genCall) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	block, result, err := g.block, g.result, g.err
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return result, err
}

func (g *fakeGenerator) Calls() []genCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

func (g *fakeGenerator) Single(ctx context.Context, system, prompt string) (string, error) {
	return g.record(ctx, genCall{mode: "single", system: system, prompt: prompt})
}

func (g *fakeGenerator) Compose(ctx context.Context, system string, answers []ai.QA) (string, error) {
	return g.record(ctx, genCall{mode: "compose", system: system, answers: answers})
}

func (g *fakeGenerator) ContentPlan(ctx context.Context, system, prompt string) (string, error) {
	return g.record(ctx, genCall{mode: "content_plan", system: system, prompt: prompt})
}

func (g *fakeGenerator) Rewrite(ctx context.Context, text string) (string, error) {
	return g.record(ctx, genCall{mode: "rewrite", prompt: text})
}

func (g *fakeGenerator) BuildSystemPrompt(ctx context.Context, orgDescription string) (string, error) {
	return g.record(ctx, genCall{mode: "system_prompt", prompt: orgDescription})
}

func (g *fakeGenerator) Chat(ctx context.Context, system string, history []ai.Message, prompt string) (string, error) {
	return g.record(ctx, genCall{mode: "chat", system: system, history: slices.Clone(history), prompt: prompt})
}

func (g *fakeGenerator) Draw(ctx context.Context, prompt string) (*ai.Image, error) {
	if !g.images {
		return nil, ai.ErrImagesDisabled
	}
	if _, err := g.record(ctx, genCall{mode: "draw", prompt: prompt}); err != nil {
		return nil, err
	}
	return &ai.Image{Data: []byte("png"), MIMEType: "image/png"}, nil
}

func (g *fakeGenerator) ImagesEnabled() bool {
	return g.images
}

type harness struct {
	t     *testing.T
	deps  HandlerDeps
	srv   *telegramtest.Server
	b     *bot.Bot
	gen   *fakeGenerator
	store database.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := telegramtest.NewServer(t)

	db, err := database.NewDB(config.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, logger)

	questions, err := questionnaire.NewQuestionSet(map[string]string{
		"1": "О чём будет пост?",
		"2": "Для кого он?",
		"3": "Какой призыв к действию?",
	})
	require.NoError(t, err)

	gen := &fakeGenerator{result: "Готовый текст"}
	engine, err := questionnaire.NewEngine(logger, questions, questionnaire.NewStore(store), NewComposer(gen, questions), questionnaire.PolicyAnswered)
	require.NoError(t, err)

	q := queue.New(logger)
	go func() { _ = q.Run(context.Background()) }()
	t.Cleanup(func() {
		q.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Wait(ctx)
	})

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminIDs: []int64{adminID}},
		Chat:     config.ChatConfig{HistoryLimit: 20, HistoryTokens: 3000, HistoryTTL: time.Hour},
		Messages: config.DefaultMessages,
	}

	return &harness{
		t:     t,
		srv:   srv,
		b:     srv.NewBot(t),
		gen:   gen,
		store: store,
		deps: HandlerDeps{
			Logger:        logger,
			Config:        cfg,
			Store:         store,
			AI:            gen,
			Queue:         q,
			Questionnaire: engine,
		},
	}
}

func textUpdate(from int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   1,
		From: &models.User{ID: from, FirstName: "Анна", LastName: "Петрова", Username: "anna"},
		Chat: models.Chat{ID: from},
		Text: text,
	}}
}

func callbackUpdate(from int64, data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: from},
		Data: data,
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 55, Chat: models.Chat{ID: from}},
		},
	}}
}

func (h *harness) send(from int64, text string) {
	NewMessageHandler(h.deps)(context.Background(), h.b, textUpdate(from, text))
}

func (h *harness) press(from int64, data string) {
	handler := NewQuestionnaireCallbackHandler(h.deps)
	if strings.HasPrefix(data, SettingsCallbackPrefix) {
		handler = NewSettingsCallbackHandler(h.deps)
	}
	handler(context.Background(), h.b, callbackUpdate(from, data))
}

func (h *harness) waitForText(want string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return slices.Contains(h.srv.Texts(), want)
	}, 5*time.Second, 5*time.Millisecond, "message %q was not sent, got %q", want, h.srv.Texts())
}

func (h *harness) state(id int64) string {
	h.t.Helper()
	s, err := h.store.GetUserState(context.Background(), id)
	require.NoError(h.t, err)
	return s
}

func TestStartRegistersUserAndShowsMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	NewStartHandler(h.deps)(context.Background(), h.b, textUpdate(adminID, "/start"))

	user, err := h.store.GetUser(context.Background(), adminID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Анна Петрова", user.FullName)
	assert.True(t, user.IsAdmin)

	calls := h.srv.Calls("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "Добро пожаловать, Анна Петрова! Выберите режим для начала работы:", calls[0].Params["text"])
	assert.Contains(t, calls[0].Params["reply_markup"], ButtonSolo)
	assert.Equal(t, StateMenu, h.state(adminID))
}

func TestSinglePromptUsesSettings(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(userID, ButtonSolo)
	assert.Equal(t, StateAwaitingPrompt, h.state(userID))
	assert.Equal(t, []string{config.DefaultMessages.SoloSelected, config.DefaultMessages.EnterPrompt}, h.srv.Texts())

	h.send(userID, "Пост о субботнике")
	h.waitForText("Готовый текст")

	calls := h.gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "single", calls[0].mode)
	assert.Equal(t, "Пост о субботнике", calls[0].prompt)
	assert.Contains(t, calls[0].system, "Пиши в стиле:Информационный, в тоне: Дружелюбный, около 250 слов")
	assert.Equal(t, StateMenu, h.state(userID))
}

func TestQuestionnaireFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.send(userID, ButtonQuestionnaire)
	assert.Equal(t, StateQuestionnaire, h.state(userID))
	assert.Equal(t, []string{config.DefaultMessages.QuestionnaireSelected, "О чём будет пост?"}, h.srv.Texts())

	h.send(userID, "Субботник в парке")
	assert.Equal(t, "Для кого он?", h.srv.Texts()[2])

	h.press(userID, "q:back")
	edits := h.srv.Calls("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, "О чём будет пост?", edits[0].Params["text"])

	h.press(userID, "q:next")
	h.send(userID, "Для жителей района")

	h.press(userID, "q:finish")
	h.waitForText(config.DefaultMessages.MainMenu)

	texts := h.srv.Texts()
	assert.Contains(t, texts, "Готовый текст")

	calls := h.gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "compose", calls[0].mode)
	assert.Equal(t, []ai.QA{
		{Question: "О чём будет пост?", Answer: "Субботник в парке"},
		{Question: "Для кого он?", Answer: "Для жителей района"},
	}, calls[0].answers)
	assert.Contains(t, calls[0].system, "Пиши в стиле:")

	active, err := h.deps.Questionnaire.Active(ctx, userID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, StateMenu, h.state(userID))
}

func TestQuestionnaireMenuDiscardsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(userID, ButtonQuestionnaire)
	h.send(userID, "Ответ")
	h.press(userID, "q:menu")

	active, err := h.deps.Questionnaire.Active(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, StateMenu, h.state(userID))
	assert.Equal(t, config.DefaultMessages.MainMenu, h.srv.Texts()[len(h.srv.Texts())-1])

	// A stale button press after the menu is ignored.
	h.press(userID, "q:next")
	h.press(userID, "q:finish")
	assert.Empty(t, h.srv.Calls("editMessageText"))
	assert.Empty(t, h.gen.Calls())
	assert.Len(t, h.srv.Calls("answerCallbackQuery"), 3)
}

func TestModeButtonAbandonsQuestionnaire(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(userID, ButtonQuestionnaire)
	h.send(userID, ButtonRewrite)

	active, err := h.deps.Questionnaire.Active(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, StateAwaitingRewrite, h.state(userID))

	h.send(userID, "текст с ошибкими")
	h.waitForText("Готовый текст")
	assert.Equal(t, "rewrite", h.gen.Calls()[0].mode)
}

func TestMultiChatKeepsHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(userID, ButtonMultiChat)
	assert.Equal(t, StateMultiChat, h.state(userID))

	h.send(userID, "Привет")
	require.Eventually(t, func() bool { return len(h.srv.Texts()) == 2 }, 5*time.Second, 5*time.Millisecond)

	h.send(userID, "Продолжи")
	require.Eventually(t, func() bool { return len(h.srv.Texts()) == 3 }, 5*time.Second, 5*time.Millisecond)

	calls := h.gen.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].history)
	assert.Equal(t, []ai.Message{
		{Role: ai.RoleUser, Content: "Привет"},
		{Role: ai.RoleAssistant, Content: "Готовый текст"},
	}, calls[1].history)
	assert.Equal(t, StateMultiChat, h.state(userID))

	h.send(userID, ButtonNewDialog)
	h.waitForText(config.DefaultMessages.HistoryCleared)

	history, err := h.store.GetRecentChatMessages(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestImageGeneration(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		h.send(userID, ButtonImage)
		assert.Equal(t, []string{config.DefaultMessages.ImagesDisabled}, h.srv.Texts())
		assert.Equal(t, StateMenu, h.state(userID))
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.gen.images = true

		h.send(userID, ButtonImage)
		assert.Equal(t, StateAwaitingImage, h.state(userID))

		h.send(userID, "Волонтёры сажают деревья")
		photos := h.srv.WaitFor(t, "sendPhoto", 1)
		assert.Equal(t, []byte("png"), photos[0].Files["photo"])
	})
}

func TestGenerationFailureIsReported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "general", err: errors.New("provider down"), want: config.DefaultMessages.GeneralError},
		{name: "timeout", err: context.DeadlineExceeded, want: config.DefaultMessages.Timeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.gen.err = tt.err

			h.send(userID, ButtonContentPlan)
			h.send(userID, "План на май")
			h.waitForText(tt.want)
			assert.Equal(t, StateMenu, h.state(userID))
		})
	}
}

func TestBusyUserIsToldTaskIsQueued(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	release := make(chan struct{})
	h.gen.block = release

	h.send(userID, ButtonSolo)
	h.send(userID, "Первый")
	require.Eventually(t, func() bool { return len(h.gen.Calls()) == 1 }, 5*time.Second, 5*time.Millisecond)

	h.send(userID, ButtonSolo)
	h.send(userID, "Второй")
	msgs := config.DefaultMessages
	assert.Contains(t, h.srv.Texts(), msgs.AlreadyRunning+"\n"+msgs.Queued)

	close(release)
	require.Eventually(t, func() bool { return len(h.gen.Calls()) == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Второй", h.gen.Calls()[1].prompt)
}

func TestCancelAbortsRunningTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gen.block = make(chan struct{})

	NewCancelHandler(h.deps)(context.Background(), h.b, textUpdate(userID, "/cancel"))
	assert.Equal(t, []string{config.DefaultMessages.NothingToCancel}, h.srv.Texts())

	h.send(userID, ButtonSolo)
	h.send(userID, "Долгий запрос")
	require.Eventually(t, func() bool { return h.deps.Queue.Stats().ActiveUsers == 1 }, 5*time.Second, 5*time.Millisecond)

	NewCancelHandler(h.deps)(context.Background(), h.b, textUpdate(userID, "/cancel"))
	h.waitForText(config.DefaultMessages.TaskCancelled)

	require.Eventually(t, func() bool { return !h.deps.Queue.Busy(userID) }, 5*time.Second, 5*time.Millisecond)
	assert.NotContains(t, h.srv.Texts(), config.DefaultMessages.GeneralError)
}

func TestQueueCommandReportsStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	NewQueueHandler(h.deps)(context.Background(), h.b, textUpdate(userID, "/queue"))

	texts := h.srv.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Задач в очереди: 0")
	assert.Contains(t, texts[0], config.DefaultMessages.StatusFree)
}

func TestSettingsCallbacks(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.send(userID, ButtonSettings)
	texts := h.srv.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Стиль: Информационный")

	h.press(userID, "set:tone")
	edits := h.srv.Calls("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, config.DefaultMessages.ChooseOption, edits[0].Params["text"])
	assert.Contains(t, edits[0].Params["reply_markup"], "set:tone:3")

	h.press(userID, "set:tone:2")
	h.press(userID, "set:size:0")
	h.press(userID, "set:size:9")

	settings, err := h.store.GetUserSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Серьёзный", settings.Tone)
	assert.Equal(t, 1, settings.Size)

	edits = h.srv.Calls("editMessageText")
	require.Len(t, edits, 3)
	assert.True(t, strings.HasPrefix(edits[2].Params["text"], config.DefaultMessages.SettingsSaved))
	assert.Contains(t, edits[2].Params["text"], "около 100 слов")
}

func TestOrgDescriptionBuildsSystemPrompt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	h.gen.result = "Ты пишешь для НКО «Зелёный город»"

	h.press(userID, "set:org")
	assert.Equal(t, StateAwaitingOrgDescription, h.state(userID))

	h.send(userID, "«Зелёный город», Казань, озеленение дворов")
	assert.Contains(t, h.srv.Texts(), config.DefaultMessages.OrgDescriptionSaved)
	assert.Equal(t, StateMenu, h.state(userID))

	require.Eventually(t, func() bool {
		s, err := h.store.GetUserSettings(ctx, userID)
		return err == nil && s.SystemPrompt == "Ты пишешь для НКО «Зелёный город»"
	}, 5*time.Second, 5*time.Millisecond)

	settings, err := h.store.GetUserSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "«Зелёный город», Казань, озеленение дворов", settings.OrgDescription)
}

func TestAdminOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	handler := AdminOnly(h.deps)(NewAdminHandler(h.deps))

	handler(context.Background(), h.b, textUpdate(userID, "/admin"))
	assert.Equal(t, []string{config.DefaultMessages.NotAuthorized}, h.srv.Texts())

	handler(context.Background(), h.b, textUpdate(adminID, "/admin"))
	texts := h.srv.Texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Пользователей: 0")
}

func TestExtraMenuShowsBotSettingsToAdmins(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(userID, ButtonExtra)
	h.send(adminID, ButtonExtra)

	calls := h.srv.Calls("sendMessage")
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0].Params["reply_markup"], ButtonBotSettings)
	assert.Contains(t, calls[1].Params["reply_markup"], ButtonBotSettings)
}

func TestUnroutedTextShowsMenuHint(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(userID, "просто текст")
	h.send(userID, "/unknown")

	assert.Equal(t, []string{config.DefaultMessages.UseMenu, config.DefaultMessages.UseMenu}, h.srv.Texts())
	assert.Empty(t, h.gen.Calls())
}

func TestComposerPairsAnswersInQuestionOrder(t *testing.T) {
	t.Parallel()

	questions, err := questionnaire.NewQuestionSet(map[string]string{"1": "Первый", "2": "Второй", "10": "Десятый",
		"3": "3", "4": "4", "5": "5", "6": "6", "7": "7", "8": "8", "9": "9"})
	require.NoError(t, err)
	gen := &fakeGenerator{result: "ok"}

	out, err := NewComposer(gen, questions).Compose(context.Background(),
		map[string]string{"10": "д", "2": "в", "1": "п", "x": "ignored"}, "контекст")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "контекст", calls[0].system)
	assert.Equal(t, []ai.QA{
		{Question: "Первый", Answer: "п"},
		{Question: "Второй", Answer: "в"},
		{Question: "Десятый", Answer: "д"},
	}, calls[0].answers)
}

func TestHelpKeepsMainKeyboard(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	NewHelpHandler(h.deps)(context.Background(), h.b, textUpdate(userID, "/help"))

	calls := h.srv.Calls("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, config.DefaultMessages.Help, calls[0].Params["text"])
	assert.Contains(t, calls[0].Params["reply_markup"], ButtonSolo)
}

func TestQueuedFinishComposesSealedQuestionnaire(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	release := make(chan struct{})
	h.gen.block = release

	h.send(userID, ButtonSolo)
	h.send(userID, "Долгий запрос")
	require.Eventually(t, func() bool { return len(h.gen.Calls()) == 1 }, 5*time.Second, 5*time.Millisecond)

	h.send(userID, ButtonQuestionnaire)
	h.send(userID, "старый ответ")
	h.press(userID, "q:finish")
	assert.Equal(t, StateMenu, h.state(userID))

	// The sealed questionnaire no longer moves or takes answers.
	h.press(userID, "q:next")
	assert.Empty(t, h.srv.Calls("editMessageText"))
	h.send(userID, "лишний ответ")
	assert.Equal(t, config.DefaultMessages.UseMenu, h.srv.Texts()[len(h.srv.Texts())-1])

	h.send(userID, ButtonQuestionnaire)
	h.send(userID, "новый ответ 1")

	close(release)
	require.Eventually(t, func() bool {
		n := 0
		for _, text := range h.srv.Texts() {
			if text == "Готовый текст" {
				n++
			}
		}
		return n == 2 && !h.deps.Queue.Busy(userID)
	}, 5*time.Second, 5*time.Millisecond)

	require.Len(t, h.gen.Calls(), 2)
	compose := h.gen.Calls()[1]
	assert.Equal(t, "compose", compose.mode)
	assert.Equal(t, []ai.QA{{Question: "О чём будет пост?", Answer: "старый ответ"}}, compose.answers)

	session, err := h.deps.Questionnaire.Session(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, questionnaire.StateAwaitingAnswer, session.State())
	assert.Equal(t, map[string]string{"1": "новый ответ 1"}, session.Answers)
	assert.Equal(t, StateQuestionnaire, h.state(userID))
	assert.NotContains(t, h.srv.Texts(), config.DefaultMessages.MainMenu)
}
