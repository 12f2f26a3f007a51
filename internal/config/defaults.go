package config

import "time"

// Default values for configuration
const (
	DefaultConfigPath = "./config.yaml"
	DefaultEnvPrefix  = "BOT"

	DefaultLogLevel = "info"

	DefaultDBDriver           = "sqlite"
	DefaultDBPath             = "storage.db"
	DefaultDBMaxOpenConns     = 10
	DefaultDBConnMaxLifetime  = 5 * time.Minute
	DefaultDBOperationTimeout = 15 * time.Second

	// The Yandex Cloud endpoint speaks the OpenAI chat completions protocol.
	DefaultAIProvider    = "openai"
	DefaultAIBaseURL     = "https://llm.api.cloud.yandex.net/v1"
	DefaultAIModel       = "yandexgpt-lite"
	DefaultAITemperature = 0.8
	DefaultAIMaxTokens   = 1500
	DefaultAITimeout     = 2 * time.Minute
	DefaultAIMaxRetries  = 2
	DefaultAIRetryDelay  = 2 * time.Second

	DefaultImagesModel       = "imagen-3.0-generate-002"
	DefaultImagesAspectRatio = "1:1"

	DefaultQuestionsPath = "settings.json"
	DefaultAnswerPolicy  = "answered"
	DefaultSessionTTL    = 24 * time.Hour

	DefaultChatHistoryLimit  = 20
	DefaultChatHistoryTokens = 3000
	DefaultChatHistoryTTL    = 7 * 24 * time.Hour

	DefaultQueueShutdownTimeout = 30 * time.Second
)

// DefaultMessages are the Russian texts the bot ships with.
var DefaultMessages = MessagesConfig{
	Welcome:               "Добро пожаловать, %s! Выберите режим для начала работы:",
	Help:                  "Доступные команды:\n/start - главное меню\n/help - помощь\n/queue - информация об очереди\n/cancel - отмена текущей задачи\n/admin - панель администратора",
	MainMenu:              "Главное меню:",
	ExtraMenu:             "Дополнительное меню:",
	NotAuthorized:         "Доступ запрещен",
	AdminPanel:            "Панель администратора\nПользователей: %d\nЗадач в очереди: %d\nАктивных пользователей: %d",
	SoloSelected:          "Выбран режим: Одиночный запрос",
	EnterPrompt:           "Теперь введите ваш промт:",
	QuestionnaireSelected: "Выбран режим: Запрос с уточнениями",
	EnterImagePrompt:      "Опишите изображение, которое нужно сгенерировать:",
	ImagesDisabled:        "Генерация изображений не настроена.",
	EnterContentPlan:      "Укажите период и пожелания для контент-плана:",
	EnterRewrite:          "Отправьте текст, в котором нужно исправить ошибки:",
	EnterOrgDescription:   "Расскажите о вашей НКО: название, город, чем занимается.",
	OrgDescriptionSaved:   "Информация об организации сохранена.",
	SettingsHeader:        "Настройки генерации\nСтиль: %s\nТон: %s\nОбъем: около %s слов",
	SettingsSaved:         "Настройки сохранены.",
	ChooseOption:          "Выберите значение:",
	MultiChatSelected:     "Выбран режим: Мульти-чат. Пишите сообщения, я помню контекст диалога.",
	HistoryCleared:        "История диалога очищена.",
	Queued:                "📥 Задача добавлена в очередь...",
	AlreadyRunning:        "⏳ Ваша задача уже выполняется...",
	TaskCancelled:         "❌ Задача отменена",
	NothingToCancel:       "ℹ️ У вас нет активных задач",
	QueueStats:            "📊 Статистика очереди:\n• Задач в очереди: %d\n• Активных пользователей: %d\n• Ваш статус: %s",
	StatusBusy:            "В обработке",
	StatusFree:            "Свободен",
	GeneralError:          "❌ Произошла ошибка. Попробуйте позже.",
	Timeout:               "⏱️ Превышено время ожидания. Попробуйте позже.",
	StartupNotice:         "✅ Бот запущен и готов к работе! /start",
	UseMenu:               "Воспользуйтесь меню или командой /start.",
}

// DefaultSchedulerTasks enables the maintenance jobs the bot registers.
var DefaultSchedulerTasks = map[string]TaskConfig{
	"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
	"session_cleanup": {Enabled: true, Schedule: "0 */30 * * * *"},
}
