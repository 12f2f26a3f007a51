// Package config provides configuration loading, validation, and management
// for the bot. It reads a YAML file and BOT_* environment variables through
// viper, applies defaults and validates the result.
package config

import (
	"errors"
	"time"

	"github.com/go-telegram/bot/models"
)

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Database      DatabaseConfig      `mapstructure:"database"`
	AI            AIConfig            `mapstructure:"ai"`
	Images        ImagesConfig        `mapstructure:"images"`
	Questionnaire QuestionnaireConfig `mapstructure:"questionnaire"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Messages      MessagesConfig      `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and admin settings.
type TelegramConfig struct {
	Token    string  `mapstructure:"token"     validate:"required"`
	AdminIDs []int64 `mapstructure:"admin_ids" validate:"dive,gt=0"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig selects the SQL driver and connection string.
// Path is a file path for sqlite or a DSN for postgres.
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"            validate:"oneof=sqlite postgres"`
	Path             string        `mapstructure:"path"              validate:"required"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"    validate:"min=1"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"min=1s"`
}

// AIConfig configures the text generation provider.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"          validate:"oneof=openai yandex gemini"`
	APIKey      string        `mapstructure:"api_key"           validate:"required_unless=Provider yandex"`
	BaseURL     string        `mapstructure:"base_url"          validate:"omitempty,url"`
	Model       string        `mapstructure:"model"             validate:"required"`
	FolderID    string        `mapstructure:"folder_id"`
	OAuthToken  string        `mapstructure:"oauth_token"       validate:"required_if=Provider yandex"`
	Temperature float32       `mapstructure:"temperature"       validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"        validate:"min=1,max=32000"`
	Timeout     time.Duration `mapstructure:"timeout"           validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries"       validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"       validate:"min=0"`
}

// ImagesConfig configures image generation. Generation is disabled when
// APIKey is empty.
type ImagesConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"        validate:"required_with=APIKey"`
	AspectRatio string `mapstructure:"aspect_ratio" validate:"omitempty,oneof=1:1 3:4 4:3 9:16 16:9"`
}

// QuestionnaireConfig points to the question source and selects how
// unanswered questions are passed to the composer.
type QuestionnaireConfig struct {
	QuestionsPath string        `mapstructure:"questions_path" validate:"required"`
	AnswerPolicy  string        `mapstructure:"answer_policy"  validate:"oneof=answered padded"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"    validate:"min=1m"`
}

// ChatConfig bounds the multi-chat history sent back to the model.
type ChatConfig struct {
	HistoryLimit  int           `mapstructure:"history_limit"  validate:"min=0,max=200"`
	HistoryTokens int           `mapstructure:"history_tokens" validate:"min=100"`
	HistoryTTL    time.Duration `mapstructure:"history_ttl"    validate:"min=1h"`
}

// QueueConfig configures the per-user task queue.
type QueueConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// SchedulerConfig lists cron tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a registered task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// HTTPConfig configures the admin HTTP endpoint. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// MessagesConfig holds every user-visible text the bot sends.
type MessagesConfig struct {
	Welcome               string `mapstructure:"welcome"                validate:"required"`
	Help                  string `mapstructure:"help"                   validate:"required"`
	MainMenu              string `mapstructure:"main_menu"              validate:"required"`
	ExtraMenu             string `mapstructure:"extra_menu"             validate:"required"`
	NotAuthorized         string `mapstructure:"not_authorized"         validate:"required"`
	AdminPanel            string `mapstructure:"admin_panel"            validate:"required"`
	SoloSelected          string `mapstructure:"solo_selected"          validate:"required"`
	EnterPrompt           string `mapstructure:"enter_prompt"           validate:"required"`
	QuestionnaireSelected string `mapstructure:"questionnaire_selected" validate:"required"`
	EnterImagePrompt      string `mapstructure:"enter_image_prompt"     validate:"required"`
	ImagesDisabled        string `mapstructure:"images_disabled"        validate:"required"`
	EnterContentPlan      string `mapstructure:"enter_content_plan"     validate:"required"`
	EnterRewrite          string `mapstructure:"enter_rewrite"          validate:"required"`
	EnterOrgDescription   string `mapstructure:"enter_org_description"  validate:"required"`
	OrgDescriptionSaved   string `mapstructure:"org_description_saved"  validate:"required"`
	SettingsHeader        string `mapstructure:"settings_header"        validate:"required"`
	SettingsSaved         string `mapstructure:"settings_saved"         validate:"required"`
	ChooseOption          string `mapstructure:"choose_option"          validate:"required"`
	MultiChatSelected     string `mapstructure:"multichat_selected"     validate:"required"`
	HistoryCleared        string `mapstructure:"history_cleared"        validate:"required"`
	Queued                string `mapstructure:"queued"                 validate:"required"`
	AlreadyRunning        string `mapstructure:"already_running"        validate:"required"`
	TaskCancelled         string `mapstructure:"task_cancelled"         validate:"required"`
	NothingToCancel       string `mapstructure:"nothing_to_cancel"      validate:"required"`
	QueueStats            string `mapstructure:"queue_stats"            validate:"required"`
	StatusBusy            string `mapstructure:"status_busy"            validate:"required"`
	StatusFree            string `mapstructure:"status_free"            validate:"required"`
	GeneralError          string `mapstructure:"general_error"          validate:"required"`
	Timeout               string `mapstructure:"timeout"                validate:"required"`
	StartupNotice         string `mapstructure:"startup_notice"         validate:"required"`
	UseMenu               string `mapstructure:"use_menu"               validate:"required"`
}
