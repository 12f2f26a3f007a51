package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// defaults lists every scalar key so that BOT_* environment variables can
// override it even when the config file omits the key.
var defaults = map[string]any{
	"logger.level": DefaultLogLevel,
	"logger.json":  false,

	"telegram.token":     "",
	"telegram.admin_ids": []int64{},

	"database.driver":            DefaultDBDriver,
	"database.path":              DefaultDBPath,
	"database.max_open_conns":    DefaultDBMaxOpenConns,
	"database.conn_max_lifetime": DefaultDBConnMaxLifetime,
	"database.operation_timeout": DefaultDBOperationTimeout,

	"ai.provider":    DefaultAIProvider,
	"ai.api_key":     "",
	"ai.base_url":    DefaultAIBaseURL,
	"ai.model":       DefaultAIModel,
	"ai.folder_id":   "",
	"ai.oauth_token": "",
	"ai.temperature": DefaultAITemperature,
	"ai.max_tokens":  DefaultAIMaxTokens,
	"ai.timeout":     DefaultAITimeout,
	"ai.max_retries": DefaultAIMaxRetries,
	"ai.retry_delay": DefaultAIRetryDelay,

	"images.api_key":      "",
	"images.model":        DefaultImagesModel,
	"images.aspect_ratio": DefaultImagesAspectRatio,

	"questionnaire.questions_path": DefaultQuestionsPath,
	"questionnaire.answer_policy":  DefaultAnswerPolicy,
	"questionnaire.session_ttl":    DefaultSessionTTL,

	"chat.history_limit":  DefaultChatHistoryLimit,
	"chat.history_tokens": DefaultChatHistoryTokens,
	"chat.history_ttl":    DefaultChatHistoryTTL,

	"queue.shutdown_timeout": DefaultQueueShutdownTimeout,

	"http.addr": "",
}

// LoadConfig loads and validates configuration from, in increasing priority:
//  1. built-in defaults
//  2. the YAML file at path (optional)
//  3. a .env file in the working directory (optional)
//  4. BOT_* environment variables
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env file: %v", ErrConfiguration, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{
		Messages:  DefaultMessages,
		Scheduler: SchedulerConfig{Tasks: make(map[string]TaskConfig, len(DefaultSchedulerTasks))},
	}
	for name, task := range DefaultSchedulerTasks {
		cfg.Scheduler.Tasks[name] = task
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// Validate checks struct tags on the whole configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return validator.New().Struct(cfg)
}

// IsAdmin reports whether userID is listed in telegram.admin_ids.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
