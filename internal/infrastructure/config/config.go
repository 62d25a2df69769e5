package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"recipe-bot/internal/pkg/common"
)

// Config 應用配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Generation GenerationConfig `mapstructure:"generation"`
	Bot        BotConfig        `mapstructure:"bot"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Log        LogConfig        `mapstructure:"log"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 維運 HTTP 服務設定
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// TelegramConfig 聊天平台設定
type TelegramConfig struct {
	Token    string `mapstructure:"token"`
	Endpoint string `mapstructure:"endpoint"`
	Debug    bool   `mapstructure:"debug"`
}

// OpenAIConfig 模型服務設定
type OpenAIConfig struct {
	APIKey              string   `mapstructure:"api_key"`
	BaseURL             string   `mapstructure:"base_url"`
	Model               string   `mapstructure:"model"`
	FallbackModel       string   `mapstructure:"fallback_model"`
	MaxTokens           int      `mapstructure:"max_tokens"`
	Temperature         float64  `mapstructure:"temperature"`
	NoTemperatureModels []string `mapstructure:"no_temperature_models"`
}

// GenerationConfig 重試與降級策略設定
type GenerationConfig struct {
	StreamAttempts int           `mapstructure:"stream_attempts"`
	BackoffUnit    time.Duration `mapstructure:"backoff_unit"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

// BotConfig 對話流程設定
type BotConfig struct {
	MaxProducts          int           `mapstructure:"max_products"`
	RateLimitPerMin      int           `mapstructure:"rate_limit_per_min"`
	RateWindow           time.Duration `mapstructure:"rate_window"`
	PollingTimeout       int           `mapstructure:"polling_timeout"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	ReconnectMaxDelay    time.Duration `mapstructure:"reconnect_max_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	TypingInterval       time.Duration `mapstructure:"typing_interval"`
	ProgressInterval     time.Duration `mapstructure:"progress_interval"`
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	MaxMessageLen        int           `mapstructure:"max_message_len"`
}

// QueueConfig 更新分派隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// LogConfig 日誌設定
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時只依賴環境變數
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變量
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("openai.fallback_model", "OPENAI_FALLBACK_MODEL")
	_ = v.BindEnv("openai.max_tokens", "OPENAI_MAX_TOKENS")
	_ = v.BindEnv("bot.max_products", "MAX_PRODUCTS")
	_ = v.BindEnv("bot.rate_limit_per_min", "RATE_LIMIT_PER_MIN")
	_ = v.BindEnv("generation.request_timeout", "REQUEST_TIMEOUT")
	_ = v.BindEnv("generation.stream_attempts", "MAX_RETRIES")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.OpenAI.NoTemperatureModels = splitList(config.OpenAI.NoTemperatureModels)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	fmt.Println("Loading configuration",
		"telegram_token:", common.MaskSecret(config.Telegram.Token),
		"openai_api_key:", common.MaskSecret(config.OpenAI.APIKey),
		"model:", config.OpenAI.Model,
		"fallback_model:", config.OpenAI.FallbackModel,
	)

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-bot")

	// 維運服務設定
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")

	// 聊天平台
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.endpoint", "")
	v.SetDefault("telegram.debug", false)

	// 模型服務
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("openai.fallback_model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 1200)
	v.SetDefault("openai.temperature", 0)
	v.SetDefault("openai.no_temperature_models", []string{"o1", "o3", "o4", "gpt-5"})

	// 重試與降級
	v.SetDefault("generation.stream_attempts", 2)
	v.SetDefault("generation.backoff_unit", "1s")
	v.SetDefault("generation.backoff_cap", "4s")
	v.SetDefault("generation.request_timeout", "60s")
	v.SetDefault("generation.call_timeout", "45s")

	// 對話流程
	v.SetDefault("bot.max_products", 15)
	v.SetDefault("bot.rate_limit_per_min", 5)
	v.SetDefault("bot.rate_window", "60s")
	v.SetDefault("bot.polling_timeout", 25)
	v.SetDefault("bot.reconnect_delay", "5s")
	v.SetDefault("bot.reconnect_max_delay", "60s")
	v.SetDefault("bot.max_reconnect_attempts", 0)
	v.SetDefault("bot.typing_interval", "4s")
	v.SetDefault("bot.progress_interval", "6s")
	v.SetDefault("bot.session_ttl", "1h")
	v.SetDefault("bot.max_message_len", 4096)

	// 隊列設定
	v.SetDefault("queue.workers", 8)
	v.SetDefault("queue.max_size", 256)

	// 日誌設定
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/foodbot.log")
	v.SetDefault("log.max_size_mb", 2)
	v.SetDefault("log.max_backups", 3)
}

// splitList 環境變數以逗號傳入時展開
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	var missing []string
	if config.Telegram.Token == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if config.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return common.NewError(common.ErrCodeConfigurationFatal,
			"missing required secrets: "+strings.Join(missing, ", "), nil)
	}

	if config.OpenAI.Model == "" || config.OpenAI.FallbackModel == "" {
		return fmt.Errorf("model and fallback model are required")
	}
	if config.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("invalid max tokens")
	}
	if config.Generation.StreamAttempts < 1 {
		return fmt.Errorf("invalid stream attempts")
	}
	if config.Generation.RequestTimeout <= 0 || config.Generation.CallTimeout <= 0 {
		return fmt.Errorf("invalid generation timeouts")
	}
	if config.Bot.MaxProducts <= 0 {
		return fmt.Errorf("invalid max products")
	}
	if config.Bot.RateLimitPerMin <= 0 || config.Bot.RateWindow <= 0 {
		return fmt.Errorf("invalid rate limit")
	}
	if config.Bot.MaxMessageLen <= 0 {
		return fmt.Errorf("invalid max message length")
	}

	// 驗證隊列設定
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	if config.Server.Enabled && config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	return nil
}
