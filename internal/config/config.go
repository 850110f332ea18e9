package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит настройки процесса. Читается один раз при старте и дальше не меняется.
type Config struct {
	LLMProvider          string
	LLMApiKey            string
	LLMBaseURL           string
	ModelName            string
	LLMTimeout           time.Duration
	LLMMaxTokens         int
	RetryAttempts        int
	RetryInitialDelay    time.Duration
	RetryMaxDelay        time.Duration
	PlanTemperature      float64
	NarrationTemperature float64

	OverloadThreshold int
	PromptTokenBudget int

	DBDriver   string
	PgHost     string
	PgPort     string
	PgUser     string
	PgPassword string
	PgName     string
	PgSSLMode  string
	SQLitePath string

	HTTPAddr         string
	GRPCAddr         string
	AllowedOrigins   []string
	ProjectCacheSize int
	LogLevel         string
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultModel = "meta-llama/llama-3.1-8b-instruct:free"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	v.SetDefault("LLM_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_MAX_TOKENS", 4000)
	v.SetDefault("LLM_RETRY_ATTEMPTS", 3)
	v.SetDefault("LLM_RETRY_INITIAL_DELAY", "500ms")
	v.SetDefault("LLM_RETRY_MAX_DELAY", "8s")
	v.SetDefault("PLAN_TEMPERATURE", 0.1)
	v.SetDefault("NARRATION_TEMPERATURE", 0.7)
	v.SetDefault("OVERLOAD_THRESHOLD", 4)
	v.SetDefault("PROMPT_TOKEN_BUDGET", 2000)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("PG_HOST", "localhost")
	v.SetDefault("PG_PORT", "5432")
	v.SetDefault("PG_USER", "postgres")
	v.SetDefault("PG_NAME", "pmagent")
	v.SetDefault("PG_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "pmagent.db")
	v.SetDefault("HTTP_ADDR", ":5641")
	v.SetDefault("GRPC_ADDR", ":5642")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("PROJECT_CACHE_SIZE", 256)
	v.SetDefault("LOG_LEVEL", "info")
}

// NewConfig загружает конфигурацию из env-файла (если он есть) и переменных окружения.
// Переменные окружения имеют приоритет над файлом.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		LLMProvider:          strings.ToLower(v.GetString("LLM_PROVIDER")),
		LLMApiKey:            firstNonEmpty(v.GetString("LLM_API_KEY"), v.GetString("OPENROUTER_API_KEY")),
		LLMBaseURL:           v.GetString("LLM_BASE_URL"),
		ModelName:            firstNonEmpty(v.GetString("MODEL_NAME"), v.GetString("OPENROUTER_MODEL"), DefaultModel),
		LLMTimeout:           v.GetDuration("LLM_TIMEOUT"),
		LLMMaxTokens:         v.GetInt("LLM_MAX_TOKENS"),
		RetryAttempts:        v.GetInt("LLM_RETRY_ATTEMPTS"),
		RetryInitialDelay:    v.GetDuration("LLM_RETRY_INITIAL_DELAY"),
		RetryMaxDelay:        v.GetDuration("LLM_RETRY_MAX_DELAY"),
		PlanTemperature:      v.GetFloat64("PLAN_TEMPERATURE"),
		NarrationTemperature: v.GetFloat64("NARRATION_TEMPERATURE"),
		OverloadThreshold:    v.GetInt("OVERLOAD_THRESHOLD"),
		PromptTokenBudget:    v.GetInt("PROMPT_TOKEN_BUDGET"),
		DBDriver:             strings.ToLower(v.GetString("DB_DRIVER")),
		PgHost:               v.GetString("PG_HOST"),
		PgPort:               v.GetString("PG_PORT"),
		PgUser:               v.GetString("PG_USER"),
		PgPassword:           v.GetString("PG_PASSWORD"),
		PgName:               v.GetString("PG_NAME"),
		PgSSLMode:            v.GetString("PG_SSLMODE"),
		SQLitePath:           v.GetString("SQLITE_PATH"),
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		GRPCAddr:             v.GetString("GRPC_ADDR"),
		AllowedOrigins:       splitList(v.GetString("ALLOWED_ORIGINS")),
		ProjectCacheSize:     v.GetInt("PROJECT_CACHE_SIZE"),
		LogLevel:             strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.OverloadThreshold <= 0 {
		return fmt.Errorf("OVERLOAD_THRESHOLD must be positive, got %d", c.OverloadThreshold)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("LLM_RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	return nil
}

// AgentEnabled сообщает, задан ли ключ API для языковой модели.
func (c *Config) AgentEnabled() bool {
	return c.LLMApiKey != "" && c.LLMApiKey != "your_key_here"
}

// DSN возвращает строку подключения для выбранного драйвера.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return SQLiteDSN(c.SQLitePath)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PgHost, c.PgPort, c.PgUser, c.PgPassword, c.PgName, c.PgSSLMode)
}

// SQLiteDSN включает внешние ключи и busy timeout на каждом соединении пула.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
