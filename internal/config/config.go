// Package config предоставляет структуры и функции для парсинга и загрузки конфига бота.
// Значения читаются из YAML-файла, секреты могут быть переопределены переменными окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/riya-bot/internal/models"
)

// Режимы получения обновлений Telegram.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Хранилища состояния пользователей.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Приёмники журнала переписки.
const (
	SinkNone   = "none"
	SinkSheets = "sheets"
	SinkAMQP   = "amqp"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env         string          `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel    string          `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Telegram    Telegram        `yaml:"telegram"`
	OpenAI      OpenAI          `yaml:"openai"`
	Gate        Gate            `yaml:"gate"`
	Moderation  Moderation      `yaml:"moderation"`
	Plans       []models.Plan   `yaml:"plans" validate:"required,min=1,dive"`
	DefaultPlan string          `yaml:"default_plan" validate:"required"`
	Payment     Payment         `yaml:"payment"`
	HTTPServer  HTTPServer      `yaml:"http_server"`
	Storage     Storage         `yaml:"storage"`
	Redis       RedisConnection `yaml:"redis_connection"`
	RabbitMQ    RabbitMQ        `yaml:"rabbitmq"`
	Transcript  Transcript      `yaml:"transcript"`
}

// Telegram настройки транспорта бота.
type Telegram struct {
	Token         string `yaml:"token" env:"BOT_TOKEN" validate:"required"`
	Mode          string `yaml:"mode" env:"TELEGRAM_MODE" env-default:"polling" validate:"oneof=polling webhook"`
	WebhookSecret string `yaml:"webhook_secret" env:"TELEGRAM_WEBHOOK_SECRET"`
	PollTimeout   int    `yaml:"poll_timeout" env-default:"60"`
	Workers       int    `yaml:"workers" env-default:"10" validate:"gt=0"`
	AdminID       int64  `yaml:"admin_id" env:"ADMIN_ID"`
}

// OpenAI настройки генератора ответов.
type OpenAI struct {
	APIKey  string        `yaml:"api_key" env:"OPENAI_API_KEY" validate:"required"`
	BaseURL string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model   string        `yaml:"model" env-default:"gpt-3.5-turbo"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
	Persona string        `yaml:"persona"`
}

// Gate настройки квоты и модерации пользователя.
type Gate struct {
	FreeLimit             int           `yaml:"free_limit" env:"FREE_LIMIT" env-default:"5" validate:"gte=0"`
	StrikeThreshold       int           `yaml:"strike_threshold" env-default:"3" validate:"gt=0"`
	MuteDuration          time.Duration `yaml:"mute_duration" env-default:"12h"`
	ResetStrikesAfterMute bool          `yaml:"reset_strikes_after_mute"`
	RatePerSecond         float64       `yaml:"rate_per_second" env-default:"1"`
	RateBurst             int           `yaml:"rate_burst" env-default:"3"`
}

// Moderation список запрещённых слов.
type Moderation struct {
	BannedTerms []string `yaml:"banned_terms" env:"BANNED_TERMS" env-separator:"," env-default:"fuck,bitch,slut,whore,bastard,nudes"`
}

// Payment настройки платёжного провайдера и ссылок на оплату.
type Payment struct {
	KeyID         string        `yaml:"key_id" env:"RAZORPAY_KEY_ID" validate:"required"`
	KeySecret     string        `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET" validate:"required"`
	WebhookSecret string        `yaml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET" validate:"required"`
	LinkSecret    string        `yaml:"link_secret" env:"PAYLINK_SECRET" validate:"required"`
	LinkTTL       time.Duration `yaml:"link_ttl" env-default:"24h"`
	PublicURL     string        `yaml:"public_url" env:"PUBLIC_URL" validate:"required,url"`
	APIURL        string        `yaml:"api_url" env-default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
	OrderTTL      time.Duration `yaml:"order_ttl" env-default:"48h" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1h" validate:"gt=0"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Storage настройки хранилища состояния пользователей.
type Storage struct {
	Driver         string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory" validate:"oneof=memory postgres"`
	DSN            string `yaml:"dsn" env:"DATABASE_URL"`
	MigrationsPath string `yaml:"migrations_path" env-default:"./migrations"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает Redis.
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RabbitMQ настройки брокера для журнала переписки.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Transcript настройки журнала переписки.
type Transcript struct {
	Sink            string        `yaml:"sink" env:"TRANSCRIPT_SINK" env-default:"none" validate:"oneof=none sheets amqp"`
	SpreadsheetID   string        `yaml:"spreadsheet_id" env:"SPREADSHEET_ID"`
	Range           string        `yaml:"range" env-default:"Sheet1!A1"`
	CredentialsJSON string        `yaml:"credentials_json" env:"GOOGLE_CREDS_JSON"`
	Buffer          int           `yaml:"buffer" env-default:"100"`
	Workers         int           `yaml:"workers" env-default:"4"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
}

// Load читает конфиг по пути path, применяет переменные окружения и проверяет его.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range cfg.Plans {
		if cfg.Plans[i].Currency == "" {
			cfg.Plans[i].Currency = "INR"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига из CONFIG_PATH. Завершает процесс,
// если конфиг не найден или в нём не хватает обязательных секретов.
func MustLoad() *Config {
	cfg, err := Load(mustConfigPath())
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// WriterConfig настройки процесса transcript-writer. Читается из того же
// файла, что и Config, но требует только брокер и таблицу.
type WriterConfig struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel   string     `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	RabbitMQ   RabbitMQ   `yaml:"rabbitmq"`
	Transcript Transcript `yaml:"transcript"`
}

// LoadWriter читает конфиг transcript-writer.
func LoadWriter(path string) (*WriterConfig, error) {
	const op = "config.LoadWriter"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg WriterConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case cfg.RabbitMQ.URL == "":
		return nil, fmt.Errorf("%s: rabbitmq.url is required", op)
	case cfg.Transcript.SpreadsheetID == "" || cfg.Transcript.CredentialsJSON == "":
		return nil, fmt.Errorf("%s: transcript.spreadsheet_id and transcript.credentials_json are required", op)
	}
	return &cfg, nil
}

// MustLoadWriter загружает конфиг transcript-writer из CONFIG_PATH или завершает процесс.
func MustLoadWriter() *WriterConfig {
	cfg, err := LoadWriter(mustConfigPath())
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func mustConfigPath() string {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	return configPath
}

// Validate проверяет обязательные поля и согласованность настроек.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Plans))
	for _, p := range c.Plans {
		if _, ok := seen[p.Key]; ok {
			return fmt.Errorf("duplicate plan key %q", p.Key)
		}
		seen[p.Key] = struct{}{}
	}
	if _, ok := seen[c.DefaultPlan]; !ok {
		return fmt.Errorf("default plan %q is not in plans", c.DefaultPlan)
	}

	if c.Telegram.Mode == ModeWebhook && c.Telegram.WebhookSecret == "" {
		return errors.New("telegram.webhook_secret is required in webhook mode")
	}
	if c.Storage.Driver == StoragePostgres && c.Storage.DSN == "" {
		return errors.New("storage.dsn is required for postgres driver")
	}
	switch c.Transcript.Sink {
	case SinkSheets:
		if c.Transcript.SpreadsheetID == "" || c.Transcript.CredentialsJSON == "" {
			return errors.New("transcript.spreadsheet_id and transcript.credentials_json are required for sheets sink")
		}
	case SinkAMQP:
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq.url is required for amqp sink")
		}
	}
	return nil
}

// LogValue скрывает секреты при логировании конфига.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("telegram_mode", c.Telegram.Mode),
		slog.String("openai_model", c.OpenAI.Model),
		slog.Int("free_limit", c.Gate.FreeLimit),
		slog.Int("plans", len(c.Plans)),
		slog.String("default_plan", c.DefaultPlan),
		slog.String("public_url", c.Payment.PublicURL),
		slog.String("http_address", c.HTTPServer.Address),
		slog.String("storage", c.Storage.Driver),
		slog.Bool("redis", c.Redis.Address != ""),
		slog.String("transcript_sink", c.Transcript.Sink),
	)
}
