// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	Version                 string `yaml:"version" env:"APP_VERSION" env-default:"dev"`
	GRPCAuthAddress         string `yaml:"grpc_auth_address" env:"GRPC_AUTH_ADDRESS"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	AdminSession            `yaml:"admin_session"`
	Billing                 `yaml:"billing"`
	RabbitMQ                `yaml:"rabbitmq"`
	Reminder                `yaml:"reminder"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// AdminSession настройки административной разблокировки.
// Backend: postgres (по умолчанию) или redis.
type AdminSession struct {
	SessionTTL     time.Duration `yaml:"ttl" env-default:"15m"`
	SessionBackend string        `yaml:"backend" env:"ADMIN_SESSION_BACKEND" env-default:"postgres"`
}

// Billing настройки приёма событий от платёжного провайдера.
type Billing struct {
	WebhookSecret string `yaml:"webhook_secret" env:"BILLING_WEBHOOK_SECRET"`
}

// RabbitMQ настройки подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitURL     string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitRetries int           `yaml:"retries" env-default:"5"`
	RabbitDelay   time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Reminder настройки планировщика напоминаний об окончании пробного периода.
type Reminder struct {
	ReminderInterval time.Duration `yaml:"interval" env-default:"1h"`
	ReminderWindow   time.Duration `yaml:"window" env-default:"24h"`
	MetricsAddress   string        `yaml:"metrics_address" env:"SCHEDULER_METRICS_ADDRESS"`
}

// RateLimit ограничение частоты вызовов процедур.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"20"`
	Burst int     `yaml:"burst" env-default:"40"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, завершает процесс при ошибке.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("cannot load .env: %s", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла, переменные окружения имеют приоритет.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("%s: file %s: %w", op, configPath, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// ErrInvalidDuration длительность из конфига не положительна.
var ErrInvalidDuration = errors.New("duration must be positive")

// validate проверяет длительности, от которых зависят тикер планировщика
// и сроки жизни токенов и админ-сессий.
func (c *Config) validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"reminder.interval", c.ReminderInterval},
		{"reminder.window", c.ReminderWindow},
		{"admin_session.ttl", c.SessionTTL},
		{"jwttoken.token_ttl", c.TokenTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s %s: %w", d.name, d.value, ErrInvalidDuration)
		}
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Version: %s\n"+
			"GRPCAuthAddress: %s\n"+
			"StorageConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"AdminSession:\n"+
			"  TTL: %s\n"+
			"  Backend: %s\n"+
			"Billing:\n"+
			"  WebhookSecret: %s\n"+
			"Reminder:\n"+
			"  Interval: %s\n"+
			"  Window: %s\n",
		c.Env,
		c.Version,
		c.GRPCAuthAddress,
		mask(c.StorageConnectionString),
		c.AddressRedis,
		mask(c.Password),
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		mask(c.JWTSecretKey),
		c.TokenTTL,
		c.SessionTTL,
		c.SessionBackend,
		mask(c.WebhookSecret),
		c.ReminderInterval,
		c.ReminderWindow,
	)
}
