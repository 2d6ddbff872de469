package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации процесса.
type Config struct {
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	API        APIConfig        `yaml:"api"`
	NATS       NATSConfig       `yaml:"nats"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type DispatcherConfig struct {
	TickRateHz      int `yaml:"tick_rate_hz"`
	ShutdownTimeout int `yaml:"shutdown_timeout_seconds"`
}

type APIConfig struct {
	Addr          string `yaml:"addr"`
	JWTSecret     string `yaml:"jwt_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
	Metrics       bool   `yaml:"metrics"`
}

type NATSConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

type SnapshotConfig struct {
	Backend   string `yaml:"backend"` // badger | redis | none
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix"`
	Region    string `yaml:"region"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"` // host:port OTLP/HTTP, пусто - localhost:4318
	Insecure    bool   `yaml:"insecure"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{TickRateHz: 25, ShutdownTimeout: 10},
		API:        APIConfig{Addr: ":8089", Metrics: true},
		NATS:       NATSConfig{Prefix: "scriptcore"},
		Snapshot:   SnapshotConfig{Backend: "none", Path: "data", KeyPrefix: "scriptcore:snapshot:", Region: "default"},
		Telemetry:  TelemetryConfig{ServiceName: "script-core"},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// TickRate возвращает целевую частоту тиков, Гц
func (d *DispatcherConfig) TickRate() int {
	if d.TickRateHz > 0 {
		return d.TickRateHz
	}
	return 25
}

// TickPeriod возвращает целевой период тика
func (d *DispatcherConfig) TickPeriod() time.Duration {
	return time.Second / time.Duration(d.TickRate())
}

// ShutdownWait возвращает максимальное время ожидания остановки диспетчера
func (d *DispatcherConfig) ShutdownWait() time.Duration {
	if d.ShutdownTimeout > 0 {
		return time.Duration(d.ShutdownTimeout) * time.Second
	}
	return 10 * time.Second
}

// GetAddr возвращает адрес REST API
func (a *APIConfig) GetAddr() string {
	if a.Addr != "" {
		return a.Addr
	}
	return ":8089"
}

// GetJWTSecret возвращает секрет для подписи токенов; пустая строка отключает проверку
func (a *APIConfig) GetJWTSecret() string {
	return a.JWTSecret
}

// GetWebhookSecret возвращает секрет подписи webhook; пустая строка отключает маршрут
func (a *APIConfig) GetWebhookSecret() string {
	return a.WebhookSecret
}

// GetURL возвращает адрес NATS; пустая строка отключает мост
func (n *NATSConfig) GetURL() string {
	return n.URL
}

// applyEnv накладывает переменные окружения поверх файла и дефолтов.
// Приоритет: env -> config -> default.
func (c *Config) applyEnv() {
	c.Dispatcher.TickRateHz = getIntFromEnv("SCRIPTCORE_TICK_RATE", c.Dispatcher.TickRateHz)
	c.Dispatcher.ShutdownTimeout = getIntFromEnv("SCRIPTCORE_SHUTDOWN_TIMEOUT", c.Dispatcher.ShutdownTimeout)
	c.API.Addr = getStringFromEnv("SCRIPTCORE_API_ADDR", c.API.Addr)
	c.API.JWTSecret = getStringFromEnv("SCRIPTCORE_JWT_SECRET", c.API.JWTSecret)
	c.API.WebhookSecret = getStringFromEnv("SCRIPTCORE_WEBHOOK_SECRET", c.API.WebhookSecret)
	c.NATS.URL = getStringFromEnv("SCRIPTCORE_NATS_URL", c.NATS.URL)
	c.Snapshot.Backend = getStringFromEnv("SCRIPTCORE_SNAPSHOT_BACKEND", c.Snapshot.Backend)
	c.Snapshot.Region = getStringFromEnv("SCRIPTCORE_REGION", c.Snapshot.Region)
	c.Logging.Level = getStringFromEnv("SCRIPTCORE_LOG_LEVEL", c.Logging.Level)
}

// getIntFromEnv возвращает положительное число из envVar или current
func getIntFromEnv(envVar string, current int) int {
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return current
}

func getStringFromEnv(envVar, current string) string {
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return current
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV SCRIPTCORE_CONFIG; если и там пусто, берутся дефолты.
// Переменные окружения SCRIPTCORE_* перекрывают и файл, и дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SCRIPTCORE_CONFIG")
		if path == "" {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}
