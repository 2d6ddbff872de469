package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore хранит снимки в Redis под ключом <prefix><region>
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig настройки подключения
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // 0 - без срока жизни
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "scriptcore:snapshot:",
	}
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreWithClient(client, config.KeyPrefix, config.TTL), nil
}

// NewRedisStoreWithClient оборачивает готовый клиент
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, keyPrefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(region string) string {
	return s.keyPrefix + region
}

// Save перезаписывает снимок региона
func (s *RedisStore) Save(ctx context.Context, region string, data []byte) error {
	if err := s.client.Set(ctx, s.key(region), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(region), err)
	}
	return nil
}

// Load читает снимок региона
func (s *RedisStore) Load(ctx context.Context, region string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(region)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, region)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key(region), err)
	}
	return data, nil
}

// Close закрывает клиента
func (s *RedisStore) Close() error {
	return s.client.Close()
}
