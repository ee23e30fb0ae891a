package redis_service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chat-sync-client/service/message_store"

	"github.com/redis/go-redis/v9"
)

// Config Redis 配置
type Config struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"` // prepended to every storage key
}

// RedisService implements message_store.Storage on plain redis strings.
type RedisService struct {
	client *redis.Client
	prefix string
}

func NewRedisService(config *Config) *RedisService {
	if config == nil {
		config = &Config{Addr: "localhost:6379"}
	}
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "chat-sync:"
	}

	return &RedisService{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
		prefix: prefix,
	}
}

// Initialize pings the server.
func (rs *RedisService) Initialize(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", rs.client.Options().Addr, err)
	}
	log.Printf("✅ Redis storage ready: %s", rs.client.Options().Addr)
	return nil
}

func (rs *RedisService) Close() error {
	return rs.client.Close()
}

func (rs *RedisService) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := rs.client.Get(ctx, rs.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, message_store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (rs *RedisService) Set(ctx context.Context, key string, value []byte) error {
	if err := rs.client.Set(ctx, rs.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	log.Printf("🗄️ Stored %s (%d bytes)", key, len(value))
	return nil
}

func (rs *RedisService) Remove(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
