package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chaos-io/rembatch/config"
)

// RedisCache 已处理结果的缓存，键为图片MD5加处理参数
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCache) Close() error {
	return s.client.Close()
}

// Get 读取缓存，未命中返回 (nil, nil)
func (s *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set 写入缓存
func (s *RedisCache) Set(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, s.ttl).Err()
}
