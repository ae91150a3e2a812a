package repository

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPoolSize = 100
	defaultRedisTimeout  = 500 * time.Millisecond
)

// RedisDB клиент кэша ссылок
type RedisDB struct {
	Client *redis.Client
}

// NewRedisClient подключается к Redis и проверяет соединение при старте
func NewRedisClient(cfg config.RedisConfig) (*RedisDB, error) {
	opts := redisOptions(cfg)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*opts.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s (db %d): %w", opts.Addr, opts.DB, err)
	}

	return &RedisDB{Client: client}, nil
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 10,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}
