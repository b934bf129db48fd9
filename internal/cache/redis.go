// Package cache keeps resolved bearer tokens in Redis so repeated requests
// skip the token and user lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rao30/bake-house/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(url string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", opts.Addr))
	return rdb, nil
}

type TokenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTokenCache(rdb *redis.Client, ttl time.Duration) *TokenCache {
	return &TokenCache{rdb: rdb, ttl: ttl}
}

func tokenKey(token string) string {
	return "auth_token:" + token
}

// GetUser returns nil without error on a cache miss.
func (c *TokenCache) GetUser(ctx context.Context, token string) (*models.User, error) {
	data, err := c.rdb.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached token: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &user, nil
}

func (c *TokenCache) SetUser(ctx context.Context, token string, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return c.rdb.Set(ctx, tokenKey(token), data, c.ttl).Err()
}
