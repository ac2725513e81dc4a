package database

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/gatat123/studioo-backend-sub000/internal/config"
)

// NewRedis connects to Redis from a redis:// URL. The hub uses Redis for
// two advisory concerns only: mirroring presence keys and publishing routed
// envelopes to per-topic channels so an external process can observe them.
// A nil client is a valid state; callers must tolerate it.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
