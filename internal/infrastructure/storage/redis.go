package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisBackend struct {
	client *redis.Client
}

// OpenRedis connects to the Redis server at url and verifies it answers.
func OpenRedis(ctx context.Context, url string, opts Options) (*Handoff, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, opts), nil
}

// NewRedis stores hand-offs in an existing client. Close closes the client.
func NewRedis(client *redis.Client, opts Options) *Handoff {
	return newHandoff(&redisBackend{client: client}, opts, client)
}

func (r *redisBackend) name() string { return "redis" }

func (r *redisBackend) insert(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return exists(key)
	}
	return nil
}

func (r *redisBackend) lookup(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}
	return data, err
}
