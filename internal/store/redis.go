package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a go-redis client. The client pools
// connections internally, so one Redis value serves all requests.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis store from a redis:// URL. It does not dial;
// call Ping to verify connectivity.
func NewRedis(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", r.mapErr(err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return r.mapErr(err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) (string, error) {
	reply, err := r.client.Ping(ctx).Result()
	if err != nil {
		return "", r.mapErr(err)
	}
	return reply, nil
}

func (r *Redis) Close() error {
	return r.mapErr(r.client.Close())
}

func (r *Redis) mapErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return err
}
