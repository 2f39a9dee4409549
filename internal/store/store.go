// Package store defines the key-value store the gateway fronts and its
// backends. Every backend is safe for concurrent use through a single handle.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Store is the key-value store collaborator: opaque string keys and values.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Ping probes the store and returns its raw reply.
	Ping(ctx context.Context) (string, error)
	// Close releases the connection.
	Close() error
}

// Common store errors
var (
	ErrNotFound       = errors.New("key not found")
	ErrTimeout        = errors.New("store operation timed out")
	ErrClosed         = errors.New("store is closed")
	ErrBackendUnknown = errors.New("unknown store backend")
)

// Open connects to the store described by rawURL. The scheme selects the
// backend: redis://, rediss:// and unix:// use Redis, pebble:///dir opens an
// embedded Pebble database and memory:// keeps data in process.
func Open(rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss", "unix":
		return NewRedis(rawURL)
	case "pebble":
		dir := u.Path
		if u.Host != "" {
			dir = u.Host + u.Path
		}
		return NewPebble(dir)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBackendUnknown, u.Scheme)
	}
}

// WithTimeout bounds every operation on s by d. Deadline overruns surface
// as ErrTimeout. A non-positive d returns s unchanged.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (t *timeoutStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	value, err := t.next.Get(ctx, key)
	return value, t.mapErr(ctx, err)
}

func (t *timeoutStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.mapErr(ctx, t.next.Set(ctx, key, value))
}

func (t *timeoutStore) Ping(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	reply, err := t.next.Ping(ctx)
	return reply, t.mapErr(ctx, err)
}

func (t *timeoutStore) Close() error {
	return t.next.Close()
}

func (t *timeoutStore) mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, t.timeout, err)
	}
	return err
}
