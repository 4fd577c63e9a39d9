package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Result describes the state of one caller's window after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter is a fixed-window request counter shared through Redis, so every
// server instance sees the same budget per caller.
type Limiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

func New(client *redis.Client, max int, window time.Duration) *Limiter {
	return &Limiter{client: client, max: max, window: window}
}

// NewFromURL connects using a redis:// URL.
func NewFromURL(rawURL string, max int, window time.Duration) (*Limiter, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(opts), max, window), nil
}

// Allow records a hit for key and reports whether it fits in the window.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	k := keyPrefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("incr %s: %w", k, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("expire %s: %w", k, err)
		}
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("pttl %s: %w", k, err)
	}
	// A key left without expiry by a failed EXPIRE would never reset.
	if ttl < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("expire %s: %w", k, err)
		}
		ttl = l.window
	}

	return Result{
		Allowed:   count <= int64(l.max),
		Limit:     l.max,
		Remaining: max(l.max-int(count), 0),
		ResetIn:   ttl,
	}, nil
}

func (l *Limiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Limiter) Close() error {
	return l.client.Close()
}
