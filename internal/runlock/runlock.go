// Package runlock guarantees a single crawl run at a time.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked means another run holds the lock.
var ErrLocked = errors.New("crawl already running")

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

type Locker interface {
	TryLock(ctx context.Context) (Unlock, error)
	Close() error
}

// Local is an in-process lock for single-instance deployments.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local { return &Local{} }

func (l *Local) TryLock(context.Context) (Unlock, error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}

func (l *Local) Close() error { return nil }

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	DefaultKey = "jdcrawler:crawl-lock"
	DefaultTTL = 2 * time.Hour
)

// Redis is a lock shared by every process pointing at the same Redis.
// The TTL bounds how long a crashed holder blocks others.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis parses redisURL and verifies connectivity.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{client: client, key: DefaultKey, ttl: DefaultTTL}, nil
}

// WithKey returns a copy using another key and TTL. Zero values keep the current ones.
func (r *Redis) WithKey(key string, ttl time.Duration) *Redis {
	cp := *r
	if key != "" {
		cp.key = key
	}
	if ttl > 0 {
		cp.ttl = ttl
	}
	return &cp
}

func (r *Redis) TryLock(ctx context.Context) (Unlock, error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		n, err := release.Run(ctx, r.client, []string{r.key}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", r.key, err)
		}
		if n == 0 {
			log.Printf("⚠️ Lock %s expired before release", r.key)
		}
		return nil
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
