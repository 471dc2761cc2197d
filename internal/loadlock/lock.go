// Package loadlock provides a Redis lock that keeps two sigla processes from
// loading into the same database at once.
package loadlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLocked is returned by Acquire while another process holds the lock
	ErrLocked = errors.New("load lock is held by another process")

	// ErrNotHeld is returned when releasing or refreshing a lock that expired
	// or was taken over
	ErrNotHeld = errors.New("load lock is no longer held")
)

// Deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Extends the key's expiry only while it still carries our token
var refreshScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// Config holds configuration for the Locker
type Config struct {
	// Client is the Redis client to use
	Client *redis.Client
	// Key is the Redis key guarding the load
	Key string
	// TTL bounds how long a crashed holder keeps the lock
	TTL time.Duration
}

// DefaultConfig returns a configuration locking sigla:load for ten minutes
func DefaultConfig(client *redis.Client) Config {
	return Config{
		Client: client,
		Key:    "sigla:load",
		TTL:    10 * time.Minute,
	}
}

// Locker acquires the load lock
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewLocker validates config and creates a Locker
func NewLocker(config Config) (*Locker, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Key == "" {
		return nil, errors.New("lock key is required")
	}
	if config.TTL <= 0 {
		return nil, errors.New("ttl must be greater than 0")
	}
	return &Locker{client: config.Client, key: config.Key, ttl: config.TTL}, nil
}

// Dial connects to the Redis server named by a redis:// URL
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Lock is a held load lock
type Lock struct {
	locker *Locker
	token  string
}

// Acquire takes the lock without waiting. It fails with ErrLocked when the
// lock is already held.
func (l *Locker) Acquire(ctx context.Context) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire load lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{locker: l, token: token}, nil
}

// Holder returns the token of the current holder, "" when the lock is free
func (l *Locker) Holder(ctx context.Context) (string, error) {
	token, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read load lock: %w", err)
	}
	return token, nil
}

// Token identifies this holder
func (k *Lock) Token() string { return k.token }

// Refresh pushes the expiry back by the locker's TTL
func (k *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, k.locker.client, []string{k.locker.key},
		k.token, k.locker.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("refresh load lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release frees the lock if this holder still owns it
func (k *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, k.locker.client, []string{k.locker.key}, k.token).Int64()
	if err != nil {
		return fmt.Errorf("release load lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
