package ridehistory

import (
	"context"
	"errors"
	"sync"

	redisClient "github.com/richxcame/petit-taxi/pkg/redis"
)

// RedisBackend stores the history blob in Redis without expiry
type RedisBackend struct {
	client *redisClient.Client
}

// NewRedisBackend creates a Redis-backed history store
func NewRedisBackend(client *redisClient.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.GetBytes(ctx, key)
	if errors.Is(err, redisClient.Nil) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.client.SetWithExpiration(ctx, key, value, 0)
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Delete(ctx, key)
}

// MemoryBackend keeps blobs in process memory
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := make([]byte, len(value))
	copy(data, value)
	b.blobs[key] = data
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}
