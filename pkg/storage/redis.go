package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore initializes Redis storage
// addr: e.g., "localhost:6379"
// prefix: Key prefix (e.g., "dropbot:"). Final Key is prefix + key
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	if prefix == "" {
		prefix = "dropbot:"
	}

	return &RedisStore{
		client: rdb,
		prefix: prefix,
	}, nil
}

func (r *RedisStore) Load(key string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefix+key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (r *RedisStore) Save(key string, value uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// No expiration: the counter must survive as long as the contract does
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
