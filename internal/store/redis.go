package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/talgya/deus-ex/internal/world"
)

// RedisStore keeps the snapshot as one JSON value, keyed under a
// configurable prefix so several worlds can share an instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "deusex"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key() string {
	return r.prefix + ":" + saveKey
}

// Close closes the connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Save writes the snapshot as one JSON value, no expiry.
func (r *RedisStore) Save(ctx context.Context, snap *world.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key(), body, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the saved snapshot, or ErrNoSave when none exists.
func (r *RedisStore) Load(ctx context.Context) (*world.Snapshot, error) {
	body, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap world.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Clear removes the save slot.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
