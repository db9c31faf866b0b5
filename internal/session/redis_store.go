package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "bookreview:session:",
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	if s.ID == "" {
		return fmt.Errorf("session: missing session id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(s.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	if !ok {
		return fmt.Errorf("session: id already in use")
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, s Session) error {
	if s.ID == "" {
		return fmt.Errorf("session: missing session id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		if err := r.client.Del(ctx, r.key(s.ID)).Err(); err != nil {
			return fmt.Errorf("session: delete expired: %w", err)
		}
		return ErrGone
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	// XX: only overwrite a key that still exists
	ok, err := r.client.SetXX(ctx, r.key(s.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	if !ok {
		return ErrGone
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

// NewRedisClient connects and pings within two seconds.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
