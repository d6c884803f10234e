package clientstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	repo "giftcart/internal/repository"

	"github.com/redis/go-redis/v9"
)

// RedisStore は redis に保存する（複数プロセスで共有する場合）。
// redis側のTTLに加え、読み出し時にも expires_at を確認する。
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// WithClock はテスト用に時計を差し替える。
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	raw, err := newEntry(value, ttl, s.now()).encode()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), raw, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", repo.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	e, err := decodeEntry(raw)
	if err != nil {
		// 壊れた値は無かったことにする
		_ = s.client.Del(ctx, s.key(key)).Err()
		return "", repo.ErrNotFound
	}
	if e.expired(s.now()) {
		_ = s.client.Del(ctx, s.key(key)).Err()
		return "", repo.ErrNotFound
	}
	return e.Value, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	return s.client.Del(ctx, full...).Err()
}
