package repository

import (
	"context"
	"time"
)

// ブラウザのlocalStorage/sessionStorage相当。読み出し時に期限を確認する。
type ClientStateStore interface {
	// ttl<=0 は期限なし
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// 無い・期限切れは ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}
