package clientstate

import (
	"encoding/json"
	"time"
)

// 保存する1件。期限は読み出し時に確認する。
type entry struct {
	Value     string    `json:"value"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func newEntry(value string, ttl time.Duration, now time.Time) entry {
	e := entry{Value: value, StoredAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

func (e entry) encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEntry(s string) (entry, error) {
	var e entry
	err := json.Unmarshal([]byte(s), &e)
	return e, err
}
