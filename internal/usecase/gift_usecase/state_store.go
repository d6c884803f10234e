package gift

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	repo "giftcart/internal/repository"
)

const StorageKeyPrefix = "bxgy-auto-gift"

const (
	keyEligible  = StorageKeyPrefix + "-eligible"
	keyTimestamp = StorageKeyPrefix + "-timestamp"
	keyVariant   = StorageKeyPrefix + "-variant"
	keyCode      = StorageKeyPrefix + "-code"
	// ギフトとして入れた variant の一覧。期限なしで Clear でも消さない。
	keyGifts = StorageKeyPrefix + "-gifts"
)

// Eligibility は次のページ読み込みで再び Armed にするための記録。
type Eligibility struct {
	Code     string    `json:"code"`
	Variant  string    `json:"variant,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// EligibilityStore は ClientStateStore に期限付きで保存する。
type EligibilityStore struct {
	store repo.ClientStateStore
	ttl   time.Duration
	now   func() time.Time
}

func NewEligibilityStore(store repo.ClientStateStore, ttl time.Duration) *EligibilityStore {
	return &EligibilityStore{store: store, ttl: ttl, now: time.Now}
}

func (s *EligibilityStore) Save(ctx context.Context, e Eligibility) error {
	if e.StoredAt.IsZero() {
		e.StoredAt = s.now()
	}

	pairs := [][2]string{
		{keyEligible, "true"},
		{keyTimestamp, strconv.FormatInt(e.StoredAt.UnixMilli(), 10)},
		{keyCode, e.Code},
	}
	if e.Variant != "" {
		pairs = append(pairs, [2]string{keyVariant, e.Variant})
	}

	for _, kv := range pairs {
		if err := s.store.Set(ctx, kv[0], kv[1], s.ttl); err != nil {
			return err
		}
	}
	return nil
}

// Load は保存が無い・期限切れなら ok=false。
func (s *EligibilityStore) Load(ctx context.Context) (Eligibility, bool, error) {
	eligible, err := s.store.Get(ctx, keyEligible)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && eligible != "true") {
		return Eligibility{}, false, nil
	}
	if err != nil {
		return Eligibility{}, false, err
	}

	code, err := s.store.Get(ctx, keyCode)
	if errors.Is(err, repo.ErrNotFound) {
		return Eligibility{}, false, nil
	}
	if err != nil {
		return Eligibility{}, false, err
	}

	e := Eligibility{Code: code}
	if v, err := s.store.Get(ctx, keyVariant); err == nil {
		e.Variant = v
	}
	if ts, err := s.store.Get(ctx, keyTimestamp); err == nil {
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			e.StoredAt = time.UnixMilli(ms)
		}
	}
	return e, true, nil
}

func (s *EligibilityStore) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, keyEligible, keyTimestamp, keyVariant, keyCode)
}

// SaveGifts はギフト扱いの variant 一覧を期限なしで保存する。
func (s *EligibilityStore) SaveGifts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.store.Set(ctx, keyGifts, strings.Join(ids, ","), 0)
}

func (s *EligibilityStore) LoadGifts(ctx context.Context) ([]string, error) {
	raw, err := s.store.Get(ctx, keyGifts)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
