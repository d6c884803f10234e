package repository

import (
	"context"
	"errors"

	"giftcart/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// バリアントの永続化（保存・取得）だけを約束。
type VariantRepository interface {
	FindByID(ctx context.Context, id int64) (model.Variant, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Variant, error)
	Upsert(ctx context.Context, v model.Variant) error
}
