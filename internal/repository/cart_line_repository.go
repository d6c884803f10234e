package repository

import (
	"context"

	"giftcart/internal/domain/model"
)

type CartLineRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error)
	// 同一バリアントは数量加算。加算後の行を返す。
	UpsertByCartAndVariant(ctx context.Context, cartID int64, variantID int64, addQty int64, unitPriceSnapshot int64, properties string) (model.CartLine, error)
	// qty=0なら行を削除
	SetQuantity(ctx context.Context, lineID int64, qty int64) error
	FindByKey(ctx context.Context, cartID int64, key string) (model.CartLine, error)
}
