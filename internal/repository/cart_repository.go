package repository

import (
	"context"

	"giftcart/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateActiveByToken(ctx context.Context, token string) (model.Cart, error)
	FindByToken(ctx context.Context, token string) (model.Cart, error)
	UpdateDiscountCode(ctx context.Context, cartID int64, code string) error
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error
	Clear(ctx context.Context, cartID int64) error
}
