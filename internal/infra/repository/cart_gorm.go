package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"giftcart/internal/domain/model"
	repo "giftcart/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// トークンのACTIVEカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateActiveByToken(ctx context.Context, token string) (model.Cart, error) {
	if strings.TrimSpace(token) == "" {
		return model.Cart{}, errors.New("empty token")
	}

	var cart model.Cart

	//トランザクションで探す→無ければ作る
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ? AND status = ?", token, model.CartStatusActive).
			First(&cart).Error

		if findErr == nil {
			return nil
		}

		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		// 無ければ作る
		now := time.Now()
		newCart := model.Cart{
			Token:     token,
			Status:    model.CartStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Create(&newCart).Error; err != nil {
			retryErr := tx.
				Where("token = ? AND status = ?", token, model.CartStatusActive).
				First(&cart).Error
			if retryErr == nil {
				return nil
			}
			return err
		}

		cart = newCart
		return nil
	})

	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// トークンのACTIVEカートを取得
func (r *CartGormRepository) FindByToken(ctx context.Context, token string) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("token = ? AND status = ?", token, model.CartStatusActive).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// carts.discount_codeを更新
func (r *CartGormRepository) UpdateDiscountCode(ctx context.Context, cartID int64, code string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("discount_code", code)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// carts.statusを更新
func (r *CartGormRepository) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 指定カートの明細を全削除
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		if err := tx.Where("id = ?", cartID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return err
		}

		//cart_linesを全削除
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}

		return nil
	})
}

// カート明細を一覧取得（追加順）
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error) {
	var lines []model.CartLine

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&lines).Error; err != nil {
		return []model.CartLine{}, err
	}

	return lines, nil
}

// 同一バリアントは数量加算
func (r *CartGormRepository) UpsertByCartAndVariant(ctx context.Context, cartID int64, variantID int64, addQty int64, unitPriceSnapshot int64, properties string) (model.CartLine, error) {

	if addQty <= 0 {
		return model.CartLine{}, errors.New("invalid quantity")
	}

	var out model.CartLine

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line model.CartLine

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND variant_id = ?", cartID, variantID).
			First(&line).Error

		if err == nil {
			// 既存ありだったら数量を増やす
			newQty := line.Quantity + addQty

			res := tx.Model(&model.CartLine{}).
				Where("id = ?", line.ID).
				Update("quantity", newQty)

			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}
			line.Quantity = newQty
			out = line
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		now := time.Now()
		newLine := model.CartLine{
			CartID:            cartID,
			VariantID:         variantID,
			Key:               newLineKey(variantID),
			Quantity:          addQty,
			UnitPriceSnapshot: unitPriceSnapshot,
			Properties:        properties,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if err := tx.Create(&newLine).Error; err != nil {
			return err
		}

		out = newLine
		return nil
	})

	if err != nil {
		return model.CartLine{}, err
	}
	return out, nil
}

// 明細の数量を更新（0なら削除）
func (r *CartGormRepository) SetQuantity(ctx context.Context, lineID int64, qty int64) error {
	if qty < 0 {
		return errors.New("invalid quantity")
	}

	var res *gorm.DB
	if qty == 0 {
		res = r.db.WithContext(ctx).Delete(&model.CartLine{}, lineID)
	} else {
		res = r.db.WithContext(ctx).
			Model(&model.CartLine{}).
			Where("id = ?", lineID).
			Update("quantity", qty)
	}

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// keyで明細を取得
func (r *CartGormRepository) FindByKey(ctx context.Context, cartID int64, key string) (model.CartLine, error) {
	var line model.CartLine

	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND line_key = ?", cartID, key).
		First(&line).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartLine{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartLine{}, err
	}
	return line, nil
}

// "43668421771395:9f1c..." 形式
func newLineKey(variantID int64) string {
	return fmt.Sprintf("%d:%s", variantID, strings.ReplaceAll(uuid.NewString(), "-", ""))
}
