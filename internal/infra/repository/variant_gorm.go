package repository

import (
	"context"
	"errors"

	"giftcart/internal/domain/model"
	repo "giftcart/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VariantGormRepository struct {
	db *gorm.DB
}

// DI
func NewVariantGormRepository(db *gorm.DB) *VariantGormRepository {
	return &VariantGormRepository{db: db}
}

// IDでバリアントを取得
func (r *VariantGormRepository) FindByID(ctx context.Context, id int64) (model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Variant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Variant{}, err
	}
	return v, nil
}

// まとめて取得（無いIDは結果に入らない）
func (r *VariantGormRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Variant, error) {
	out := make(map[int64]model.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var vs []model.Variant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&vs).Error; err != nil {
		return nil, err
	}
	for _, v := range vs {
		out[v.ID] = v
	}
	return out, nil
}

// 作成 or 更新（シード投入用）
func (r *VariantGormRepository) Upsert(ctx context.Context, v model.Variant) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "price", "stock", "available", "updated_at"}),
		}).
		Create(&v).Error
}
