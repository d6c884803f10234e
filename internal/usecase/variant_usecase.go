package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"giftcart/internal/domain/model"
	repo "giftcart/internal/repository"

	"github.com/sirupsen/logrus"
)

type VariantUsecase struct {
	variantRepo repo.VariantRepository
}

// DI
func NewVariantUsecase(variantRepo repo.VariantRepository) *VariantUsecase {
	return &VariantUsecase{variantRepo: variantRepo}
}

// GET /variants/:id.js
func (u *VariantUsecase) GetVariant(ctx context.Context, variantID int64) (model.Variant, error) {
	if variantID <= 0 {
		return model.Variant{}, NewHTTPError(http.StatusBadRequest, "invalid variant id")
	}

	v, err := u.variantRepo.FindByID(ctx, variantID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Variant{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Variant{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return v, nil
}

// Seed は起動時にバリアントを投入する（同じIDは上書き）。
func (u *VariantUsecase) Seed(ctx context.Context, variants []model.Variant) error {
	for _, v := range variants {
		if v.ID <= 0 {
			return NewHTTPError(http.StatusBadRequest, "invalid variant id")
		}
		if strings.TrimSpace(v.Title) == "" {
			return NewHTTPError(http.StatusBadRequest, "title required")
		}
		if v.Price < 0 {
			return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
		}
		if v.Stock < 0 {
			return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
		}

		v.Title = strings.TrimSpace(v.Title)
		if err := u.variantRepo.Upsert(ctx, v); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	logrus.WithField("count", len(variants)).Info("variants seeded")
	return nil
}
