package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"giftcart/internal/domain/model"
	repo "giftcart/internal/repository"
	"giftcart/internal/validator"
)

// CartUsecase は Ajax カートAPI（/cart.js 系）の業務ロジックです。
type CartUsecase struct {
	cartRepo    repo.CartRepository
	lineRepo    repo.CartLineRepository
	variantRepo repo.VariantRepository
	tx          repo.TransactionManager

	// 割引コード適用中は0円になるバリアント
	freeVariants map[int64]bool
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	lineRepo repo.CartLineRepository,
	variantRepo repo.VariantRepository,
	tx repo.TransactionManager,
	freeVariantIDs []string,
) *CartUsecase {
	free := make(map[int64]bool, len(freeVariantIDs))
	for _, s := range freeVariantIDs {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			free[id] = true
		}
	}

	return &CartUsecase{
		cartRepo:     cartRepo,
		lineRepo:     lineRepo,
		variantRepo:  variantRepo,
		tx:           tx,
		freeVariants: free,
	}
}

// LineItemResponse は /cart.js の items の1行。
type LineItemResponse struct {
	ID         int64             `json:"id"`
	VariantID  int64             `json:"variant_id"`
	Key        string            `json:"key"`
	Quantity   int64             `json:"quantity"`
	Title      string            `json:"title"`
	Price      int64             `json:"price"`
	LinePrice  int64             `json:"line_price"`
	Properties map[string]string `json:"properties"`
}

// CartResponse は /cart.js の中身。
type CartResponse struct {
	Token        string             `json:"token"`
	Items        []LineItemResponse `json:"items"`
	ItemCount    int64              `json:"item_count"`
	TotalPrice   int64              `json:"total_price"`
	DiscountCode string             `json:"discount_code,omitempty"`
}

// POST /cart/add.js
type AddLineInput struct {
	VariantID  int64
	Quantity   int64
	Properties map[string]string
}

// POST /cart/change.js（IDかLineのどちらか）
type ChangeLineInput struct {
	ID       string // line key か variant id
	Line     int    // 1始まり
	Quantity int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, token string) (CartResponse, error) {
	cart, err := u.activeCart(ctx, token)
	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, cart)
}

// AddToCart はカートに追加（同一バリアントは数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, token string, in AddLineInput) (LineItemResponse, error) {
	if in.VariantID <= 0 {
		return LineItemResponse{}, NewHTTPError(http.StatusUnprocessableEntity, "invalid variant")
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	cart, err := u.activeCart(ctx, token)
	if err != nil {
		return LineItemResponse{}, err
	}

	// バリアントチェック（販売中のみ）
	v, err := u.variantRepo.FindByID(ctx, in.VariantID)
	if errors.Is(err, repo.ErrNotFound) {
		return LineItemResponse{}, NewHTTPError(http.StatusUnprocessableEntity, "invalid variant")
	}
	if err != nil {
		return LineItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !v.Available {
		return LineItemResponse{}, NewHTTPError(http.StatusUnprocessableEntity, "sold out")
	}

	lines, err := u.lineRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return LineItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var existingQty int64 = 0
	for _, l := range lines {
		if l.VariantID == in.VariantID {
			existingQty = l.Quantity
			break
		}
	}

	if existingQty+in.Quantity > v.Stock {
		return LineItemResponse{}, NewHTTPError(http.StatusUnprocessableEntity, "stock exceeded")
	}

	props := ""
	if len(in.Properties) > 0 {
		b, _ := json.Marshal(in.Properties)
		props = string(b)
	}

	// unit_price_snapshot は「追加時点の価格」を渡す
	line, err := u.lineRepo.UpsertByCartAndVariant(ctx, cart.ID, in.VariantID, in.Quantity, v.Price, props)
	if err != nil {
		return LineItemResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.lineResponse(cart, line, v), nil
}

// ChangeLine は1行の数量変更（0で削除）。
func (u *CartUsecase) ChangeLine(ctx context.Context, token string, in ChangeLineInput) (CartResponse, error) {
	if in.Quantity < 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	cart, err := u.activeCart(ctx, token)
	if err != nil {
		return CartResponse{}, err
	}

	lines, err := u.lineRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var target *model.CartLine
	switch {
	case in.Line > 0:
		if in.Line <= len(lines) {
			target = &lines[in.Line-1]
		}
	case strings.TrimSpace(in.ID) != "":
		target = findLine(lines, in.ID)
	default:
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "id or line is required")
	}
	if target == nil {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "no valid id or line parameter")
	}

	if err := u.setQuantity(ctx, u.lineRepo, u.variantRepo, *target, in.Quantity); err != nil {
		return CartResponse{}, err
	}

	return u.buildCartResponse(ctx, cart)
}

// UpdateLines はまとめて数量変更。1トランザクションで全部かゼロか。
func (u *CartUsecase) UpdateLines(ctx context.Context, token string, updates map[string]int64) (CartResponse, error) {
	if len(updates) == 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "updates is required")
	}
	for _, qty := range updates {
		if qty < 0 {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}

	cart, err := u.activeCart(ctx, token)
	if err != nil {
		return CartResponse{}, err
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		lines, err := r.CartLines().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		for id, qty := range updates {
			target := findLine(lines, id)
			if target == nil {
				// 存在しないキーの0指定は何もしない
				if qty == 0 {
					continue
				}
				return NewHTTPError(http.StatusUnprocessableEntity, "unknown line "+id)
			}
			if err := u.setQuantity(ctx, r.CartLines(), r.Variants(), *target, qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return CartResponse{}, err
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart)
}

// ApplyDiscount は割引コードをカートに保存する（/discount/:code）。
func (u *CartUsecase) ApplyDiscount(ctx context.Context, token string, code string) error {
	if err := validator.ValidateDiscountCode(code); err != nil {
		return NewHTTPError(http.StatusBadRequest, "invalid discount code")
	}

	cart, err := u.activeCart(ctx, token)
	if err != nil {
		return err
	}

	if err := u.cartRepo.UpdateDiscountCode(ctx, cart.ID, strings.TrimSpace(code)); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// Clear はカートを空にする。
func (u *CartUsecase) Clear(ctx context.Context, token string) (CartResponse, error) {
	cart, err := u.activeCart(ctx, token)
	if err != nil {
		return CartResponse{}, err
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildCartResponse(ctx, cart)
}

func (u *CartUsecase) activeCart(ctx context.Context, token string) (model.Cart, error) {
	if strings.TrimSpace(token) == "" {
		return model.Cart{}, NewHTTPError(http.StatusUnauthorized, "missing cart token")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByToken(ctx, token)
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return cart, nil
}

// 数量変更（増やす時だけ在庫チェック）
func (u *CartUsecase) setQuantity(ctx context.Context, lines repo.CartLineRepository, variants repo.VariantRepository, line model.CartLine, qty int64) error {
	if qty > line.Quantity {
		v, err := variants.FindByID(ctx, line.VariantID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusUnprocessableEntity, "invalid variant")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !v.Available || qty > v.Stock {
			return NewHTTPError(http.StatusUnprocessableEntity, "stock exceeded")
		}
	}

	if err := lines.SetQuantity(ctx, line.ID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// idは line key（"variant:hash"）か variant id
func findLine(lines []model.CartLine, id string) *model.CartLine {
	id = strings.TrimSpace(id)
	for i := range lines {
		if lines[i].Key == id {
			return &lines[i]
		}
	}
	if vid, err := strconv.ParseInt(id, 10, 64); err == nil {
		for i := range lines {
			if lines[i].VariantID == vid {
				return &lines[i]
			}
		}
	}
	return nil
}

// cartの明細をまとめてCartResponseを作る。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	lines, err := u.lineRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.VariantID)
	}
	variants, err := u.variantRepo.FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := CartResponse{
		Token:        cart.Token,
		Items:        make([]LineItemResponse, 0, len(lines)),
		DiscountCode: cart.DiscountCode,
	}

	for _, l := range lines {
		v, ok := variants[l.VariantID]
		if !ok {
			continue
		}

		item := u.lineResponse(cart, l, v)
		out.Items = append(out.Items, item)
		out.ItemCount += item.Quantity
		out.TotalPrice += item.LinePrice
	}

	return out, nil
}

func (u *CartUsecase) lineResponse(cart model.Cart, l model.CartLine, v model.Variant) LineItemResponse {
	price := l.UnitPriceSnapshot
	if cart.DiscountCode != "" && u.freeVariants[l.VariantID] {
		price = 0
	}

	props := map[string]string{}
	if l.Properties != "" {
		_ = json.Unmarshal([]byte(l.Properties), &props)
	}

	return LineItemResponse{
		ID:         l.VariantID,
		VariantID:  l.VariantID,
		Key:        l.Key,
		Quantity:   l.Quantity,
		Title:      v.Title,
		Price:      price,
		LinePrice:  price * l.Quantity,
		Properties: props,
	}
}
