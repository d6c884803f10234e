package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"giftcart/internal/middleware"
	"giftcart/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Ajax カートAPI（/cart.js 系）のHTTP
type CartHandler struct {
	uc       *usecase.CartUsecase
	sections *usecase.SectionUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, sections *usecase.SectionUsecase) *CartHandler {
	return &CartHandler{uc: uc, sections: sections}
}

type AddLineRequest struct {
	ID         int64             `json:"id"`
	Quantity   int64             `json:"quantity"`
	Properties map[string]string `json:"properties"`
}

type AddCartRequest struct {
	AddLineRequest
	Items []AddLineRequest `json:"items"`
}

type ChangeLineRequest struct {
	ID       LineID `json:"id"`
	Line     int    `json:"line"`
	Quantity int64  `json:"quantity"`
}

type UpdateCartRequest struct {
	Updates map[string]int64 `json:"updates"`
}

// LineID は "43668421771395:abc" と 43668421771395 のどちらも受ける。
type LineID string

func (l *LineID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LineID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be string or number")
	}
	*l = LineID(n.String())
	return nil
}

// Shopifyと同じ形の422
type CartErrorResponse struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

type addItemsResponse struct {
	Items []usecase.LineItemResponse `json:"items"`
}

// /cart.js, /cart/*.js, /discount/:code, ?sections= を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, session echo.MiddlewareFunc) {
	e.GET("/cart.js", h.getCart, session)
	e.POST("/cart/add.js", h.add, session)
	e.POST("/cart/change.js", h.change, session)
	e.POST("/cart/update.js", h.update, session)
	e.POST("/cart/clear.js", h.clear, session)
	e.GET("/discount/:code", h.discount, session)

	// 任意のページ ?sections=a,b
	e.GET("/*", h.page, session)
}

func (h *CartHandler) getCart(c echo.Context) error {
	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetCart(c.Request().Context(), token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) add(c echo.Context) error {
	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	ctx := c.Request().Context()

	// items 形式なら順番に追加
	if len(req.Items) > 0 {
		out := addItemsResponse{Items: make([]usecase.LineItemResponse, 0, len(req.Items))}
		for _, it := range req.Items {
			line, err := h.uc.AddToCart(ctx, token, toAddInput(it))
			if err != nil {
				return writeCartError(c, err)
			}
			out.Items = append(out.Items, line)
		}
		return c.JSON(http.StatusOK, out)
	}

	line, err := h.uc.AddToCart(ctx, token, toAddInput(req.AddLineRequest))
	if err != nil {
		return writeCartError(c, err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHandler) change(c echo.Context) error {
	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ChangeLineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ChangeLine(c.Request().Context(), token, usecase.ChangeLineInput{
		ID:       string(req.ID),
		Line:     req.Line,
		Quantity: req.Quantity,
	})
	if err != nil {
		return writeCartError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) update(c echo.Context) error {
	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req UpdateCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.UpdateLines(c.Request().Context(), token, req.Updates)
	if err != nil {
		return writeCartError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) clear(c echo.Context) error {
	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Clear(c.Request().Context(), token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /discount/:code?redirect=/cart
func (h *CartHandler) discount(c echo.Context) error {
	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	code, err := url.PathUnescape(c.Param("code"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid discount code"})
	}
	code = strings.TrimSpace(code)

	if err := h.uc.ApplyDiscount(c.Request().Context(), token, code); err != nil {
		return writeError(c, err)
	}

	// ページ側の検出用にクッキーにも残す
	c.SetCookie(&http.Cookie{Name: "discount_code", Value: code, Path: "/"})

	return c.Redirect(http.StatusFound, safeRedirect(c.QueryParam("redirect")))
}

// ?sections= が無いページはこのホストでは扱わない
func (h *CartHandler) page(c echo.Context) error {
	raw := c.QueryParam("sections")
	if strings.TrimSpace(raw) == "" {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	}

	token, ok := middleware.CartTokenFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.sections.Render(c.Request().Context(), token, strings.Split(raw, ","))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func toAddInput(r AddLineRequest) usecase.AddLineInput {
	return usecase.AddLineInput{
		VariantID:  r.ID,
		Quantity:   r.Quantity,
		Properties: r.Properties,
	}
}

// 422はShopify形式、それ以外は通常の {"error":...}
func writeCartError(c echo.Context, err error) error {
	if he, ok := usecase.AsHTTPError(err); ok && he.Status == http.StatusUnprocessableEntity {
		return c.JSON(he.Status, CartErrorResponse{
			Status:      he.Status,
			Message:     "Cart Error",
			Description: he.Message,
		})
	}
	return writeError(c, err)
}

// 外部へのリダイレクトはさせない
func safeRedirect(to string) string {
	to = strings.TrimSpace(to)
	if to == "" || !strings.HasPrefix(to, "/") || strings.HasPrefix(to, "//") {
		return "/"
	}
	return to
}
