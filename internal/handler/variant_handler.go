package handler

import (
	"net/http"
	"strconv"
	"strings"

	"giftcart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// /variants の公開API
type VariantHandler struct {
	uc *usecase.VariantUsecase
}

// DI
func NewVariantHandler(uc *usecase.VariantUsecase) *VariantHandler {
	return &VariantHandler{uc: uc}
}

func (h *VariantHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/variants/:id", h.detail)
}

// "/variants/123.js" と "/variants/123" の両方を受ける
func (h *VariantHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(strings.TrimSuffix(c.Param("id"), ".js"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetVariant(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
