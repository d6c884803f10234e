package server

import (
	"giftcart/internal/handler"
	"giftcart/internal/middleware"

	"github.com/labstack/echo/v4"
)

// RegisterHostRoutes はカートホスト（cmd/api）のルート。
func RegisterHostRoutes(e *echo.Echo, cartTokenSecret string, cartH *handler.CartHandler, variantH *handler.VariantHandler) {
	variantH.RegisterRoutes(e)
	cartH.RegisterRoutes(e, middleware.CartSession(cartTokenSecret))
}

// RegisterReconcilerRoutes はギフト照合（giftsync serve）のルート。
func RegisterReconcilerRoutes(e *echo.Echo, eventH *handler.EventHandler) {
	eventH.RegisterRoutes(e)
}
