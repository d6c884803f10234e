package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxCartTokenKey = "cart_token" // string

	CartCookieName = "cart"
	cartCookieTTL  = 14 * 24 * time.Hour
)

// CartSession は cart クッキー（HS256署名）からカートトークンを取り出す。
// 無い・改ざん・期限切れなら新しいトークンを発行してクッキーを付け直す。
func CartSession(secret string) echo.MiddlewareFunc {
	key := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ""
			if ck, err := c.Cookie(CartCookieName); err == nil {
				if t, err := ParseCartToken(key, ck.Value); err == nil {
					token = t
				}
			}

			if token == "" {
				token = strings.ReplaceAll(uuid.NewString(), "-", "")
				signed, err := SignCartToken(key, token, time.Now())
				if err != nil {
					return c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
				}
				c.SetCookie(&http.Cookie{
					Name:     CartCookieName,
					Value:    signed,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Expires:  time.Now().Add(cartCookieTTL),
				})
			}

			//contextへ保存
			c.Set(CtxCartTokenKey, token)
			return next(c)
		}
	}
}

// SignCartToken はカートトークンを署名付きのクッキー値にする。
func SignCartToken(key []byte, token string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"cart": token,
		"iat":  now.Unix(),
		"exp":  now.Add(cartCookieTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseCartToken は署名を検証してカートトークンを返す。
func ParseCartToken(key []byte, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty cookie")
	}

	//JWTをパースして検証する
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", errors.New("invalid cart cookie")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	cart, err := parseString(claims["cart"])
	if err != nil || cart == "" {
		return "", errors.New("invalid cart claim")
	}
	return cart, nil
}

// CartTokenFrom は CartSession が入れたトークンを返す。
func CartTokenFrom(c echo.Context) (string, bool) {
	v, ok := c.Get(CtxCartTokenKey).(string)
	return v, ok && v != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}
