package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// 入力が不正
var ErrInvalidInput = errors.New("invalid input")

// ValidationError は割引コードなどの形式エラー。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

const maxDiscountCodeLen = 64

var (
	discountCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	variantIDRe    = regexp.MustCompile(`^\d{10,20}$`)
)

// 割引コードの形式を検証（前後空白は除く）
func ValidateDiscountCode(code string) error {
	code = strings.TrimSpace(code)

	// 必須チェック
	if code == "" {
		return &ValidationError{Field: "discount_code", Reason: "empty"}
	}
	if len(code) > maxDiscountCodeLen {
		return &ValidationError{Field: "discount_code", Reason: "too long"}
	}
	if !discountCodeRe.MatchString(code) {
		return &ValidationError{Field: "discount_code", Reason: "unexpected character"}
	}
	return nil
}

// ParseGiftCode は "BXGY-43668421771395" のようなコードからギフトのvariant IDを取り出す。
//   - PREFIX-<10〜20桁の数字> → その数字
//   - PREFIX-<それ以外> / 旧形式 "BXGY..." → defaultVariant
//   - それ以外 → ok=false
func ParseGiftCode(code string, prefix string, defaultVariant string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" || prefix == "" {
		return "", false
	}

	upper := strings.ToUpper(code)
	upperPrefix := strings.ToUpper(prefix)

	if strings.HasPrefix(upper, upperPrefix) {
		variantPart := code[len(prefix):]
		if variantIDRe.MatchString(variantPart) {
			return variantPart, true
		}
		return defaultVariant, defaultVariant != ""
	}

	// 旧形式（ダッシュ無し）
	legacy := strings.TrimRight(upperPrefix, "-_")
	if legacy != "" && strings.HasPrefix(upper, legacy) {
		return defaultVariant, defaultVariant != ""
	}

	return "", false
}
