package cartapi

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError は通信失敗か2xx以外。Status=0なら通信自体の失敗。
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// 在庫切れ・存在しないバリアント
func (e *TransportError) IsUnprocessable() bool {
	return e.Status == http.StatusUnprocessableEntity
}

// FormatError は期待した形のJSONではなかった。
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	ok := errors.As(err, &te)
	return te, ok
}

func AsFormatError(err error) (*FormatError, bool) {
	var fe *FormatError
	ok := errors.As(err, &fe)
	return fe, ok
}

// IsUnprocessable は err が422の TransportError か。
func IsUnprocessable(err error) bool {
	te, ok := AsTransportError(err)
	return ok && te.IsUnprocessable()
}
