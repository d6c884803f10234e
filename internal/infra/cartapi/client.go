package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"giftcart/internal/domain/model"

	"golang.org/x/sync/singleflight"
)

const maxErrorBody = 512

// Client はホストの Ajax カートAPIを叩く。
// クッキーはjarで持ち回るので、同じClientは常に同じカートを指す。
type Client struct {
	baseURL *url.URL
	http    *http.Client
	group   singleflight.Group
}

type Option func(*Client)

// WithHTTPClient は差し替え用。Jarが無ければ付ける。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store base url %q", baseURL)
	}

	c := &Client{baseURL: u, http: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	// /discount/<code> のリダイレクト先（HTMLページ）は追わない
	if c.http.CheckRedirect == nil {
		c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c, nil
}

// ChangeRequest は /cart/change.js の指定。IDかLineのどちらか。
type ChangeRequest struct {
	ID       string `json:"id,omitempty"`
	Line     int    `json:"line,omitempty"`
	Quantity int64  `json:"quantity"`
}

type lineItemJSON struct {
	VariantID *json.Number `json:"variant_id"`
	Quantity  int64        `json:"quantity"`
	Key       string       `json:"key"`
	Title     string       `json:"title"`
	Price     int64        `json:"price"`
}

type cartJSON struct {
	Token     string          `json:"token"`
	Items     *[]lineItemJSON `json:"items"`
	ItemCount int64           `json:"item_count"`
}

// FetchCart は GET /cart.js。同時に呼ばれたら1リクエストにまとめる。
func (c *Client) FetchCart(ctx context.Context) (model.CartSnapshot, error) {
	v, err, _ := c.group.Do("cart", func() (interface{}, error) {
		body, err := c.do(ctx, "fetch cart", http.MethodGet, "/cart.js", nil)
		if err != nil {
			return model.CartSnapshot{}, err
		}
		return decodeCart("fetch cart", body)
	})
	if err != nil {
		return model.CartSnapshot{}, err
	}
	return v.(model.CartSnapshot), nil
}

// AddLine は POST /cart/add.js。422は IsUnprocessable。
func (c *Client) AddLine(ctx context.Context, variantID string, qty int64) (model.LineItem, error) {
	id, err := strconv.ParseInt(variantID, 10, 64)
	if err != nil {
		return model.LineItem{}, fmt.Errorf("add line: invalid variant id %q", variantID)
	}

	body, err := c.do(ctx, "add line", http.MethodPost, "/cart/add.js", map[string]int64{
		"id":       id,
		"quantity": qty,
	})
	if err != nil {
		return model.LineItem{}, err
	}

	var li lineItemJSON
	if err := json.Unmarshal(body, &li); err != nil {
		return model.LineItem{}, &FormatError{Op: "add line", Err: err}
	}
	if li.VariantID == nil {
		return model.LineItem{}, &FormatError{Op: "add line", Err: errors.New("variant_id missing")}
	}
	return li.toModel(), nil
}

// UpdateLines は POST /cart/update.js（まとめて数量変更）。
func (c *Client) UpdateLines(ctx context.Context, updates map[string]int64) (model.CartSnapshot, error) {
	body, err := c.do(ctx, "update lines", http.MethodPost, "/cart/update.js", map[string]interface{}{
		"updates": updates,
	})
	if err != nil {
		return model.CartSnapshot{}, err
	}
	return decodeCart("update lines", body)
}

// ChangeLine は POST /cart/change.js。
func (c *Client) ChangeLine(ctx context.Context, req ChangeRequest) (model.CartSnapshot, error) {
	body, err := c.do(ctx, "change line", http.MethodPost, "/cart/change.js", req)
	if err != nil {
		return model.CartSnapshot{}, err
	}
	return decodeCart("change line", body)
}

// FetchSections は GET <path>?sections=a,b。値がnullのIDは結果に入らない。
func (c *Client) FetchSections(ctx context.Context, path string, ids []string) (map[string]string, error) {
	if path == "" {
		path = "/"
	}
	q := url.Values{}
	q.Set("sections", strings.Join(ids, ","))

	body, err := c.do(ctx, "fetch sections", http.MethodGet, path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]*string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FormatError{Op: "fetch sections", Err: err}
	}

	out := make(map[string]string, len(raw))
	for id, html := range raw {
		if html != nil {
			out[id] = *html
		}
	}
	return out, nil
}

// ApplyDiscount は GET /discount/<code>。リダイレクト先は読まない。
func (c *Client) ApplyDiscount(ctx context.Context, code string) error {
	_, err := c.send(ctx, "apply discount", http.MethodGet, "/discount/"+url.PathEscape(code), nil, true)
	return err
}

// do は 2xx だけを成功とする。
func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}) ([]byte, error) {
	return c.send(ctx, op, method, path, payload, false)
}

func (c *Client) send(ctx context.Context, op, method, path string, payload interface{}, allowRedirect bool) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	target := c.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if allowRedirect && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		ok = true
	}
	if !ok {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &TransportError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   msg,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return body, nil
}

func decodeCart(op string, body []byte) (model.CartSnapshot, error) {
	var cj cartJSON
	if err := json.Unmarshal(body, &cj); err != nil {
		return model.CartSnapshot{}, &FormatError{Op: op, Err: err}
	}
	if cj.Items == nil {
		return model.CartSnapshot{}, &FormatError{Op: op, Err: errors.New("items missing")}
	}

	out := model.CartSnapshot{
		Token:     cj.Token,
		Items:     make([]model.LineItem, 0, len(*cj.Items)),
		ItemCount: cj.ItemCount,
	}
	for i, li := range *cj.Items {
		if li.VariantID == nil {
			return model.CartSnapshot{}, &FormatError{Op: op, Err: fmt.Errorf("items[%d]: variant_id missing", i)}
		}
		out.Items = append(out.Items, li.toModel())
	}
	return out, nil
}

func (li lineItemJSON) toModel() model.LineItem {
	return model.LineItem{
		VariantID: li.VariantID.String(),
		Quantity:  li.Quantity,
		Key:       li.Key,
		Title:     li.Title,
		Price:     li.Price,
	}
}
