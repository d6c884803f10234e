package handler

import (
	"net/http"
	"strings"

	"giftcart/internal/event"
	"giftcart/internal/page"
	gift "giftcart/internal/usecase/gift_usecase"

	"github.com/labstack/echo/v4"
)

// ギフト照合（giftsync serve）のHTTP。テーマ側のスクリプトがイベントを送ってくる。
type EventHandler struct {
	coord   *gift.Coordinator
	bus     *event.Bus
	doc     *page.Document
	metrics http.Handler
}

// DI（metrics は nil 可）
func NewEventHandler(coord *gift.Coordinator, bus *event.Bus, doc *page.Document, metrics http.Handler) *EventHandler {
	return &EventHandler{coord: coord, bus: bus, doc: doc, metrics: metrics}
}

func (h *EventHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/events", h.publish)
	e.POST("/page/context", h.pageContext)
	e.POST("/reconcile", h.reconcile)
	e.GET("/state", h.state)
	e.GET("/page", h.page)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

type EventRequest struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

var knownEvents = map[string]bool{
	event.CartUpdated:      true,
	event.CartDrawerOpened: true,
	event.AjaxProductAdded: true,
	event.DiscountInput:    true,
	event.DiscountPaste:    true,
	event.DiscountChange:   true,
}

type RunResponse struct {
	Result  string   `json:"result"`
	Dropped bool     `json:"dropped"`
	RuleID  string   `json:"rule_id,omitempty"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Trimmed []string `json:"trimmed"`
	Failed  []string `json:"failed"`
	Blocked bool     `json:"checkout_blocked"`
}

type StateResponse struct {
	gift.Status
	CheckoutDisabled bool         `json:"checkout_disabled"`
	Cart             *CartSummary `json:"cart,omitempty"`
	CartError        string       `json:"cart_error,omitempty"`
}

// CartSummary は /state 用のカートの判定結果（変更はしない）
type CartSummary struct {
	QualifyingQuantity int64  `json:"qualifying_quantity"`
	CheckoutBlocked    bool   `json:"checkout_blocked"`
	RuleID             string `json:"rule_id,omitempty"`
}

type PageContextResponse struct {
	Code  string `json:"code,omitempty"`
	State string `json:"state"`
}

// POST /events
func (h *EventHandler) publish(c echo.Context) error {
	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if !knownEvents[req.Name] {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown event"})
	}

	h.bus.Publish(event.Event{Name: req.Name, Value: req.Value, Source: req.Source})
	return c.JSON(http.StatusAccepted, map[string]bool{"accepted": true})
}

// POST /page/context はページ読み込み時の情報からコードを探す
func (h *EventHandler) pageContext(c echo.Context) error {
	var pc gift.PageContext
	if err := c.Bind(&pc); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
	}

	code, st := h.coord.DetectFromPage(c.Request().Context(), pc)
	return c.JSON(http.StatusOK, PageContextResponse{Code: code, State: st.String()})
}

// POST /reconcile は手動で1回照合する
func (h *EventHandler) reconcile(c echo.Context) error {
	out := h.coord.Run(c.Request().Context(), "manual")
	return c.JSON(http.StatusOK, NewRunResponse(out))
}

// GET /state は状態と、今のカートの判定を返す。カート取得に失敗しても200。
func (h *EventHandler) state(c echo.Context) error {
	res := StateResponse{
		Status:           h.coord.Status(),
		CheckoutDisabled: h.doc.CheckoutDisabled(),
	}

	d, err := h.coord.Preview(c.Request().Context())
	if err != nil {
		res.CartError = err.Error()
	} else {
		res.Cart = &CartSummary{
			QualifyingQuantity: d.QualifyingQuantity,
			CheckoutBlocked:    d.CheckoutBlocked,
			RuleID:             d.RuleID,
		}
	}
	return c.JSON(http.StatusOK, res)
}

func (h *EventHandler) page(c echo.Context) error {
	return c.HTML(http.StatusOK, h.doc.HTML())
}

// NewRunResponse は1回の照合結果をJSON用にする
func NewRunResponse(out gift.RunOutcome) RunResponse {
	return RunResponse{
		Result:  out.Result,
		Dropped: out.Dropped,
		RuleID:  out.Decision.RuleID,
		Added:   nonNil(out.Mutation.Added),
		Removed: nonNil(out.Mutation.Removed),
		Trimmed: nonNil(out.Mutation.Trimmed),
		Failed:  nonNil(out.Mutation.Failed),
		Blocked: out.Decision.CheckoutBlocked,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
