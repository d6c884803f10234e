package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 照合の結果ラベル
const (
	ResultOK         = "ok"
	ResultNoop       = "noop"
	ResultFetchError = "fetch_error"
	ResultMutateErr  = "mutate_error"
	ResultPanic      = "panic"
)

// Metrics は giftsync のカウンタ一式。
type Metrics struct {
	ReconcileRuns    *prometheus.CounterVec
	ReconcileDropped prometheus.Counter
	GiftMutations    *prometheus.CounterVec
	CartFetchErrors  *prometheus.CounterVec
}

// New はカウンタを作り reg に登録する。reg=nilなら登録しない。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcart_reconcile_runs_total",
			Help: "Reconciliation passes by result.",
		}, []string{"result"}),
		ReconcileDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "giftcart_reconcile_dropped_total",
			Help: "Triggers dropped because a pass was already running.",
		}),
		GiftMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcart_gift_mutations_total",
			Help: "Gift cart mutations by operation.",
		}, []string{"op"}),
		CartFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcart_cart_fetch_errors_total",
			Help: "Cart fetch failures by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.ReconcileRuns, m.ReconcileDropped, m.GiftMutations, m.CartFetchErrors)
	}
	return m
}

// NewRegistry は Go/process コレクタ入りのレジストリ。
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
