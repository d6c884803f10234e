package gift

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"giftcart/internal/domain/model"
	"giftcart/internal/infra/cartapi"
	"giftcart/internal/metrics"

	"github.com/sirupsen/logrus"
)

// CartAPI はホストの Ajax カート。*cartapi.Client が実装する。
type CartAPI interface {
	FetchCart(ctx context.Context) (model.CartSnapshot, error)
	AddLine(ctx context.Context, variantID string, qty int64) (model.LineItem, error)
	UpdateLines(ctx context.Context, updates map[string]int64) (model.CartSnapshot, error)
	ApplyDiscount(ctx context.Context, code string) error
}

// Plan はカートを判定に合わせるための操作。
type Plan struct {
	Adds    []string         // 追加するvariant（順番どおり、各1点）
	Updates map[string]int64 // line key → 数量（0で削除、1で1点に減らす）
}

func (p Plan) Empty() bool {
	return len(p.Adds) == 0 && len(p.Updates) == 0
}

// MutationResult は実際に行った操作。
type MutationResult struct {
	Added   []string
	Removed []string // 0にしたline key
	Trimmed []string // 1点に減らしたline key
	Failed  []string // 追加に失敗したvariant
}

func (r MutationResult) Mutated() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Trimmed) > 0
}

type Mutator struct {
	cart       CartAPI
	autoRemove bool
	singleUnit bool
	metrics    *metrics.Metrics
}

// DI
func NewMutator(cart CartAPI, autoRemove, singleUnit bool, m *metrics.Metrics) *Mutator {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Mutator{cart: cart, autoRemove: autoRemove, singleUnit: singleUnit, metrics: m}
}

// Plan は判定とカートの差分を出す。副作用なし。
func (m *Mutator) Plan(snapshot model.CartSnapshot, d model.EligibilityDecision) Plan {
	p := Plan{Updates: map[string]int64{}}

	for _, variantID := range d.Order {
		lines := linesOf(snapshot, variantID)

		switch d.PresenceOf(variantID) {
		case model.PresencePresent:
			if len(lines) == 0 {
				p.Adds = append(p.Adds, variantID)
				continue
			}
			m.trim(p, lines)
		case model.PresenceAbsent:
			if !m.autoRemove {
				continue
			}
			for _, l := range lines {
				p.Updates[l.Key] = 0
			}
		default:
			m.trim(p, lines)
		}
	}
	return p
}

// 同じギフトは1行1点まで
func (m *Mutator) trim(p Plan, lines []model.LineItem) {
	if !m.singleUnit || len(lines) == 0 {
		return
	}
	if lines[0].Quantity > 1 {
		p.Updates[lines[0].Key] = 1
	}
	for _, extra := range lines[1:] {
		p.Updates[extra.Key] = 0
	}
}

// Reconcile はカートを判定に合わせる。
// 削除・減算は update.js 1回、追加は順番に1件ずつ。422の追加は飛ばして続ける。
// 1件でも追加できたら code をセッションに適用する（失敗しても無視）。
func (m *Mutator) Reconcile(ctx context.Context, snapshot model.CartSnapshot, d model.EligibilityDecision, code string) (MutationResult, error) {
	var res MutationResult
	plan := m.Plan(snapshot, d)
	if plan.Empty() {
		return res, nil
	}

	log := logrus.WithField("rule_id", d.RuleID)
	var errs []error

	if len(plan.Updates) > 0 {
		if _, err := m.cart.UpdateLines(ctx, plan.Updates); err != nil {
			log.WithError(err).WithField("reason", "update").Warn("gift update failed")
			errs = append(errs, err)
		} else {
			for key, qty := range plan.Updates {
				if qty == 0 {
					res.Removed = append(res.Removed, key)
					m.metrics.GiftMutations.WithLabelValues("remove").Inc()
				} else {
					res.Trimmed = append(res.Trimmed, key)
					m.metrics.GiftMutations.WithLabelValues("trim").Inc()
				}
			}
		}
	}

	for _, variantID := range plan.Adds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if _, err := m.cart.AddLine(ctx, variantID, 1); err != nil {
			res.Failed = append(res.Failed, variantID)
			reason := "add"
			if cartapi.IsUnprocessable(err) {
				reason = "unavailable"
			}
			log.WithError(err).WithFields(logrus.Fields{"variant_id": variantID, "reason": reason}).Warn("gift add failed")
			errs = append(errs, fmt.Errorf("add gift %s: %w", variantID, err))
			continue
		}

		res.Added = append(res.Added, variantID)
		m.metrics.GiftMutations.WithLabelValues("add").Inc()
		log.WithField("variant_id", variantID).Info("gift added")
	}

	if len(res.Added) > 0 && strings.TrimSpace(code) != "" {
		if err := m.cart.ApplyDiscount(ctx, code); err != nil {
			log.WithError(err).WithField("reason", "discount").Warn("apply discount failed")
		}
	}

	return res, errors.Join(errs...)
}

func linesOf(snapshot model.CartSnapshot, variantID string) []model.LineItem {
	var out []model.LineItem
	for _, it := range snapshot.Items {
		if it.VariantID == variantID && it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}
