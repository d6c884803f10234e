package gift

import (
	"strings"

	"giftcart/internal/domain/model"
)

// Evaluate は1つのルールでカートを判定する。副作用なし。
//  1. ギフト以外の数量が最低数以上 かつ コード一致 → 全ギフト Present
//  2. ギフト以外が0 → 全ギフト Absent（1より優先）
//  3. それ以外 → Keep
func Evaluate(snapshot model.CartSnapshot, rule model.PromotionRule, activeCode string) model.EligibilityDecision {
	return EvaluateAll(snapshot, []model.PromotionRule{rule}, activeCode)
}

// EvaluateAll は複数ルールをまとめて判定する。
// ギフト以外の数量はどのルールのギフトも除いて数え、同じギフトは Absent > Present > Keep で決める。
func EvaluateAll(snapshot model.CartSnapshot, rules []model.PromotionRule, activeCode string) model.EligibilityDecision {
	d := model.EligibilityDecision{Gifts: map[string]model.Presence{}}

	isGift := func(variantID string) bool {
		for _, r := range rules {
			if r.IsGift(variantID) {
				return true
			}
		}
		return false
	}

	var giftQty int64
	for _, it := range snapshot.Items {
		if it.Quantity <= 0 {
			continue
		}
		if isGift(it.VariantID) {
			giftQty += it.Quantity
		} else {
			d.QualifyingQuantity += it.Quantity
		}
	}

	var matched []string
	for _, r := range rules {
		presence := model.PresenceKeep
		codeMatched := r.MatchesCode(activeCode)
		switch {
		case d.QualifyingQuantity == 0:
			presence = model.PresenceAbsent
		case codeMatched && d.QualifyingQuantity >= r.EffectiveMinimum():
			presence = model.PresencePresent
		}
		if codeMatched {
			d.CodeMatched = true
			matched = append(matched, r.ID)
		}

		for _, id := range r.GiftVariantIDs {
			prev, seen := d.Gifts[id]
			if !seen {
				d.Order = append(d.Order, id)
			}
			d.Gifts[id] = stronger(prev, presence)
		}
	}
	d.RuleID = strings.Join(matched, ",")

	// ギフトだけのカートはチェックアウトさせない
	d.CheckoutBlocked = giftQty > 0 && d.QualifyingQuantity == 0
	return d
}

func stronger(a, b model.Presence) model.Presence {
	rank := func(p model.Presence) int {
		switch p {
		case model.PresenceAbsent:
			return 2
		case model.PresencePresent:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
