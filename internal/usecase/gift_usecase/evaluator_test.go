package gift

import (
	"testing"

	"giftcart/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

const giftID = "43668421771395"

func snap(items ...model.LineItem) model.CartSnapshot {
	return model.CartSnapshot{Items: items}
}

func line(variantID string, qty int64) model.LineItem {
	return model.LineItem{VariantID: variantID, Quantity: qty, Key: variantID + ":k"}
}

func bxgyRule() model.PromotionRule {
	return model.PromotionRule{ID: "bxgy", TriggerCode: "BXGY-" + giftID, GiftVariantIDs: []string{giftID}, MinimumQualifyingItems: 1}
}

func TestEvaluate_Table(t *testing.T) {
	rule := bxgyRule()
	two := model.PromotionRule{ID: "two", TriggerCode: "GIFT2", GiftVariantIDs: []string{"g1", "g2"}, MinimumQualifyingItems: 2}

	cases := []struct {
		name     string
		snapshot model.CartSnapshot
		rule     model.PromotionRule
		code     string
		want     model.Presence
		blocked  bool
	}{
		{name: "empty cart with valid code", snapshot: snap(), rule: rule, code: rule.TriggerCode, want: model.PresenceAbsent},
		{name: "only gift with valid code", snapshot: snap(line(giftID, 1)), rule: rule, code: rule.TriggerCode, want: model.PresenceAbsent, blocked: true},
		{name: "qualifying and code", snapshot: snap(line("1001", 1)), rule: rule, code: rule.TriggerCode, want: model.PresencePresent},
		{name: "code matches case-insensitively", snapshot: snap(line("1001", 1)), rule: rule, code: "  bxgy-43668421771395 ", want: model.PresencePresent},
		{name: "qualifying without code", snapshot: snap(line("1001", 3), line(giftID, 1)), rule: rule, code: "", want: model.PresenceKeep},
		{name: "wrong code", snapshot: snap(line("1001", 3)), rule: rule, code: "OTHER", want: model.PresenceKeep},
		{name: "below minimum", snapshot: snap(line("1001", 1)), rule: two, code: "gift2", want: model.PresenceKeep},
		{name: "meets minimum", snapshot: snap(line("1001", 1), line("1002", 1)), rule: two, code: "gift2", want: model.PresencePresent},
		{name: "zero quantity lines do not count", snapshot: snap(line("1001", 0)), rule: rule, code: rule.TriggerCode, want: model.PresenceAbsent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(tc.snapshot, tc.rule, tc.code)
			for _, id := range tc.rule.GiftVariantIDs {
				assert.Equal(t, tc.want, d.PresenceOf(id), id)
			}
			assert.Equal(t, tc.blocked, d.CheckoutBlocked)
			assert.Equal(t, tc.rule.GiftVariantIDs, d.Order)
		})
	}
}

func TestEvaluate_MinimumZeroTreatedAsOne(t *testing.T) {
	rule := bxgyRule()
	rule.MinimumQualifyingItems = 0

	d := Evaluate(snap(line(giftID, 1)), rule, rule.TriggerCode)
	assert.Equal(t, model.PresenceAbsent, d.PresenceOf(giftID))
	assert.False(t, d.ShouldHave(giftID))
}

// qualifying 0 なら、どんなコードでも Present にならない
func TestEvaluate_HardFloorProperty(t *testing.T) {
	rule := bxgyRule()
	carts := []model.CartSnapshot{
		snap(),
		snap(line(giftID, 1)),
		snap(line(giftID, 5)),
		snap(line(giftID, 1), line("1001", 0)),
	}
	codes := []string{"", rule.TriggerCode, "bxgy-43668421771395", "nope"}

	for _, c := range carts {
		for _, code := range codes {
			d := Evaluate(c, rule, code)
			assert.NotEqual(t, model.PresencePresent, d.PresenceOf(giftID))
			assert.Equal(t, int64(0), d.QualifyingQuantity)
		}
	}
}

// チェックアウト不可 ⇔ 空でなく全部ギフト
func TestEvaluate_CheckoutBlockedIffOnlyGifts(t *testing.T) {
	rules := []model.PromotionRule{
		bxgyRule(),
		{ID: "two", TriggerCode: "GIFT2", GiftVariantIDs: []string{"g1", "g2"}, MinimumQualifyingItems: 2},
	}

	assert.False(t, EvaluateAll(snap(), rules, "").CheckoutBlocked)
	assert.True(t, EvaluateAll(snap(line("g1", 1), line(giftID, 1)), rules, "").CheckoutBlocked)
	assert.False(t, EvaluateAll(snap(line("g1", 1), line("1001", 1)), rules, "").CheckoutBlocked)
	assert.False(t, EvaluateAll(snap(line("1001", 2)), rules, "").CheckoutBlocked)
}

func TestEvaluateAll_QualifyingExcludesEveryRuleGift(t *testing.T) {
	rules := []model.PromotionRule{
		bxgyRule(),
		{ID: "two", TriggerCode: "GIFT2", GiftVariantIDs: []string{"g1"}, MinimumQualifyingItems: 1},
	}

	// g1 は別ルールのギフトなので数に入らない
	d := EvaluateAll(snap(line("g1", 1)), rules, "BXGY-"+giftID)
	assert.Equal(t, int64(0), d.QualifyingQuantity)
	assert.Equal(t, model.PresenceAbsent, d.PresenceOf(giftID))

	d = EvaluateAll(snap(line("g1", 1), line("1001", 1)), rules, "BXGY-"+giftID)
	assert.Equal(t, model.PresencePresent, d.PresenceOf(giftID))
	assert.Equal(t, model.PresenceKeep, d.PresenceOf("g1"))
	assert.Equal(t, "bxgy", d.RuleID)
	assert.True(t, d.CodeMatched)
}

func TestStronger(t *testing.T) {
	assert.Equal(t, model.PresenceAbsent, stronger(model.PresencePresent, model.PresenceAbsent))
	assert.Equal(t, model.PresencePresent, stronger(model.PresenceKeep, model.PresencePresent))
	assert.Equal(t, model.PresencePresent, stronger(model.PresencePresent, model.PresenceKeep))
	assert.Equal(t, model.PresenceKeep, stronger(model.PresenceKeep, model.PresenceKeep))
}
