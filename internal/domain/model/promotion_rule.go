package model

import "strings"

// PromotionRule はギフト付与のルール。起動中は変更しない。
type PromotionRule struct {
	ID                     string   `yaml:"id" json:"id"`
	TriggerCode            string   `yaml:"trigger_code" json:"trigger_code"`
	GiftVariantIDs         []string `yaml:"gift_variant_ids" json:"gift_variant_ids"`
	MinimumQualifyingItems int64    `yaml:"minimum_qualifying_items" json:"minimum_qualifying_items"`
}

func (r PromotionRule) IsGift(variantID string) bool {
	for _, id := range r.GiftVariantIDs {
		if id == variantID {
			return true
		}
	}
	return false
}

// MatchesCode は前後空白を除き、大文字小文字を無視して比較する。
func (r PromotionRule) MatchesCode(code string) bool {
	trigger := strings.TrimSpace(r.TriggerCode)
	if trigger == "" {
		return false
	}
	return strings.EqualFold(trigger, strings.TrimSpace(code))
}

// 最低数が0以下なら1として扱う（ギフトだけのカートを作らない）。
func (r PromotionRule) EffectiveMinimum() int64 {
	if r.MinimumQualifyingItems < 1 {
		return 1
	}
	return r.MinimumQualifyingItems
}
