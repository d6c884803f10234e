package gift

import (
	"strings"
	"sync"

	"giftcart/internal/domain/model"
	"giftcart/internal/validator"
)

// RuleResolver はコードからルールを決める。
// 設定ファイルのルールが先、無ければプレフィックス付きコードから作る。
type RuleResolver struct {
	rules          []model.PromotionRule
	prefix         string
	defaultVariant string

	// 一度でもギフトとして扱った variant。コードが外れてもギフトのまま数える。
	mu    sync.Mutex
	known []string
}

func NewRuleResolver(rules []model.PromotionRule, prefix, defaultVariant string) *RuleResolver {
	return &RuleResolver{
		rules:          append([]model.PromotionRule(nil), rules...),
		prefix:         prefix,
		defaultVariant: strings.TrimSpace(defaultVariant),
	}
}

func (r *RuleResolver) Resolve(code string) (model.PromotionRule, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.PromotionRule{}, false
	}

	for _, rule := range r.rules {
		if rule.MatchesCode(code) {
			return rule, true
		}
	}

	variant, ok := validator.ParseGiftCode(code, r.prefix, r.defaultVariant)
	if !ok {
		return model.PromotionRule{}, false
	}
	return CodeRule(code, variant), true
}

// CodeRule は "BXGY-<variant>" 用のルール。最低1点。
func CodeRule(code, variant string) model.PromotionRule {
	return model.PromotionRule{
		ID:                     "code:" + variant,
		TriggerCode:            code,
		GiftVariantIDs:         []string{variant},
		MinimumQualifyingItems: 1,
	}
}

// RememberGifts はギフトとして扱った variant を覚える。増えたら true。
func (r *RuleResolver) RememberGifts(ids ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := false
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || containsID(r.known, id) {
			continue
		}
		r.known = append(r.known, id)
		added = true
	}
	return added
}

// KnownGifts は覚えている variant を覚えた順で返す。
func (r *RuleResolver) KnownGifts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.known...)
}

// GuardRules はコード無しでも見張るルール（ギフトだけのカートを防ぐ用）。
// トリガーコードは空にして Present にならないようにする。
// 既定の variant と、過去にコードで入れた variant も含む。
func (r *RuleResolver) GuardRules() []model.PromotionRule {
	out := make([]model.PromotionRule, 0, len(r.rules)+1)
	seen := map[string]bool{}
	for _, rule := range r.rules {
		guard := rule
		guard.TriggerCode = ""
		out = append(out, guard)
		for _, id := range rule.GiftVariantIDs {
			seen[id] = true
		}
	}

	extra := append([]string{r.defaultVariant}, r.KnownGifts()...)
	for _, id := range extra {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, model.PromotionRule{
			ID:                     "code:" + id,
			GiftVariantIDs:         []string{id},
			MinimumQualifyingItems: 1,
		})
	}
	return out
}

// RulesFor は有効なルールに見張り用を足したもの。
func (r *RuleResolver) RulesFor(active *model.PromotionRule) []model.PromotionRule {
	guards := r.GuardRules()
	if active == nil {
		return guards
	}

	out := []model.PromotionRule{*active}
	for _, g := range guards {
		if g.ID == active.ID {
			continue
		}
		out = append(out, g)
	}
	return out
}

func (r *RuleResolver) Prefix() string { return r.prefix }

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
