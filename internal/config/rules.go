package config

import (
	"fmt"
	"os"
	"strings"

	"giftcart/internal/domain/model"

	"gopkg.in/yaml.v3"
)

type rulesFile struct {
	Rules []model.PromotionRule `yaml:"rules"`
}

type variantsFile struct {
	Variants []model.Variant `yaml:"variants"`
}

// LoadRulesはギフトルールのYAMLを読む。pathが空なら空。
func LoadRules(path string) ([]model.PromotionRule, error) {
	if strings.TrimSpace(path) == "" {
		return []model.PromotionRule{}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(b)
}

func ParseRules(b []byte) ([]model.PromotionRule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	seen := map[string]bool{}
	for i, r := range f.Rules {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("rules[%d]: id is required", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rules[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true

		if strings.TrimSpace(r.TriggerCode) == "" {
			return nil, fmt.Errorf("rule %s: trigger_code is required", r.ID)
		}
		if len(r.GiftVariantIDs) == 0 {
			return nil, fmt.Errorf("rule %s: gift_variant_ids is required", r.ID)
		}
		if r.MinimumQualifyingItems < 0 {
			return nil, fmt.Errorf("rule %s: minimum_qualifying_items must be >= 0", r.ID)
		}
	}
	return f.Rules, nil
}

// LoadVariantsはホストの商品バリアントYAMLを読む。
func LoadVariants(path string) ([]model.Variant, error) {
	if strings.TrimSpace(path) == "" {
		return []model.Variant{}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read variants file: %w", err)
	}

	var f variantsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse variants: %w", err)
	}
	for i, v := range f.Variants {
		if v.ID <= 0 {
			return nil, fmt.Errorf("variants[%d]: id must be positive", i)
		}
	}
	return f.Variants, nil
}
