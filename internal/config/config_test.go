package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndRequired(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("GO_ENV", "dev")
	t.Setenv("CART_TOKEN_SECRET", "")
	t.Setenv("GIFT_FREE_VARIANTS", " 43668421771395 , ,1001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev_secret_change_me", cfg.CartTokenSecret)
	assert.Equal(t, []string{"43668421771395", "1001"}, cfg.GiftFreeVariants)

	t.Setenv("GO_ENV", "prod")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("GO_ENV", "dev")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadReconciler(t *testing.T) {
	t.Setenv("STORE_BASE_URL", "http://shop.test")
	t.Setenv("STATE_BACKEND", "memory")

	cfg, err := LoadReconciler()
	require.NoError(t, err)
	assert.Equal(t, "http://shop.test", cfg.StoreBaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.InputDebounce)
	assert.Equal(t, 10*time.Second, cfg.CartHTTPTimeout)
	assert.Equal(t, "BXGY-", cfg.CodePrefix)
	assert.True(t, cfg.AutoRemove)

	t.Setenv("STATE_BACKEND", "etcd")
	_, err = LoadReconciler()
	assert.Error(t, err)
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
rules:
  - id: bxgy
    trigger_code: BXGY-43668421771395
    gift_variant_ids: ["43668421771395"]
    minimum_qualifying_items: 1
  - id: duo
    trigger_code: DUO
    gift_variant_ids: ["1", "2"]
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"1", "2"}, rules[1].GiftVariantIDs)
	assert.Equal(t, int64(1), rules[1].EffectiveMinimum())

	cases := map[string]string{
		"missing id":      "rules:\n  - trigger_code: X\n    gift_variant_ids: [\"1\"]\n",
		"duplicate id":    "rules:\n  - id: a\n    trigger_code: X\n    gift_variant_ids: [\"1\"]\n  - id: a\n    trigger_code: Y\n    gift_variant_ids: [\"2\"]\n",
		"missing trigger": "rules:\n  - id: a\n    gift_variant_ids: [\"1\"]\n",
		"missing gifts":   "rules:\n  - id: a\n    trigger_code: X\n",
		"negative min":    "rules:\n  - id: a\n    trigger_code: X\n    gift_variant_ids: [\"1\"]\n    minimum_qualifying_items: -1\n",
		"bad yaml":        "rules: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
variants:
  - id: 1001
    title: Tee
    price: 2500
    stock: 5
    available: true
`), 0o600))

	vs, err := LoadVariants(path)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "Tee", vs[0].Title)
	assert.True(t, vs[0].Available)

	vs, err = LoadVariants("")
	require.NoError(t, err)
	assert.Empty(t, vs)

	_, err = LoadVariants(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
