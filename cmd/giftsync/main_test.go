package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"giftcart/internal/infra/clientstate"
	gift "giftcart/internal/usecase/gift_usecase"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	if os.Getenv("STATE_BACKEND") == "" {
		t.Setenv("STATE_BACKEND", "memory")
	}
	t.Setenv("GIFT_CODE_PREFIX", "BXGY-")
	t.Setenv("GIFT_DEFAULT_VARIANT", "43668421771395")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseCode_PrefixedVariant(t *testing.T) {
	t.Setenv("GIFT_RULES_FILE", "")

	out, err := execute(t, "parse-code", "BXGY-12345678901")
	require.NoError(t, err)

	var got parsedCode
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "12345678901", got.Variant)
	assert.Equal(t, "code:12345678901", got.RuleID)
	assert.Equal(t, []string{"12345678901"}, got.Gifts)
	assert.Equal(t, int64(1), got.Minimum)
	assert.True(t, got.Validated)
}

func TestParseCode_ConfiguredRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: summer
    trigger_code: SUMMER
    gift_variant_ids: ["111", "222"]
    minimum_qualifying_items: 2
`), 0o600))
	t.Setenv("GIFT_RULES_FILE", path)

	out, err := execute(t, "parse-code", "summer")
	require.NoError(t, err)

	var got parsedCode
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "summer", got.RuleID)
	assert.Equal(t, []string{"111", "222"}, got.Gifts)
	assert.Equal(t, int64(2), got.Minimum)
}

func TestParseCode_NoMatch(t *testing.T) {
	t.Setenv("GIFT_RULES_FILE", "")

	_, err := execute(t, "parse-code", "WELCOME10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestStatusAndClear_RejectMemoryBackend(t *testing.T) {
	t.Setenv("GIFT_RULES_FILE", "")
	t.Setenv("STATE_BACKEND", "memory")

	_, err := execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATE_BACKEND=redis")

	_, err = execute(t, "clear")
	require.Error(t, err)
}

func TestStatusAndClear_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("GIFT_RULES_FILE", "")
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", mr.Addr())

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "no stored eligibility")

	// serve 側が保存した想定
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := gift.NewEligibilityStore(clientstate.NewRedisStore(rdb, "giftsync"), time.Hour)
	require.NoError(t, store.Save(context.Background(), gift.Eligibility{Code: "BXGY-43668421771395", Variant: "43668421771395"}))

	out, err = execute(t, "status")
	require.NoError(t, err)
	var got gift.Eligibility
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "BXGY-43668421771395", got.Code)

	out, err = execute(t, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "no stored eligibility")
}
