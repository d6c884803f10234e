package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Configはカートホスト（cmd/api）の設定
type Config struct {
	Port string `env:"PORT" envDefault:"8080"` // サーバーポート

	DBDriver         string `env:"DB_DRIVER" envDefault:"postgres"` // postgres / sqlite
	DatabaseURL      string `env:"DATABASE_URL"`                    // あれば最優先
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"app"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"file::memory:?cache=shared"`

	CartTokenSecret string `env:"CART_TOKEN_SECRET"` // cartクッキー署名シークレット

	GoEnv    string `env:"GO_ENV" envDefault:"dev"` // dev/prod
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SeedVariantsFile string   `env:"SEED_VARIANTS_FILE"`                  // 起動時に投入するバリアント
	GiftFreeVariants []string `env:"GIFT_FREE_VARIANTS" envSeparator:","` // 割引コード適用中は0円
}

// ReconcilerConfigはギフト照合（cmd/giftsync）の設定
type ReconcilerConfig struct {
	StoreBaseURL    string        `env:"STORE_BASE_URL" envDefault:"http://localhost:8080"`
	CartHTTPTimeout time.Duration `env:"CART_HTTP_TIMEOUT" envDefault:"10s"`
	SectionsPath    string        `env:"SECTIONS_PATH" envDefault:"/"`

	RulesFile      string `env:"GIFT_RULES_FILE"`
	CodePrefix     string `env:"GIFT_CODE_PREFIX" envDefault:"BXGY-"`
	DefaultVariant string `env:"GIFT_DEFAULT_VARIANT" envDefault:"43668421771395"`
	AutoRemove     bool   `env:"GIFT_AUTO_REMOVE" envDefault:"true"`
	SingleUnit     bool   `env:"GIFT_SINGLE_UNIT" envDefault:"true"`

	InputDebounce  time.Duration `env:"GIFT_INPUT_DEBOUNCE" envDefault:"300ms"`
	PasteDebounce  time.Duration `env:"GIFT_PASTE_DEBOUNCE" envDefault:"50ms"`
	ChangeDebounce time.Duration `env:"GIFT_CHANGE_DEBOUNCE" envDefault:"100ms"`
	BannerTTL      time.Duration `env:"GIFT_BANNER_TTL" envDefault:"3s"`
	StateTTL       time.Duration `env:"GIFT_STATE_TTL" envDefault:"24h"`

	StateBackend  string `env:"STATE_BACKEND" envDefault:"memory"` // memory / redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8090"`
	PageFile   string `env:"PAGE_FILE"` // 初期ページHTML

	GoEnv    string `env:"GO_ENV" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// .envがあれば読む（無くてもよい）
func loadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Loadは環境変数
func Load(dotenvFiles ...string) (Config, error) {
	loadDotEnv(dotenvFiles...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite")
	}
	if cfg.CartTokenSecret == "" {
		if cfg.GoEnv == "prod" {
			return Config{}, fmt.Errorf("CART_TOKEN_SECRET is required")
		}
		cfg.CartTokenSecret = "dev_secret_change_me"
	}
	cfg.GiftFreeVariants = trimAll(cfg.GiftFreeVariants)

	return cfg, nil
}

// LoadReconcilerは照合側の環境変数
func LoadReconciler(dotenvFiles ...string) (ReconcilerConfig, error) {
	loadDotEnv(dotenvFiles...)

	var cfg ReconcilerConfig
	if err := env.Parse(&cfg); err != nil {
		return ReconcilerConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if strings.TrimSpace(cfg.StoreBaseURL) == "" {
		return ReconcilerConfig{}, fmt.Errorf("STORE_BASE_URL is required")
	}
	if cfg.CartHTTPTimeout <= 0 {
		return ReconcilerConfig{}, fmt.Errorf("CART_HTTP_TIMEOUT must be positive")
	}
	switch cfg.StateBackend {
	case "memory", "redis":
	default:
		return ReconcilerConfig{}, fmt.Errorf("STATE_BACKEND must be memory or redis")
	}

	return cfg, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
