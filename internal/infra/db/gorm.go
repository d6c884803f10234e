package db

import (
	"database/sql"
	"fmt"
	"time"

	"giftcart/internal/config"
	"giftcart/internal/domain/model"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// postgresは起動直後に落ちていることがあるので、しばらく再試行する。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	if cfg.DBDriver == "sqlite" {
		return gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
	}

	dsn := cfg.DatabaseURL
	// DATABASE_URL があれば最優先で使う
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode,
		)
	}

	var gormDB *gorm.DB
	op := func() error {
		// pgx stdlib の *sql.DB を gorm に渡す
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.Ping(); err != nil {
			_ = sqlDB.Close()
			return err
		}

		d, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
		if err != nil {
			_ = sqlDB.Close()
			return err
		}
		gormDB = d
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	notify := func(err error, wait time.Duration) {
		logrus.WithError(err).Warnf("db connect failed, retrying in %s", wait)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return gormDB, nil
}

// OpenSQLiteMemory はテスト用のインメモリDB。
func OpenSQLiteMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}

	// 共有キャッシュのテーブルロックを避けるため接続は1本
	sqlDB, err := d.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return d, nil
}

// Migrate はホスト側のテーブルを作る。
func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(
		&model.Variant{},
		&model.Cart{},
		&model.CartLine{},
	)
}
