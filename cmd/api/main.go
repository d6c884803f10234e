package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"giftcart/internal/config"
	"giftcart/internal/handler"
	"giftcart/internal/infra/db"
	"giftcart/internal/infra/logger"
	infraRepo "giftcart/internal/infra/repository"
	"giftcart/internal/server"
	"giftcart/internal/usecase"

	"github.com/sirupsen/logrus"
)

func main() {
	//設定
	cfg, err := config.Load(".env", "../.env")
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger.Setup(cfg.GoEnv, cfg.LogLevel)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("connect db")
	}
	if err := db.Migrate(gormDB); err != nil {
		logrus.WithError(err).Fatal("migrate")
	}

	//Repository（GORM実装）生成
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//Usecase生成
	variantUC := usecase.NewVariantUsecase(variantRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, variantRepo, txm, cfg.GiftFreeVariants)
	sectionUC := usecase.NewSectionUsecase(cartUC)

	//初期バリアント
	variants, err := config.LoadVariants(cfg.SeedVariantsFile)
	if err != nil {
		logrus.WithError(err).Fatal("load variants")
	}
	if err := variantUC.Seed(ctx, variants); err != nil {
		logrus.WithError(err).Fatal("seed variants")
	}

	//Handler生成
	cartH := handler.NewCartHandler(cartUC, sectionUC)
	variantH := handler.NewVariantHandler(variantUC)

	e := server.New()
	server.RegisterHostRoutes(e, cfg.CartTokenSecret, cartH, variantH)

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	if err := server.Start(ctx, e, addr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
