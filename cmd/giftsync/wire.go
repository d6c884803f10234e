package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"giftcart/internal/config"
	"giftcart/internal/event"
	"giftcart/internal/infra/cartapi"
	"giftcart/internal/infra/clientstate"
	"giftcart/internal/metrics"
	"giftcart/internal/page"
	repo "giftcart/internal/repository"
	"giftcart/internal/schedule"
	gift "giftcart/internal/usecase/gift_usecase"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// reconciler は giftsync の部品一式
type reconciler struct {
	client      *cartapi.Client
	doc         *page.Document
	bus         *event.Bus
	registry    *prometheus.Registry
	resolver    *gift.RuleResolver
	eligibility *gift.EligibilityStore
	coord       *gift.Coordinator

	closers []func() error
}

func (r *reconciler) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logrus.WithError(err).Warn("close failed")
		}
	}
}

func newStateStore(ctx context.Context, c config.ReconcilerConfig) (repo.ClientStateStore, func() error, error) {
	if c.StateBackend != "redis" {
		return clientstate.NewMemoryStore(), func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	// 起動直後のredisに備えて少し待つ
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	ping := func() error { return rdb.Ping(ctx).Err() }
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logrus.WithField("addr", c.RedisAddr).Info("connected to redis")

	return clientstate.NewRedisStore(rdb, "giftsync"), rdb.Close, nil
}

func loadPage(path string) (*page.Document, error) {
	if path == "" {
		return page.Blank(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page file: %w", err)
	}
	return page.Parse(string(b))
}

// buildReconciler は設定から照合器を組み立てる（Start はしない）
func buildReconciler(ctx context.Context, c config.ReconcilerConfig) (*reconciler, error) {
	rules, err := config.LoadRules(c.RulesFile)
	if err != nil {
		return nil, err
	}

	client, err := cartapi.New(c.StoreBaseURL, c.CartHTTPTimeout)
	if err != nil {
		return nil, err
	}

	doc, err := loadPage(c.PageFile)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newStateStore(ctx, c)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	met := metrics.New(registry)
	bus := event.NewBus()
	timers := schedule.NewDebouncer()

	resolver := gift.NewRuleResolver(rules, c.CodePrefix, c.DefaultVariant)
	eligibility := gift.NewEligibilityStore(store, c.StateTTL)

	coord := gift.NewCoordinator(gift.Deps{
		Cart:        client,
		Resolver:    resolver,
		Mutator:     gift.NewMutator(client, c.AutoRemove, c.SingleUnit, met),
		Renderer:    gift.NewRenderer(client, doc, bus, nil, c.SectionsPath, c.BannerTTL, timers),
		Bus:         bus,
		Timers:      timers,
		Eligibility: eligibility,
		Metrics:     met,
		Timings: gift.Timings{
			InputDebounce:  c.InputDebounce,
			PasteDebounce:  c.PasteDebounce,
			ChangeDebounce: c.ChangeDebounce,
		},
	})

	logrus.WithFields(logrus.Fields{
		"store":       c.StoreBaseURL,
		"rules":       len(rules),
		"prefix":      c.CodePrefix,
		"auto_remove": c.AutoRemove,
		"state":       c.StateBackend,
	}).Info("reconciler ready")

	return &reconciler{
		client:      client,
		doc:         doc,
		bus:         bus,
		registry:    registry,
		resolver:    resolver,
		eligibility: eligibility,
		coord:       coord,
		closers:     []func() error{closeStore},
	}, nil
}
