package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/config"
	"github.com/nourishbox/api/internal/notify"
	"github.com/nourishbox/api/internal/paystack"
	"github.com/nourishbox/api/internal/repository"
	"github.com/nourishbox/api/internal/router"
	"github.com/nourishbox/api/internal/service"
	"github.com/nourishbox/api/internal/ws"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	if err := run(logger); err != nil {
		logger.Fatalw("server exited", "error", err)
	}
}

func run(logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	repo, err := repository.New(cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer repo.Close()

	resolver := clock.NewResolver(cfg.UTCOffsetHours)

	hub := ws.NewHub()
	go hub.Run()
	notifier := notify.NewHubNotifier(hub, logger)

	provider := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.PaystackWebhookSecret)

	guard := service.NewGuard(repo, resolver, cfg.CutoffHour, cfg.CutoffMinute)
	orders := service.NewOrderService(repo, guard, resolver, clock.System{}, notifier, logger,
		time.Duration(cfg.PreparingGraceMin)*time.Minute,
		time.Duration(cfg.DispatchGraceMin)*time.Minute,
		time.Duration(cfg.DeliveredGraceMin)*time.Minute,
	)
	invoices := service.NewInvoiceService(repo, resolver, notifier, logger)
	payments := service.NewPaymentService(repo, provider, notifier, logger,
		cfg.FrontendURL+"/payments/callback", cfg.PaymentStrictAmount)
	recs := service.NewRecommendService(repo, service.DefaultRanker{}, logger)

	scheduler := service.NewScheduler(orders, invoices, recs, repo, resolver, notifier, logger,
		cfg.CutoffHour, cfg.CutoffMinute)

	srv := &http.Server{
		Addr: cfg.RunAddress,
		Handler: router.New(router.Deps{
			Config:   cfg,
			Repo:     repo,
			Resolver: resolver,
			Orders:   orders,
			Invoices: invoices,
			Payments: payments,
			Recs:     recs,
			Hub:      hub,
			Logger:   logger,
		}),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infow("server starting", "address", cfg.RunAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
