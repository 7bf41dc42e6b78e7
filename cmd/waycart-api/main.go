// README: API entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"waycart/internal/cache"
	"waycart/internal/config"
	httptransport "waycart/internal/http"
	"waycart/internal/infra"
	"waycart/internal/logging"
	"waycart/internal/modules/discovery"
	"waycart/internal/modules/notify"
	"waycart/internal/modules/order"
	"waycart/internal/modules/vendor"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(os.Getenv("WAYCART_DEBUG") == "true")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	// The broker is optional: without it order flow still works, vendors
	// just poll instead of being pushed to.
	var dispatcher notify.Dispatcher = notify.Nop{}
	amqpClient, err := infra.DialAMQP(cfg.AMQP.URL)
	if err != nil {
		logger.Warn("amqp unavailable, notifications disabled", zap.Error(err))
	} else {
		defer amqpClient.Close()
		if err := amqpClient.DeclareTopology(cfg.AMQP.Exchange, cfg.AMQP.Queue); err != nil {
			logger.Fatal("amqp topology", zap.Error(err))
		}
		dispatcher = notify.NewAMQPDispatcher(amqpClient.Channel(), cfg.AMQP.Exchange, logger)
	}

	vendorStore := vendor.NewStore(dbPool)
	vendorSvc := vendor.NewService(vendorStore)

	discoveryCache := cache.New(redisClient, "discovery")
	discoverySvc := discovery.NewService(vendorSvc, discoveryCache, cfg.Discovery)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, discoverySvc, dispatcher, cfg.Order.QuoteWindow)

	handler := httptransport.NewRouter(logger, orderSvc, discoverySvc, vendorSvc)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
